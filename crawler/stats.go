package crawler

import (
	"fmt"
	"math"
	"time"
)

// A State is a phase in the life of a crawl.
type State int32

const (
	Idle State = iota
	Running
	Completed
	TimedOut
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case TimedOut:
		return "timed out"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// MarshalText lets a State appear by name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Stats is a snapshot of a crawl's performance counters.
type Stats struct {
	PagesCrawled     int           `json:"pages_crawled"`
	PagesWithIssues  int           `json:"pages_with_issues"`
	PagesOK          int           `json:"pages_ok"`
	QueueRemaining   int           `json:"urls_in_queue"`
	CacheSize        int           `json:"cache_size"`
	BatchSize        int           `json:"batch_size"`
	Elapsed          time.Duration `json:"-"`
	ExecutionSeconds float64       `json:"execution_time_seconds"`
	ExecutionTime    string        `json:"execution_time"`
	State            State         `json:"state"`
}

// FormatDuration renders d the way the crawl summary does: whole
// milliseconds under a second, seconds with two decimals under a
// minute, and minutes plus seconds beyond that.
func FormatDuration(d time.Duration) string {
	secs := d.Seconds()
	switch {
	case secs < 1:
		return fmt.Sprintf("%d ms", int64(math.Round(secs*1000)))
	case secs < 60:
		return fmt.Sprintf("%.2f seconds", secs)
	}
	minutes := math.Floor(secs / 60)
	return fmt.Sprintf("%dm %.1fs", int64(minutes), secs-minutes*60)
}

// Stats returns a snapshot of the crawl counters. It is safe to call
// from any goroutine, during or after the crawl.
func (c *Crawler) Stats() Stats {
	visited := int(c.visited.Load())
	issues := int(c.withIssues.Load())
	elapsed := c.Elapsed()
	return Stats{
		PagesCrawled:     visited,
		PagesWithIssues:  issues,
		PagesOK:          max(0, visited-issues),
		QueueRemaining:   int(c.queued.Load()),
		CacheSize:        int(c.cached.Load()),
		BatchSize:        c.BatchSize,
		Elapsed:          elapsed,
		ExecutionSeconds: elapsed.Seconds(),
		ExecutionTime:    FormatDuration(elapsed),
		State:            c.State(),
	}
}

// Visited is the number of pages dispatched for fetching so far.
func (c *Crawler) Visited() int {
	return int(c.visited.Load())
}

// QueueLen is the number of addresses waiting to be fetched.
func (c *Crawler) QueueLen() int {
	return int(c.queued.Load())
}

// CacheSize is the number of entries in the link resolution cache.
func (c *Crawler) CacheSize() int {
	return int(c.cached.Load())
}

// Elapsed is the time since the crawl started, or its total duration
// once it has finished. It is zero before Start.
func (c *Crawler) Elapsed() time.Duration {
	started := c.started.Load()
	if started == 0 {
		return 0
	}
	if finished := c.finished.Load(); finished != 0 {
		return time.Duration(finished - started)
	}
	return time.Since(time.Unix(0, started))
}

// ExecutionTime is Elapsed, formatted for people.
func (c *Crawler) ExecutionTime() string {
	return FormatDuration(c.Elapsed())
}

func (c *Crawler) State() State {
	return State(c.state.Load())
}

// publish copies the loop's private counters to the fields read by
// the accessors.
func (c *Crawler) publish() {
	c.visited.Store(int64(c.frontier.Visited()))
	c.queued.Store(int64(c.frontier.Len()))
	c.cached.Store(int64(c.resolver.Len()))
}
