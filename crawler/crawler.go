// Copyright 2018 Benjamin Estes. All rights reserved.  Use of this
// source code is governed by an MIT-style license that can be found
// in the LICENSE file.

// Package crawler executes a site audit: a breadth-first crawl of a
// single site in parallel batches, analyzing every page it fetches.
package crawler

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/benjaminestes/seocrawl/crawler/data"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	ErrInvalidSeed = errors.New("invalid seed address")
	ErrStarted     = errors.New("crawl already started")
)

// A Crawler audits one site. Configure it through its Config fields,
// then call Start and Next, or Run. A Crawler runs once; concurrent
// audits each need their own.
type Crawler struct {
	Config

	seed     *data.Address
	frontier *Frontier
	resolver *Resolver
	fetcher  *Fetcher
	log      logrus.FieldLogger
	results  chan *data.PageReport

	// batch and fetched carry the current batch between states.
	batch   []*data.Address
	fetched []*Fetched

	// robots maintains a robots.txt matcher for every encountered
	// host, keyed by robots.txt URL.
	robots map[string]func(string) bool

	// maxTime is the parsed version of Config.MaxTime
	maxTime time.Duration

	// These are written by the crawl goroutine and read by the
	// accessors from anywhere.
	state      atomic.Int32
	started    atomic.Int64
	finished   atomic.Int64
	visited    atomic.Int64
	queued     atomic.Int64
	cached     atomic.Int64
	withIssues atomic.Int64
}

// New returns a Crawler for seed with default settings.
func New(seed string) *Crawler {
	return &Crawler{Config: Config{Seed: seed}}
}

func defaultLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Start validates the configuration and launches the crawl. The
// Crawler is a state machine running in its own goroutine. Therefore,
// calling this function may initiate many network requests, even
// before any results are requested from it.
//
// At most BatchSize reports are held for Next. Once that many are
// waiting the crawl blocks until Next takes one, so a caller that stops
// calling Next also stops the crawl, time limit included.
//
// If Start returns a non-nil error, Next returns nil.
func (c *Crawler) Start() error {
	if c.State() != Idle || c.results != nil {
		return ErrStarted
	}

	c.Config = c.Config.withDefaults()

	timeout, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return fmt.Errorf("timeout: %w", err)
	}
	connectTimeout, err := time.ParseDuration(c.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("connect timeout: %w", err)
	}
	maxTime, err := time.ParseDuration(c.MaxTime)
	if err != nil {
		return fmt.Errorf("max time: %w", err)
	}

	seed := data.MakeAddress(c.Seed)
	if seed == nil {
		return fmt.Errorf("%w: %q", ErrInvalidSeed, c.Seed)
	}

	c.log = c.Logger
	if c.log == nil {
		c.log = defaultLogger()
	}

	client := c.Client
	if client == nil {
		client = newClient(timeout, connectTimeout, c.MaxRedirects, c.BatchSize)
	}
	var limiter *rate.Limiter
	if c.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.RequestsPerSecond), c.BatchSize)
	}

	c.seed = seed
	c.maxTime = maxTime
	c.frontier = NewFrontier()
	c.resolver = NewResolver(c.ResolverCacheSize)
	c.robots = make(map[string]func(string) bool)
	c.fetcher = &Fetcher{
		client:    client,
		timeout:   timeout,
		userAgent: c.UserAgent,
		header:    c.Header,
		maxBody:   c.MaxBodyBytes,
		limiter:   limiter,
		log:       c.log,
	}

	c.results = make(chan *data.PageReport, c.BatchSize)
	c.started.Store(time.Now().UnixNano())
	c.state.Store(int32(Running))
	c.log.WithFields(logrus.Fields{
		"seed":      seed.Full,
		"max_pages": c.MaxPages,
		"batch":     c.BatchSize,
		"max_time":  maxTime,
	}).Info("crawl started")

	go func() {
		for f := crawlSeed; f != nil; f = f(c) {
		}
		close(c.results)
	}()

	return nil
}

// Next returns the next page report with at least one issue, blocking
// until one is available. It returns nil once the crawl is over.
// Reports come out in the order pages were fetched. Callers must keep
// calling Next until it returns nil.
func (c *Crawler) Next() *data.PageReport {
	if c.results == nil {
		return nil
	}
	r, ok := <-c.results
	if !ok {
		return nil
	}
	return r
}

// Run starts the crawl and collects every page report with at least
// one issue. A crawl cut short by the time limit is not an error; see
// State.
func (c *Crawler) Run() ([]*data.PageReport, error) {
	if err := c.Start(); err != nil {
		return nil, err
	}
	var reports []*data.PageReport
	for r := c.Next(); r != nil; r = c.Next() {
		reports = append(reports, r)
	}
	return reports, nil
}

// enqueue is the only way an address enters the frontier. It admits
// addresses on the seed's site that are not yet known and, when
// robots.txt is respected, that the site allows.
func (c *Crawler) enqueue(addr *data.Address) bool {
	if !c.admissible(addr) {
		return false
	}
	return c.frontier.Enqueue(addr)
}

func (c *Crawler) admissible(addr *data.Address) bool {
	if addr == nil || !data.SameSite(addr, c.seed) || c.frontier.Known(addr) {
		return false
	}
	if c.RespectRobots && !c.allowedByRobots(addr) {
		c.log.WithField("url", addr.Full).Debug("blocked by robots.txt")
		return false
	}
	return true
}

func (c *Crawler) finish(s State) {
	c.finished.Store(time.Now().UnixNano())
	c.state.Store(int32(s))
	c.publish()
	stats := c.Stats()
	c.log.WithFields(logrus.Fields{
		"state":       s,
		"visited":     stats.PagesCrawled,
		"with_issues": stats.PagesWithIssues,
		"queue":       stats.QueueRemaining,
		"elapsed":     stats.ExecutionTime,
	}).Info("crawl finished")
}
