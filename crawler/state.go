// Copyright 2018 Benjamin Estes. All rights reserved.  Use of this
// source code is governed by an MIT-style license that can be found
// in the LICENSE file.

package crawler

import (
	"bytes"
	"context"
	"time"

	"github.com/benjaminestes/seocrawl/crawler/data"
	"github.com/benjaminestes/seocrawl/sitemap"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

// A crawlfn represents a state of the crawler state machine.  Its
// return value is the next state.
type crawlfn func(*Crawler) crawlfn

// crawlSeed is the initial state. It queues the seed and, if asked
// to, the locations listed in the site's sitemap.
func crawlSeed(c *Crawler) crawlfn {
	if !c.enqueue(c.seed) {
		c.log.WithField("url", c.seed.Full).Warn("seed not crawlable")
	}
	if c.UseSitemap {
		return crawlSitemap
	}
	return crawlCheck
}

// crawlSitemap queues every in-scope location from the seed host's
// sitemap. Only sitemaps on the seed's site are requested, and reading
// them counts against the crawl's time limit. A missing or broken
// sitemap is not an error.
func crawlSitemap(c *Crawler) crawlfn {
	deadline := time.Unix(0, c.started.Load()).Add(c.maxTime)
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	l := &sitemap.Loader{
		Client:    c.fetcher.client,
		UserAgent: c.fetcher.userAgent,
		Admit: func(loc string) bool {
			return data.SameSite(data.MakeAddress(loc), c.seed)
		},
	}
	smURL := c.seed.Scheme + "://" + c.seed.Host + "/sitemap.xml"
	locs, err := l.FetchAll(ctx, smURL)
	if err != nil {
		c.log.WithField("url", smURL).WithError(err).Debug("sitemap unavailable")
	}
	added := 0
	for _, loc := range locs {
		if c.enqueue(data.MakeAddress(loc)) {
			added++
		}
	}
	c.log.WithFields(logrus.Fields{
		"url":   smURL,
		"added": added,
	}).Debug("sitemap read")
	return crawlTruncate
}

// crawlCheck decides whether the crawl goes on. Running out of time
// ends the crawl as timed out; running out of addresses or page
// budget completes it. This is the ultimate termination condition.
func crawlCheck(c *Crawler) crawlfn {
	if time.Duration(time.Now().UnixNano()-c.started.Load()) >= c.maxTime {
		return crawlTimedOut
	}
	if c.frontier.Len() == 0 || c.frontier.Visited() >= c.MaxPages {
		return crawlCompleted
	}
	return crawlDequeue
}

// crawlDequeue takes the next batch off the frontier and marks it
// visited before anything is fetched, so that an address discovered
// again while the batch is in flight is never queued twice.
func crawlDequeue(c *Crawler) crawlfn {
	n := min(c.BatchSize, c.MaxPages-c.frontier.Visited())
	c.batch = c.frontier.Dequeue(n)
	c.frontier.MarkVisited(c.batch)
	c.publish()
	if len(c.batch) == 0 {
		return crawlCheck
	}
	return crawlFetch
}

// crawlFetch requests the whole batch and waits for every request to
// finish. This is the only state that runs anything in parallel.
func crawlFetch(c *Crawler) crawlfn {
	c.log.WithFields(logrus.Fields{
		"batch":   len(c.batch),
		"visited": c.frontier.Visited(),
		"queue":   c.frontier.Len(),
	}).Debug("fetching batch")
	c.fetched = c.fetcher.FetchBatch(c.batch)
	return crawlAnalyze
}

// crawlAnalyze checks each fetched page, emits the reports that
// found issues and queues the links each page discovered.
func crawlAnalyze(c *Crawler) crawlfn {
	for _, f := range c.fetched {
		if !f.OK() {
			continue
		}
		doc, err := html.Parse(bytes.NewReader(f.Body))
		if err != nil {
			c.log.WithField("url", f.Address.Full).WithError(err).Debug("unparseable page")
			continue
		}
		report := data.Analyze(f.Address, doc)
		if report.HasIssues() {
			c.withIssues.Add(1)
			c.results <- report
		}
		c.extractLinks(f.Address, doc)
	}
	c.batch, c.fetched = nil, nil
	return crawlTruncate
}

// crawlTruncate bounds the frontier by the page budget and reports
// progress.
func crawlTruncate(c *Crawler) crawlfn {
	if dropped := c.frontier.Truncate(c.MaxPages); dropped > 0 {
		c.log.WithFields(logrus.Fields{
			"dropped": dropped,
			"queue":   c.frontier.Len(),
		}).Warn("frontier truncated")
	}
	c.publish()
	if c.Progress != nil {
		c.Progress(c.Stats())
	}
	return crawlCheck
}

func crawlTimedOut(c *Crawler) crawlfn {
	c.finish(TimedOut)
	return nil
}

func crawlCompleted(c *Crawler) crawlfn {
	c.finish(Completed)
	return nil
}
