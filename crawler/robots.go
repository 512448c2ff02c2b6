package crawler

import (
	"context"
	"net/http"

	"github.com/benjaminestes/robots/v2"
	"github.com/benjaminestes/seocrawl/crawler/data"
)

// allowedByRobots reports whether the robots.txt of addr's host lets
// RobotsUserAgent fetch it. Each robots.txt is fetched once per crawl.
func (c *Crawler) allowedByRobots(addr *data.Address) bool {
	rtxtURL, err := robots.Locate(addr.Full)
	if err != nil {
		// Couldn't parse URL.
		return false
	}
	if _, ok := c.robots[rtxtURL]; !ok {
		c.addRobots(rtxtURL)
	}
	return c.robots[rtxtURL](addr.Full)
}

// addRobots creates a robots.txt matcher from the URL of a robots.txt
// file. If there is a problem reading from robots.txt, treat it as a
// server error.
func (c *Crawler) addRobots(rtxtURL string) {
	unavailable := func() {
		rtxt, _ := robots.From(http.StatusServiceUnavailable, nil)
		c.robots[rtxtURL] = rtxt.Tester(c.RobotsUserAgent)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.fetcher.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rtxtURL, nil)
	if err != nil {
		unavailable()
		return
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.fetcher.client.Do(req)
	if err != nil {
		c.log.WithField("url", rtxtURL).WithError(err).Debug("robots.txt unavailable")
		unavailable()
		return
	}
	defer resp.Body.Close()

	rtxt, err := robots.From(resp.StatusCode, resp.Body)
	if err != nil {
		unavailable()
		return
	}

	c.robots[rtxtURL] = rtxt.Tester(c.RobotsUserAgent)
}
