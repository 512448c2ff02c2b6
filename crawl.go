// Copyright 2018 Benjamin Estes. All rights reserved.  Use of this
// source code is governed by an MIT-style license that can be found
// in the LICENSE file.

// Command seocrawl audits a website for common on-page SEO problems.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/benjaminestes/seocrawl/crawler"
	"github.com/benjaminestes/seocrawl/crawler/data"
	"github.com/benjaminestes/seocrawl/schema"
	"github.com/benjaminestes/seocrawl/version"
	"github.com/sirupsen/logrus"
)

const (
	minLimit = 1
	maxLimit = 1000
)

type cli struct {
	LogLevel string `default:"warn" enum:"debug,info,warn,error" help:"Log level (${enum})."`
	LogJSON  bool   `name:"log-json" help:"Write logs as JSON."`

	Audit   auditCmd   `cmd:"" help:"Crawl a site and report pages with SEO issues as JSON lines."`
	Schema  schemaCmd  `cmd:"" help:"Print the BigQuery schema of the audit output."`
	Version versionCmd `cmd:"" help:"Print version information."`
}

type auditCmd struct {
	URL           string        `arg:"" name:"url" help:"Address of the site to audit."`
	Config        string        `short:"c" type:"existingfile" help:"Crawl configuration file (.json, .yaml or .toml)."`
	Limit         int           `short:"n" help:"Maximum number of pages to crawl (1-1000, default 500)."`
	BatchSize     int           `short:"b" help:"Number of pages fetched in parallel."`
	MaxTime       time.Duration `help:"Wall-clock limit for the whole crawl."`
	RespectRobots bool          `help:"Do not crawl pages disallowed by robots.txt."`
	Sitemap       bool          `help:"Also crawl the locations listed in /sitemap.xml."`
	Quiet         bool          `short:"q" help:"Do not show progress."`
}

func (a *auditCmd) Run(log *logrus.Logger) error {
	c, err := a.crawler()
	if err != nil {
		return err
	}
	c.Logger = log
	if !a.Quiet {
		c.Progress = progress(os.Stderr)
	}

	if err := c.Start(); err != nil {
		return err
	}
	for r := c.Next(); r != nil; r = c.Next() {
		j, err := json.Marshal(r)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", j)
	}

	if !a.Quiet {
		fmt.Fprintf(os.Stderr, "\r%s\r", strings.Repeat(" ", 65))
	}
	summarize(os.Stderr, c.Stats())
	return nil
}

// crawler builds the crawl from the configuration file, if any, and
// the command line, which takes precedence.
func (a *auditCmd) crawler() (*crawler.Crawler, error) {
	seed := data.MakeAddress(a.URL)
	if seed == nil {
		return nil, fmt.Errorf("%q is not an http or https address", a.URL)
	}

	c := crawler.New(seed.Full)
	if a.Config != "" {
		var err error
		c, err = crawler.FromFile(a.Config)
		if err != nil {
			return nil, err
		}
		c.Seed = seed.Full
	}

	if a.Limit != 0 {
		c.MaxPages = a.Limit
	}
	c.MaxPages = clampLimit(c.MaxPages)
	if a.BatchSize > 0 {
		c.BatchSize = a.BatchSize
	}
	if a.MaxTime > 0 {
		c.MaxTime = a.MaxTime.String()
	}
	if a.RespectRobots {
		c.RespectRobots = true
	}
	if a.Sitemap {
		c.UseSitemap = true
	}
	return c, nil
}

// clampLimit keeps a page limit within bounds. Zero means the default.
func clampLimit(n int) int {
	if n == 0 {
		return 500
	}
	return max(minLimit, min(maxLimit, n))
}

func progress(w io.Writer) func(crawler.Stats) {
	return func(s crawler.Stats) {
		fmt.Fprintf(w, "\r%s", strings.Repeat(" ", 65))
		fmt.Fprintf(
			w,
			"\r%s : %d crawled, %d queued, %d with issues",
			s.Elapsed.Round(time.Second),
			s.PagesCrawled,
			s.QueueRemaining,
			s.PagesWithIssues,
		)
	}
}

func summarize(w io.Writer, s crawler.Stats) {
	fmt.Fprintf(w, "Crawl %s in %s\n", s.State, s.ExecutionTime)
	fmt.Fprintf(w, "  pages crawled:     %d\n", s.PagesCrawled)
	fmt.Fprintf(w, "  pages with issues: %d\n", s.PagesWithIssues)
	fmt.Fprintf(w, "  pages OK:          %d\n", s.PagesOK)
	fmt.Fprintf(w, "  urls in queue:     %d\n", s.QueueRemaining)
	fmt.Fprintf(w, "  cache size:        %d\n", s.CacheSize)
	fmt.Fprintf(w, "  batch size:        %d\n", s.BatchSize)
}

type schemaCmd struct{}

func (schemaCmd) Run() error {
	fmt.Printf("%s\n", schema.BigQueryJSON())
	return nil
}

type versionCmd struct{}

func (versionCmd) Run() error {
	fmt.Printf("seocrawl %s\n%s\n", version.Version, version.UserAgent())
	return nil
}

func newLogger(level string, asJSON bool) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(lvl)
	if asJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}

func main() {
	var args cli
	ctx := kong.Parse(&args,
		kong.Name("seocrawl"),
		kong.Description("Audit a website for common on-page SEO problems."),
		kong.UsageOnError(),
	)

	log, err := newLogger(args.LogLevel, args.LogJSON)
	ctx.FatalIfErrorf(err)

	ctx.FatalIfErrorf(ctx.Run(log))
}
