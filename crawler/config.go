package crawler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/benjaminestes/seocrawl/crawler/data"
	"github.com/benjaminestes/seocrawl/version"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of a single crawl. Zero values are
// replaced by defaults when the crawl starts, so a Config literal only
// needs the fields it cares about.
type Config struct {
	// Seed is the address the crawl starts from. It must already
	// have been vetted by the caller as safe to contact.
	Seed string `json:"seed" yaml:"seed" toml:"seed"`

	MaxPages        int    `json:"max_pages" yaml:"max_pages" toml:"max_pages"`
	BatchSize       int    `json:"batch_size" yaml:"batch_size" toml:"batch_size"`
	MaxTime         string `json:"max_time" yaml:"max_time" toml:"max_time"`
	MaxLinksPerPage int    `json:"max_links_per_page" yaml:"max_links_per_page" toml:"max_links_per_page"`

	ResolverCacheSize int `json:"resolver_cache_size" yaml:"resolver_cache_size" toml:"resolver_cache_size"`

	Timeout        string `json:"timeout" yaml:"timeout" toml:"timeout"`
	ConnectTimeout string `json:"connect_timeout" yaml:"connect_timeout" toml:"connect_timeout"`
	MaxRedirects   int    `json:"max_redirects" yaml:"max_redirects" toml:"max_redirects"`
	MaxBodyBytes   int64  `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	UserAgent       string       `json:"user_agent" yaml:"user_agent" toml:"user_agent"`
	RobotsUserAgent string       `json:"robots_user_agent" yaml:"robots_user_agent" toml:"robots_user_agent"`
	RespectRobots   bool         `json:"respect_robots" yaml:"respect_robots" toml:"respect_robots"`
	UseSitemap      bool         `json:"use_sitemap" yaml:"use_sitemap" toml:"use_sitemap"`
	Header          []*data.Pair `json:"header" yaml:"header" toml:"header"`

	// RequestsPerSecond throttles request starts when positive.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" toml:"requests_per_second"`

	// Client, if set, is used for every request as is. Timeout,
	// ConnectTimeout and MaxRedirects then only bound the limiter
	// wait and the request context.
	Client *http.Client `json:"-" yaml:"-" toml:"-"`

	Logger logrus.FieldLogger `json:"-" yaml:"-" toml:"-"`

	// Progress, if set, is called from the crawl goroutine after
	// every batch.
	Progress func(Stats) `json:"-" yaml:"-" toml:"-"`
}

var defaultConfig = Config{
	MaxPages:          500,
	BatchSize:         10,
	MaxLinksPerPage:   50,
	ResolverCacheSize: 1000,
	MaxRedirects:      3,
	MaxBodyBytes:      5 << 20,
	UserAgent:         version.UserAgent(),
	RobotsUserAgent:   "SEOCrawl",

	// These fields must be set to avoid time parsing errors,
	// and to keep non-zero defaults colocated in this file.
	Timeout:        "8s",
	ConnectTimeout: "5s",
	MaxTime:        "5m",
}

// withDefaults returns a copy of c with every zero field replaced by
// its default.
func (c Config) withDefaults() Config {
	d := defaultConfig
	if c.MaxPages <= 0 {
		c.MaxPages = d.MaxPages
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MaxLinksPerPage <= 0 {
		c.MaxLinksPerPage = d.MaxLinksPerPage
	}
	if c.ResolverCacheSize <= 0 {
		c.ResolverCacheSize = d.ResolverCacheSize
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = d.MaxRedirects
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = d.MaxBodyBytes
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.RobotsUserAgent == "" {
		c.RobotsUserAgent = d.RobotsUserAgent
	}
	if c.Timeout == "" {
		c.Timeout = d.Timeout
	}
	if c.ConnectTimeout == "" {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.MaxTime == "" {
		c.MaxTime = d.MaxTime
	}
	return c
}

// FromJSON reads a crawl configuration in JSON format. Durations are
// not validated until the crawl starts.
func FromJSON(in io.Reader) (*Crawler, error) {
	config := defaultConfig

	configJSON, err := io.ReadAll(in)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(configJSON, &config)
	if err != nil {
		return nil, err
	}

	return &Crawler{Config: config}, nil
}

// FromYAML reads a crawl configuration in YAML format. Unknown keys
// are an error.
func FromYAML(in io.Reader) (*Crawler, error) {
	config := defaultConfig

	dec := yaml.NewDecoder(in)
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil && err != io.EOF {
		return nil, err
	}

	return &Crawler{Config: config}, nil
}

// FromTOML reads a crawl configuration in TOML format. Unknown keys
// are an error.
func FromTOML(in io.Reader) (*Crawler, error) {
	config := defaultConfig

	md, err := toml.NewDecoder(in).Decode(&config)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown configuration key %q", undecoded[0].String())
	}

	return &Crawler{Config: config}, nil
}

// FromFile reads a crawl configuration from the named file, choosing
// a format by its extension.
func FromFile(name string) (*Crawler, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}

	var c *Crawler
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".json":
		c, err = FromJSON(bytes.NewReader(b))
	case ".yaml", ".yml":
		c, err = FromYAML(bytes.NewReader(b))
	case ".toml":
		c, err = FromTOML(bytes.NewReader(b))
	default:
		return nil, fmt.Errorf("%s: unsupported config format %q", name, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return c, nil
}
