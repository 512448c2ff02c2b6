// Package sitemap reads XML sitemaps and sitemap indexes.
package sitemap

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MaxDepth is how many levels of sitemap indexes FetchAll follows.
const MaxDepth = 2

// maxSize caps how much of a sitemap is read, as the sitemaps
// protocol does.
const maxSize = 50 << 20

var ErrNotSitemap = errors.New("not a sitemap")

type url struct {
	Loc string `xml:"loc"`
}

type urlset struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []url    `xml:"url"`
}

type index struct {
	XMLName xml.Name `xml:"sitemapindex"`
	URLs    []url    `xml:"sitemap"`
}

// Parse returns the locations listed in a <urlset> document.
func Parse(in io.Reader) ([]string, error) {
	res := &urlset{}
	if err := xml.NewDecoder(in).Decode(res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSitemap, err)
	}
	return locs(res.URLs), nil
}

// ParseIndex returns the sitemap locations listed in a
// <sitemapindex> document.
func ParseIndex(in io.Reader) ([]string, error) {
	res := &index{}
	if err := xml.NewDecoder(in).Decode(res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSitemap, err)
	}
	return locs(res.URLs), nil
}

func locs(urls []url) (list []string) {
	for _, u := range urls {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			list = append(list, loc)
		}
	}
	return
}

// A Loader retrieves sitemaps over HTTP.
type Loader struct {
	// Client defaults to http.DefaultClient.
	Client    *http.Client
	UserAgent string

	// Admit, if set, is asked about every sitemap an index lists.
	// Sitemaps it refuses are skipped without being requested.
	Admit func(loc string) bool
}

func (l *Loader) load(ctx context.Context, loc string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, err
	}
	if l.UserAgent != "" {
		req.Header.Set("User-Agent", l.UserAgent)
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %s", loc, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxSize))
}

// Fetch retrieves a sitemap and returns its locations.
func (l *Loader) Fetch(ctx context.Context, loc string) ([]string, error) {
	data, err := l.load(ctx, loc)
	if err != nil {
		return nil, err
	}
	return Parse(bytes.NewReader(data))
}

// FetchIndex retrieves a sitemap index and returns the sitemaps it
// lists.
func (l *Loader) FetchIndex(ctx context.Context, loc string) ([]string, error) {
	data, err := l.load(ctx, loc)
	if err != nil {
		return nil, err
	}
	return ParseIndex(bytes.NewReader(data))
}

// FetchAll retrieves the sitemap or sitemap index at loc and returns
// every page location it leads to, following nested indexes at most
// MaxDepth levels down. It stops following an index once ctx is
// done. Locations gathered before an error are returned along with
// it.
func (l *Loader) FetchAll(ctx context.Context, loc string) ([]string, error) {
	return l.fetchAll(ctx, loc, 0)
}

func (l *Loader) fetchAll(ctx context.Context, loc string, depth int) ([]string, error) {
	data, err := l.load(ctx, loc)
	if err != nil {
		return nil, err
	}

	if urls, err := Parse(bytes.NewReader(data)); err == nil {
		return urls, nil
	}

	sitemaps, err := ParseIndex(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if depth >= MaxDepth {
		return nil, fmt.Errorf("%s: sitemap indexes nested deeper than %d", loc, MaxDepth)
	}

	var urls []string
	for _, s := range sitemaps {
		if err := ctx.Err(); err != nil {
			return urls, err
		}
		if l.Admit != nil && !l.Admit(s) {
			continue
		}
		more, err := l.fetchAll(ctx, s, depth+1)
		urls = append(urls, more...)
		if err != nil {
			return urls, err
		}
	}
	return urls, nil
}
