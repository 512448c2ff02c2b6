package crawler

import (
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benjaminestes/seocrawl/crawler/data"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nullLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	return l
}

// hits counts requests per path.
type hits struct {
	mu sync.Mutex
	n  map[string]int
}

func (h *hits) add(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.n == nil {
		h.n = make(map[string]int)
	}
	h.n[path]++
}

func (h *hits) get(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.n[path]
}

func (h *hits) all() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := make(map[string]int, len(h.n))
	for k, v := range h.n {
		m[k] = v
	}
	return m
}

type page struct {
	ID        string
	Canonical string
	Children  []string
}

var nicePage = template.Must(template.ParseFiles("testdata/nice_page.html"))

// site serves a page without deficiencies at every path, linking to
// the paths children returns for it. Paths in extra are served by
// their own handlers and not counted.
func site(t *testing.T, h *hits, children func(path string) []string, extra map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, handler := range extra {
		mux.HandleFunc(pattern, handler)
	}
	var ts *httptest.Server
	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		if h != nil {
			h.add(req.URL.Path)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err := nicePage.Execute(w, page{
			ID:        req.URL.Path,
			Canonical: ts.URL + req.URL.Path,
			Children:  children(req.URL.Path),
		})
		if err != nil {
			t.Errorf("template: %v", err)
		}
	})
	ts = httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestSinglePageNoIssues(t *testing.T) {
	ts := site(t, nil, func(string) []string { return []string{"/a", "/b"} }, nil)

	c := New(ts.URL)
	c.MaxPages = 1
	c.Logger = nullLogger()

	reports, err := c.Run()
	require.NoError(t, err)

	assert.Empty(t, reports)
	assert.Equal(t, 1, c.Visited())
	assert.Equal(t, Completed, c.State())
	stats := c.Stats()
	assert.Equal(t, 1, stats.PagesCrawled)
	assert.Equal(t, 1, stats.PagesOK)
	assert.Equal(t, 0, stats.PagesWithIssues)
}

func TestFetchedAtMostOnce(t *testing.T) {
	var h hits
	const n = 25
	// Every page links to every page.
	ts := site(t, &h, func(string) []string {
		var links []string
		for i := 0; i < n; i++ {
			links = append(links, fmt.Sprintf("/p/%d", i))
			links = append(links, fmt.Sprintf("/p/%d#again", i))
		}
		return links
	}, nil)

	c := New(ts.URL + "/p/0")
	c.BatchSize = 7
	c.Logger = nullLogger()

	_, err := c.Run()
	require.NoError(t, err)

	for path, count := range h.all() {
		assert.Equal(t, 1, count, "path %s", path)
	}
	assert.Len(t, h.all(), n)
	assert.Equal(t, n, c.Visited())
	assert.Equal(t, 0, c.QueueLen())
	assert.Equal(t, Completed, c.State())
}

func TestPageBudget(t *testing.T) {
	var h hits
	// An endless chain of pages, each linking to the next three.
	ts := site(t, &h, func(path string) []string {
		var i int
		fmt.Sscanf(path, "/p/%d", &i)
		return []string{
			fmt.Sprintf("/p/%d", i+1),
			fmt.Sprintf("/p/%d", i+2),
			fmt.Sprintf("/p/%d", i+3),
		}
	}, nil)

	c := New(ts.URL + "/p/0")
	c.MaxPages = 5
	c.BatchSize = 2
	c.Logger = nullLogger()

	_, err := c.Run()
	require.NoError(t, err)

	assert.Equal(t, 5, c.Visited())
	assert.Len(t, h.all(), 5)
	assert.LessOrEqual(t, c.QueueLen(), 5)
	assert.Equal(t, Completed, c.State())
}

func TestScopeContainment(t *testing.T) {
	var h hits
	ts := site(t, &h, func(path string) []string {
		return []string{
			"/inside",
			"https://elsewhere.example/outside",
			"//cdn.example/asset",
			"mailto:me@example.com",
			"javascript:void(0)",
			"/report.PDF",
			"#top",
		}
	}, nil)

	c := New(ts.URL)
	c.Logger = nullLogger()

	_, err := c.Run()
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"/": 1, "/inside": 1}, h.all())
	assert.Equal(t, 2, c.Visited())
}

func TestReportsOnlyPagesWithIssues(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/" {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Home</title></head>
<body><a href="/broken">broken</a><a href="/missing">missing</a><a href="/logo.svg">logo</a></body></html>`)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html lang="en"><head><meta charset="utf-8"><title></title></head><body><h1>Hi</h1></body></html>`)
	})
	mux.HandleFunc("/logo.svg", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		fmt.Fprint(w, `<svg xmlns="http://www.w3.org/2000/svg"></svg>`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := New(ts.URL)
	c.Logger = nullLogger()

	reports, err := c.Run()
	require.NoError(t, err)

	require.Len(t, reports, 2)
	assert.Equal(t, ts.URL+"/", reports[0].Address.Full)
	assert.Equal(t, "Home", reports[0].Title)
	assert.Equal(t, ts.URL+"/broken", reports[1].Address.Full)
	assert.Contains(t, reports[1].Issues, data.EmptyTitle)

	// The 404 and the image were fetched but produced nothing.
	assert.Equal(t, 4, c.Visited())
	stats := c.Stats()
	assert.Equal(t, 2, stats.PagesWithIssues)
	assert.Equal(t, 2, stats.PagesOK)
}

func TestTimedOut(t *testing.T) {
	var h hits
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		h.add(req.URL.Path)
		time.Sleep(100 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<a href="%s/next">next</a>`, strings.TrimSuffix(req.URL.Path, "/"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := New(ts.URL)
	c.MaxTime = "50ms"
	c.Timeout = "2s"
	c.Logger = nullLogger()

	_, err := c.Run()
	require.NoError(t, err)

	assert.Equal(t, TimedOut, c.State())
	assert.Equal(t, 1, c.Visited())
	assert.Equal(t, 1, c.QueueLen())
	assert.Less(t, c.Elapsed(), 50*time.Millisecond+2*time.Second)
	assert.Equal(t, c.Elapsed(), c.Stats().Elapsed)
}

func TestStartTwice(t *testing.T) {
	ts := site(t, nil, func(string) []string { return nil }, nil)

	c := New(ts.URL)
	c.Logger = nullLogger()
	require.NoError(t, c.Start())
	assert.ErrorIs(t, c.Start(), ErrStarted)
	for c.Next() != nil {
	}
	assert.Equal(t, Completed, c.State())
}

func TestProgress(t *testing.T) {
	ts := site(t, nil, func(string) []string {
		return []string{"/a", "/b", "/c", "/d", "/e"}
	}, nil)

	var snapshots []Stats
	c := New(ts.URL)
	c.BatchSize = 2
	c.Logger = nullLogger()
	c.Progress = func(s Stats) {
		snapshots = append(snapshots, s)
	}

	_, err := c.Run()
	require.NoError(t, err)

	// The seed batch, then three batches of at most two.
	require.Len(t, snapshots, 4)
	for i := 1; i < len(snapshots); i++ {
		assert.GreaterOrEqual(t, snapshots[i].PagesCrawled, snapshots[i-1].PagesCrawled)
	}
	last := snapshots[len(snapshots)-1]
	assert.Equal(t, 6, last.PagesCrawled)
	assert.Equal(t, 0, last.QueueRemaining)
	assert.Equal(t, Running, last.State)
	assert.Equal(t, 2, last.BatchSize)
	assert.Positive(t, c.CacheSize())
}

func TestRobotsDisallowAll(t *testing.T) {
	var h hits
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprintf(w, "user-agent: *\ndisallow: /\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		h.add(req.URL.Path)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := New(ts.URL)
	c.RespectRobots = true
	c.Logger = nullLogger()

	reports, err := c.Run()
	require.NoError(t, err)

	assert.Empty(t, reports)
	assert.Empty(t, h.all())
	assert.Equal(t, 0, c.Visited())
	assert.Equal(t, Completed, c.State())
}

func TestRobotsDisallowPath(t *testing.T) {
	var h hits
	ts := site(t, &h, func(string) []string {
		return []string{"/public", "/private/secret"}
	}, map[string]http.HandlerFunc{
		"/robots.txt": func(w http.ResponseWriter, req *http.Request) {
			fmt.Fprintf(w, "user-agent: SEOCrawl\ndisallow: /private\n")
		},
	})

	c := New(ts.URL)
	c.RespectRobots = true
	c.Logger = nullLogger()

	_, err := c.Run()
	require.NoError(t, err)

	assert.Equal(t, 1, h.get("/public"))
	assert.Equal(t, 0, h.get("/private/secret"))
}

func TestSitemapSeeding(t *testing.T) {
	var h hits
	ts := site(t, &h, func(string) []string { return nil }, map[string]http.HandlerFunc{
		"/sitemap.xml": func(w http.ResponseWriter, req *http.Request) {
			root := "http://" + req.Host
			fmt.Fprintf(w, `<urlset><url><loc>%[1]s/orphan</loc></url><url><loc>https://elsewhere.example/</loc></url><url><loc>%[1]s/</loc></url></urlset>`, root)
		},
	})

	c := New(ts.URL)
	c.UseSitemap = true
	c.Logger = nullLogger()

	_, err := c.Run()
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"/": 1, "/orphan": 1}, h.all())
}

func TestSitemapIndexStaysOnSite(t *testing.T) {
	var h, offsite hits
	ts := site(t, &h, func(string) []string { return nil }, map[string]http.HandlerFunc{
		"/sitemap.xml": func(w http.ResponseWriter, req *http.Request) {
			_, port, _ := net.SplitHostPort(req.Host)
			fmt.Fprintf(w, `<sitemapindex><sitemap><loc>http://%s/sitemap-pages.xml</loc></sitemap><sitemap><loc>http://localhost:%s/internal-admin</loc></sitemap></sitemapindex>`, req.Host, port)
		},
		"/sitemap-pages.xml": func(w http.ResponseWriter, req *http.Request) {
			fmt.Fprintf(w, `<urlset><url><loc>http://%s/orphan</loc></url></urlset>`, req.Host)
		},
		"/internal-admin": func(w http.ResponseWriter, req *http.Request) {
			offsite.add(req.URL.Path)
			fmt.Fprint(w, `<urlset></urlset>`)
		},
	})

	c := New(ts.URL)
	c.UseSitemap = true
	c.Logger = nullLogger()

	_, err := c.Run()
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"/": 1, "/orphan": 1}, h.all())
	assert.Empty(t, offsite.all())
}

func TestSitemapBoundedByMaxTime(t *testing.T) {
	var h hits
	ts := site(t, &h, func(string) []string { return nil }, map[string]http.HandlerFunc{
		"/sitemap.xml": func(w http.ResponseWriter, req *http.Request) {
			fmt.Fprint(w, `<sitemapindex>`)
			for i := 0; i < 10; i++ {
				fmt.Fprintf(w, `<sitemap><loc>http://%s/slow/%d.xml</loc></sitemap>`, req.Host, i)
			}
			fmt.Fprint(w, `</sitemapindex>`)
		},
		"/slow/": func(w http.ResponseWriter, req *http.Request) {
			time.Sleep(200 * time.Millisecond)
			fmt.Fprintf(w, `<urlset><url><loc>http://%s/orphan</loc></url></urlset>`, req.Host)
		},
	})

	c := New(ts.URL)
	c.UseSitemap = true
	c.MaxTime = "100ms"
	c.Timeout = "300ms"
	c.Logger = nullLogger()

	_, err := c.Run()
	require.NoError(t, err)

	assert.Equal(t, TimedOut, c.State())
	assert.Less(t, c.Elapsed(), 400*time.Millisecond)
	assert.Equal(t, 0, c.Visited())
	assert.Empty(t, h.all())
}

func TestFinishLogged(t *testing.T) {
	ts := site(t, nil, func(string) []string { return nil }, nil)
	logger, hook := test.NewNullLogger()

	c := New(ts.URL)
	c.Logger = logger

	_, err := c.Run()
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "crawl finished", entry.Message)
	assert.Equal(t, Completed, entry.Data["state"])
	assert.Equal(t, 1, entry.Data["visited"])
}

// fakeTransport answers every request from a map of pages keyed by
// URL, and 404s everything else.
type fakeTransport struct {
	pages map[string]string
	hits  hits
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.hits.add(req.URL.String())
	body, ok := f.pages[req.URL.String()]
	rec := httptest.NewRecorder()
	if !ok {
		rec.WriteHeader(http.StatusNotFound)
	} else {
		rec.Header().Set("Content-Type", "text/html; charset=utf-8")
		rec.WriteString(body)
	}
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

func TestInjectedClient(t *testing.T) {
	ft := &fakeTransport{pages: map[string]string{
		"https://x.com/": `<!DOCTYPE html><html lang="en"><head>
<meta charset="utf-8"><meta name="viewport" content="width=device-width">
<title>X</title><meta name="description" content="X.">
<link rel="canonical" href="https://x.com/"></head>
<body><h1>X</h1><a href="/about">About</a><a href="https://www.x.com/blog/post.html">Post</a></body></html>`,
		"https://x.com/about": `<html><head><title>About</title></head><body></body></html>`,
		"https://www.x.com/blog/post.html": `<html lang="en"><body><h1>Post</h1>
<a href="../about.html">About</a><a href="https://x.com/about">About again</a></body></html>`,
	}}

	c := New("https://x.com/")
	c.Client = &http.Client{Transport: ft}
	c.Logger = nullLogger()

	reports, err := c.Run()
	require.NoError(t, err)

	var got []string
	for _, r := range reports {
		got = append(got, r.Address.Full)
	}
	assert.Equal(t, []string{"https://x.com/about", "https://www.x.com/blog/post.html"}, got)
	assert.Equal(t, map[string]int{
		"https://x.com/":                   1,
		"https://x.com/about":              1,
		"https://www.x.com/blog/post.html": 1,
		"https://www.x.com/about.html":     1,
	}, ft.hits.all())
	assert.Equal(t, 4, c.Visited())
}
