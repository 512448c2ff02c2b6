package data

import (
	"strings"

	"github.com/benjaminestes/seocrawl/scrape"
	"golang.org/x/net/html"
)

// A Pair is a key/value pair, used for request headers.
type Pair struct {
	K string `json:"k" yaml:"k" toml:"k"`
	V string `json:"v" yaml:"v" toml:"v"`
}

// A PageReport is the outcome of analyzing one fetched page.
type PageReport struct {
	Address *Address `mode:"REQUIRED"`
	Title   string
	Issues  []Issue `json:",omitempty"`

	Canonical *Canonical `json:",omitempty"`

	HasTitle           bool `mode:"REQUIRED"`
	HasMetaDescription bool `mode:"REQUIRED"`
	HasViewport        bool `mode:"REQUIRED"`
	HasCharset         bool `mode:"REQUIRED"`
	HasCanonical       bool `mode:"REQUIRED"`
	CanonicalFormatOK  bool `mode:"REQUIRED"`
	HasH1              bool `mode:"REQUIRED"`
	HasLang            bool `mode:"REQUIRED"`
}

// HasIssues reports whether the page accumulated any issue.
func (r *PageReport) HasIssues() bool {
	return len(r.Issues) > 0
}

func (r *PageReport) add(issue Issue) {
	r.Issues = append(r.Issues, issue)
}

// Analyze runs every on-page check against doc, the parsed markup of
// the page at addr. It never fails: a tree recovered from malformed
// markup is checked like any other.
func Analyze(addr *Address, doc *html.Node) *PageReport {
	r := &PageReport{Address: addr}
	checkTitle(r, doc)
	checkMeta(r, doc)
	checkCanonical(r, doc)
	checkH1(r, doc)
	checkLanguage(r, doc)
	return r
}

func checkTitle(r *PageReport, doc *html.Node) {
	title := scrape.Query("title", nil, doc)
	if title == nil {
		r.add(MissingTitle)
		return
	}
	r.Title = strings.TrimSpace(scrape.Text(title))
	r.HasTitle = r.Title != ""
	if !r.HasTitle {
		r.add(EmptyTitle)
	}
}

func checkMeta(r *PageReport, doc *html.Node) {
	var (
		descriptions int
		emptyDesc    bool
	)
	for _, meta := range scrape.NodesByTagName("meta", doc) {
		name := strings.ToLower(strings.TrimSpace(scrape.Attribute("name", meta)))
		content := scrape.Attribute("content", meta)
		switch name {
		case "description":
			descriptions++
			if strings.TrimSpace(content) == "" {
				emptyDesc = true
			}
		case "viewport":
			r.HasViewport = true
		}
		if _, ok := scrape.LookupAttribute("charset", meta); ok {
			r.HasCharset = true
		}
		if strings.EqualFold(strings.TrimSpace(scrape.Attribute("http-equiv", meta)), "content-type") &&
			strings.Contains(strings.ToLower(content), "charset") {
			r.HasCharset = true
		}
	}

	switch {
	case descriptions == 0:
		r.add(MissingDescription)
	case emptyDesc:
		r.add(EmptyDescription)
	default:
		r.HasMetaDescription = true
	}
	if !r.HasViewport {
		r.add(MissingViewport)
	}
	if !r.HasCharset {
		r.add(MissingCharset)
	}
}

func checkCanonical(r *PageReport, doc *html.Node) {
	// Only a canonical that is present and malformed fails the format
	// check.
	r.CanonicalFormatOK = true
	link := scrape.Query("link", map[string]string{"rel": "canonical"}, doc)
	if link == nil {
		r.add(MissingCanonical)
		return
	}
	r.Canonical = MakeCanonical(r.Address, scrape.Attribute("href", link))
	switch {
	case r.Canonical.Href == "":
		r.add(EmptyCanonical)
	case !r.Canonical.FormatOK:
		r.HasCanonical = true
		r.CanonicalFormatOK = false
		r.add(IncorrectCanonical)
	default:
		r.HasCanonical = true
	}
}

func checkH1(r *PageReport, doc *html.Node) {
	h1s := scrape.NodesByTagName("h1", doc)
	switch {
	case len(h1s) == 0:
		r.add(MissingH1)
	case len(h1s) > 1:
		r.add(MultipleH1)
	case strings.TrimSpace(scrape.Text(h1s[0])) == "":
		r.add(EmptyH1)
	default:
		r.HasH1 = true
	}
}

func checkLanguage(r *PageReport, doc *html.Node) {
	root := scrape.Query("html", nil, doc)
	r.HasLang = strings.TrimSpace(scrape.Attribute("lang", root)) != ""
	if !r.HasLang {
		r.add(MissingLanguage)
	}
}
