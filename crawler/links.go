package crawler

import (
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/benjaminestes/seocrawl/crawler/data"
	"golang.org/x/net/html"
)

// Links to these file types are never crawled.
var blockedExtensions = map[string]bool{
	"pdf": true, "jpg": true, "jpeg": true, "png": true, "gif": true,
	"zip": true, "doc": true, "docx": true, "xls": true, "xlsx": true,
	"ppt": true, "pptx": true, "mp3": true, "mp4": true, "avi": true,
	"mov": true,
}

func blockedExtension(addr *data.Address) bool {
	ext := strings.TrimPrefix(path.Ext(addr.Path), ".")
	return blockedExtensions[strings.ToLower(ext)]
}

// extractLinks enqueues the new same-site links of the page at base,
// at most MaxLinksPerPage of them, and returns how many it enqueued.
func (c *Crawler) extractLinks(base *data.Address, doc *html.Node) int {
	var (
		seen  = make(map[string]bool)
		links []*data.Address
	)
	goquery.NewDocumentFromNode(doc).Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		addr := c.resolver.Resolve(href, base)
		if addr == nil || seen[addr.Full] || blockedExtension(addr) {
			return true
		}
		seen[addr.Full] = true
		if !c.admissible(addr) {
			return true
		}
		links = append(links, addr)
		return len(links) < c.MaxLinksPerPage
	})

	added := 0
	for _, addr := range links {
		if c.enqueue(addr) {
			added++
		}
	}
	return added
}
