// Package scrape is a small set of helpers for pulling elements,
// attributes and text out of a parsed HTML tree.
package scrape

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// QueryAll returns every element named name whose attributes match
// attrs. Attribute values are compared without regard to case.
func QueryAll(name string, attrs map[string]string, n *html.Node) []*html.Node {
	return filterByAttributes(attrs, NodesByTagName(name, n))
}

// Query returns the first match of QueryAll, or nil.
func Query(name string, attrs map[string]string, n *html.Node) *html.Node {
	var found *html.Node
	walk(n, func(node *html.Node) bool {
		if isElement(name, node) && matchAttributes(attrs, node) {
			found = node
			return false
		}
		return true
	})
	return found
}

// NodesByTagName returns all elements named name in document order.
func NodesByTagName(name string, n *html.Node) (list []*html.Node) {
	walk(n, func(node *html.Node) bool {
		if isElement(name, node) {
			list = append(list, node)
		}
		return true
	})
	return
}

// walk visits n and its descendants depth-first until visit returns
// false.
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if n == nil {
		return true
	}
	if !visit(n) {
		return false
	}
	for next := n.FirstChild; next != nil; next = next.NextSibling {
		if !walk(next, visit) {
			return false
		}
	}
	return true
}

func isElement(name string, n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	// Unknown tag names have no atom; fall back to the raw name.
	if a := atom.Lookup([]byte(name)); a != 0 {
		return n.DataAtom == a
	}
	return strings.EqualFold(n.Data, name)
}

func matchAttribute(k, v string, n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == k && strings.EqualFold(strings.TrimSpace(a.Val), v) {
			return true
		}
	}
	return false
}

func matchAttributes(attrs map[string]string, n *html.Node) bool {
	for k, v := range attrs {
		if !matchAttribute(k, v, n) {
			return false
		}
	}
	return true
}

func filterByAttributes(attrs map[string]string, nodes []*html.Node) (filtered []*html.Node) {
	for _, n := range nodes {
		if matchAttributes(attrs, n) {
			filtered = append(filtered, n)
		}
	}
	return
}

// Attribute returns the value of attribute k on n, or "" if n is nil
// or has no such attribute.
func Attribute(k string, n *html.Node) string {
	v, _ := LookupAttribute(k, n)
	return v
}

// LookupAttribute is like Attribute but also reports whether the
// attribute was present.
func LookupAttribute(k string, n *html.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key == k {
			return a.Val, true
		}
	}
	return "", false
}

// Text returns the concatenated text content of n and its
// descendants.
func Text(n *html.Node) string {
	var b strings.Builder
	walk(n, func(node *html.Node) bool {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		return true
	})
	return b.String()
}
