// Copyright 2018 Benjamin Estes. All rights reserved.  Use of this
// source code is governed by an MIT-style license that can be found
// in the LICENSE file.

package data

import (
	"net"
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

// An Address is a canonical URL: scheme, host, path and optional
// query, with no fragment. The root path is always "/"; any other
// path carries no trailing slash. Addresses are only produced by
// MakeAddress and its callers, and are never mutated afterwards.
type Address struct {
	Full   string
	Scheme string
	Host   string
	Path   string
	Query  string
}

func (a *Address) String() string {
	return a.Full
}

// Hostname is Host without any port.
func (a *Address) Hostname() string {
	if h, _, err := net.SplitHostPort(a.Host); err == nil {
		return h
	}
	return a.Host
}

func (a *Address) toURL() *url.URL {
	u := &url.URL{
		Scheme:   a.Scheme,
		Host:     a.Host,
		RawQuery: a.Query,
	}
	setEscapedPath(u, a.Path)
	return u
}

func setEscapedPath(u *url.URL, escaped string) {
	p, err := url.PathUnescape(escaped)
	if err != nil {
		u.Path, u.RawPath = escaped, ""
		return
	}
	u.Path, u.RawPath = p, escaped
}

var hasScheme = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// MakeAddress canonicalizes any URL-like string. A missing scheme
// defaults to https. It returns nil if the string has no parseable
// host or names a scheme other than http or https.
//
// MakeAddress is idempotent: feeding it the Full form of an Address
// it produced yields an equal Address.
func MakeAddress(addr string) *Address {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	switch {
	case strings.HasPrefix(addr, "//"):
		addr = "https:" + addr
	case !hasScheme.MatchString(addr):
		addr = "https://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil
	}
	return addressFromURL(u)
}

func addressFromURL(u *url.URL) *Address {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil
	}

	host := canonicalHost(u.Hostname())
	if host == "" {
		return nil
	}
	// Default ports are dropped so that http://x.com:80/ and
	// http://x.com/ compare equal.
	if port := u.Port(); port != "" && !isDefaultPort(scheme, port) {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	p := strings.TrimRight(u.EscapedPath(), "/")
	if p == "" {
		p = "/"
	}

	full := scheme + "://" + host + p
	if u.RawQuery != "" {
		full += "?" + u.RawQuery
	}

	return &Address{
		Full:   full,
		Scheme: scheme,
		Host:   host,
		Path:   p,
		Query:  u.RawQuery,
	}
}

func canonicalHost(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return ""
	}
	if net.ParseIP(host) != nil {
		return host
	}
	ascii, err := idna.ToASCII(host)
	if err != nil {
		return ""
	}
	return strings.ToLower(ascii)
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}

// Resolve turns an href found on the page at base into a canonical
// Address. It returns nil for empty and fragment-only hrefs, for
// pseudo-scheme links (javascript:, mailto:, tel:) and for anything
// that does not resolve to an http(s) URL with a host.
//
// A relative href is resolved against the directory of base. If the
// last segment of the base path contains a dot, it is taken to be a
// file name and its parent is used; otherwise the whole base path is
// the directory.
func Resolve(base *Address, href string) *Address {
	href = strings.TrimSpace(href)
	if base == nil || Unresolvable(href) {
		return nil
	}

	ref, err := url.Parse(href)
	if err != nil {
		return nil
	}

	switch {
	case ref.Scheme != "":
		return addressFromURL(ref)
	case strings.HasPrefix(href, "//"), strings.HasPrefix(href, "/"):
		return addressFromURL(base.toURL().ResolveReference(ref))
	}

	dir := base.Path
	if strings.Contains(path.Base(dir), ".") {
		dir = path.Dir(dir)
	}
	if dir == "." || dir == "" {
		dir = "/"
	} else if dir != "/" {
		dir = strings.TrimRight(dir, "/") + "/"
	}

	root := base.toURL()
	setEscapedPath(root, dir)
	root.RawQuery = ""
	return addressFromURL(root.ResolveReference(ref))
}

// Unresolvable reports whether href can be rejected before any
// parsing: empty, fragment-only or a pseudo-scheme link.
func Unresolvable(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// SameSite reports whether two addresses belong to the same site:
// their hostnames are equal once lower-cased and stripped of a single
// leading "www." label.
func SameSite(a, b *Address) bool {
	if a == nil || b == nil {
		return false
	}
	return siteHost(a) == siteHost(b)
}

func siteHost(a *Address) string {
	return strings.TrimPrefix(strings.ToLower(a.Hostname()), "www.")
}
