package data

import "strings"

// A Canonical describes the rel=canonical link of a page. Href is the
// trimmed attribute value as written; Address is its resolution
// against the page, or nil when it could not be resolved.
type Canonical struct {
	Address  *Address `json:",omitempty"`
	Href     string
	FormatOK bool `mode:"REQUIRED"`
}

// MakeCanonical builds a Canonical for href found on the page at
// base. Only an absolute http(s) href counts as well formatted.
func MakeCanonical(base *Address, href string) *Canonical {
	href = strings.TrimSpace(href)
	return &Canonical{
		Href:     href,
		Address:  Resolve(base, href),
		FormatOK: strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://"),
	}
}
