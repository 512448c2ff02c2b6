package crawler

import (
	"strings"

	"github.com/benjaminestes/seocrawl/crawler/data"
)

type resolveKey struct {
	base string
	href string
}

// A Resolver memoizes data.Resolve for one crawl. The cache holds at
// most limit entries; once it is full, new pairs are still resolved
// but no longer remembered. Nothing is ever evicted.
type Resolver struct {
	limit int
	cache map[resolveKey]*data.Address
}

func NewResolver(limit int) *Resolver {
	return &Resolver{
		limit: limit,
		cache: make(map[resolveKey]*data.Address),
	}
}

// Resolve returns the canonical address href points to from the page
// at base, or nil if it points nowhere a crawl can follow.
func (r *Resolver) Resolve(href string, base *data.Address) *data.Address {
	href = strings.TrimSpace(href)
	if base == nil || data.Unresolvable(href) {
		return nil
	}

	key := resolveKey{base.Full, href}
	if addr, ok := r.cache[key]; ok {
		return addr
	}

	addr := data.Resolve(base, href)
	if len(r.cache) < r.limit {
		r.cache[key] = addr
	}
	return addr
}

// Len is the number of cached pairs.
func (r *Resolver) Len() int {
	return len(r.cache)
}
