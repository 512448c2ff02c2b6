// Package data provides the types a crawl produces and the rules that
// produce them. All of the fields of these types are exported, since
// they are intended to be marshalled into some transmission format.
//
// An Address describes a single canonical URL; every URL the crawler
// compares, queues or fetches is an Address. A PageReport describes
// one analyzed page and the Issues found on it. It embeds an Address
// and, when the page declares one, a Canonical.
package data
