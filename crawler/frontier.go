package crawler

import "github.com/benjaminestes/seocrawl/crawler/data"

// A Frontier is the FIFO queue of addresses waiting to be fetched,
// together with the set of addresses already dispatched. Both are
// keyed by canonical URL, so membership tests never scan the queue.
//
// A Frontier belongs to one crawl and is not safe for concurrent use.
type Frontier struct {
	queue   []*data.Address
	queued  map[string]bool
	visited map[string]bool
}

func NewFrontier() *Frontier {
	return &Frontier{
		queued:  make(map[string]bool),
		visited: make(map[string]bool),
	}
}

// Known reports whether addr is already queued or visited.
func (f *Frontier) Known(addr *data.Address) bool {
	return f.queued[addr.Full] || f.visited[addr.Full]
}

// Enqueue appends addr to the queue unless it is known. It reports
// whether addr was added.
func (f *Frontier) Enqueue(addr *data.Address) bool {
	if addr == nil || f.Known(addr) {
		return false
	}
	f.queued[addr.Full] = true
	f.queue = append(f.queue, addr)
	return true
}

// Dequeue removes up to n addresses from the head of the queue,
// skipping any that have been visited in the meantime.
func (f *Frontier) Dequeue(n int) []*data.Address {
	var batch []*data.Address
	for len(f.queue) > 0 && len(batch) < n {
		addr := f.queue[0]
		f.queue[0] = nil
		f.queue = f.queue[1:]
		delete(f.queued, addr.Full)
		if f.visited[addr.Full] {
			continue
		}
		batch = append(batch, addr)
	}
	return batch
}

// MarkVisited records every address in batch as dispatched. Visited
// addresses are never queued again.
func (f *Frontier) MarkVisited(batch []*data.Address) {
	for _, addr := range batch {
		f.visited[addr.Full] = true
	}
}

// Truncate drops queued addresses beyond the first n and returns how
// many were dropped.
func (f *Frontier) Truncate(n int) int {
	if n < 0 {
		n = 0
	}
	if len(f.queue) <= n {
		return 0
	}
	dropped := f.queue[n:]
	for _, addr := range dropped {
		delete(f.queued, addr.Full)
	}
	f.queue = f.queue[:n:n]
	return len(dropped)
}

// Len is the number of queued addresses.
func (f *Frontier) Len() int {
	return len(f.queue)
}

// Visited is the number of dispatched addresses.
func (f *Frontier) Visited() int {
	return len(f.visited)
}
