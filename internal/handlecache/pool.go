// Package handlecache implements a bounded pool of open data-file handles.
// At most one handle is ever open per file, and when the pool is full the
// handle that was opened longest ago is closed to make room — a FIFO
// eviction policy by open time, not an access-recency LRU, matching the
// data-resolution core's "oldest open file" replacement rule.
package handlecache

import (
	"fmt"
	"sync"
)

// DefaultCapacity is the default maximum number of simultaneously open
// handles the pool will hold.
const DefaultCapacity = 31

// Opener is the narrow surface the pool needs from whatever it is caching
// handles for. It lives here rather than in package datafile so handlecache
// has no dependency on datafile; datafile depends on handlecache and
// implements this interface.
type Opener interface {
	// Path uniquely identifies the resource, and is the pool's cache key.
	Path() string
	// Open acquires the underlying OS resource (a file). Called at most
	// once per entry between a Close and the next Open.
	Open() error
	// Close releases the underlying OS resource. Safe to call on an
	// entry that was never opened.
	Close() error
}

// Pool caches a bounded number of open Openers, keyed by Path.
type Pool struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]Opener
	order    []string // open order, oldest first
}

// New returns a pool with the given capacity. A non-positive capacity is
// replaced with DefaultCapacity.
func New(capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{
		capacity: capacity,
		entries:  make(map[string]Opener),
	}
}

// Acquire returns the Opener open and registered in the pool for o.Path().
// If an entry for this path is already open, it is returned unchanged and o
// is discarded unused. Otherwise o is opened, registered, and — if the pool
// is now over capacity — the oldest open entry is evicted and closed first.
func (p *Pool) Acquire(o Opener) (Opener, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.entries[o.Path()]; ok {
		return existing, nil
	}

	if len(p.order) >= p.capacity {
		oldest := p.order[0]
		p.order = p.order[1:]
		if victim, ok := p.entries[oldest]; ok {
			delete(p.entries, oldest)
			if err := victim.Close(); err != nil {
				return nil, fmt.Errorf("handlecache: evicting %s: %w", oldest, err)
			}
		}
	}

	if err := o.Open(); err != nil {
		return nil, fmt.Errorf("handlecache: opening %s: %w", o.Path(), err)
	}
	p.entries[o.Path()] = o
	p.order = append(p.order, o.Path())
	return o, nil
}

// Release closes and forgets the handle for path, if one is open. It is
// safe to call on a path that is not currently cached.
func (p *Pool) Release(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[path]
	if !ok {
		return nil
	}
	delete(p.entries, path)
	for i, k := range p.order {
		if k == path {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return entry.Close()
}

// Len reports the number of currently open handles.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}

// CloseAll closes every open handle and empties the pool.
func (p *Pool) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for _, path := range p.order {
		if entry, ok := p.entries[path]; ok {
			if err := entry.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	p.entries = make(map[string]Opener)
	p.order = nil
	return firstErr
}
