// Package dedupe tracks Telegram update ids so redelivered webhooks are
// applied at most once.
package dedupe

import (
	"context"
	"sync"
)

const defaultMaxSize = 10000

// Deduper records seen update IDs to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id int64) bool

	// Unrecord removes an ID so a later redelivery is processed again. Use it
	// only when an update was recorded but not applied.
	Unrecord(ctx context.Context, id int64)

	Size() int
}

// inMemoryDeduper implements Deduper with a map plus a ring of insertion
// order. In bounded mode the oldest id is evicted first.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[int64]struct{}
	refs    map[int64]int // ring slots holding each id
	ring    []int64       // insertion order, bounded mode only
	head    int           // index of the oldest entry in ring
	count   int           // occupied ring slots, including unrecorded ids
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[int64]struct{})
	if d.maxSize > 0 {
		d.ring = make([]int64, d.maxSize)
		d.refs = make(map[int64]int)
	}
	return d
}

// SeenAndRecord atomically checks if id was seen and records it if not.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		return true
	}

	if d.maxSize > 0 {
		if d.count == d.maxSize {
			d.evictOldest()
		}
		d.ring[(d.head+d.count)%d.maxSize] = id
		d.count++
		d.refs[id]++
	}
	d.seen[id] = struct{}{}
	return false
}

// Unrecord removes an ID from the seen set. Its slot in the ring is left in
// place and skipped when evicted.
func (d *inMemoryDeduper) Unrecord(_ context.Context, id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
}

// evictOldest drops the oldest ring entry. Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	oldest := d.ring[d.head]
	d.head = (d.head + 1) % d.maxSize
	d.count--

	// An id that was unrecorded and recorded again owns a later slot too.
	if d.refs[oldest]--; d.refs[oldest] > 0 {
		return
	}
	delete(d.refs, oldest)
	delete(d.seen, oldest)
}

// Size returns the current number of ids considered seen.
func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
