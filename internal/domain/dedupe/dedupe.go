// Package dedupe tracks update ids that are queued or were triaged recently,
// so repeated triage requests for the same update collapse into one job.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Default dedupe configuration constants.
const (
	defaultMaxSize = 10000
	defaultTTL     = 10 * time.Minute
)

// Deduper records ids to keep at most one triage job per update in flight.
type Deduper interface {
	// SeenAndRecord reports whether id is already tracked and records it if
	// not. The check and the insert happen under one lock.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so it can be submitted again, for example after
	// the queue rejected it or the job failed.
	Unrecord(ctx context.Context, id string)

	// Size returns the number of tracked ids, expired ones included until
	// they are swept.
	Size() int64
}

type entry struct {
	id   string
	seen time.Time
}

// inMemoryDeduper keeps ids in insertion order. When full, the oldest id is
// evicted; ids older than ttl count as unseen.
type inMemoryDeduper struct {
	mu      sync.Mutex
	index   map[string]*list.Element
	order   *list.List
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
		ttl:     defaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.index = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.sweep(now)
	if _, ok := d.index[id]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.remove(d.order.Front())
	}
	d.index[id] = d.order.PushBack(&entry{id: id, seen: now})
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.index[id]; ok {
		d.remove(el)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}

// sweep drops expired ids from the front. Must be called with d.mu held.
func (d *inMemoryDeduper) sweep(now time.Time) {
	if d.ttl <= 0 {
		return
	}
	for el := d.order.Front(); el != nil; el = d.order.Front() {
		if now.Sub(el.Value.(*entry).seen) < d.ttl {
			return
		}
		d.remove(el)
	}
}

func (d *inMemoryDeduper) remove(el *list.Element) {
	if el == nil {
		return
	}
	delete(d.index, el.Value.(*entry).id)
	d.order.Remove(el)
}
