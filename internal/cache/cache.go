// Package cache holds the bounded, TTL'd in-memory caches that sit in front
// of thumbnail generation and full video-list reads. Entries are derived
// data: dropping any of them at any time loses nothing.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Options bound a cache by entry count and aggregate byte size, whichever
// binds first, plus a fixed TTL measured from insertion.
type Options struct {
	MaxEntries int
	MaxBytes   int64
	TTL        time.Duration
}

var (
	ThumbnailDefaults = Options{MaxEntries: 100, MaxBytes: 5_000_000, TTL: 24 * time.Hour}
	ListDefaults      = Options{MaxEntries: 500, MaxBytes: 50_000_000, TTL: time.Hour}
)

type sized[V any] struct {
	value V
	size  int64
}

// budgeted layers a byte budget over an expirable LRU. Recency is refreshed
// by Get; the expiry deadline is not.
type budgeted[V any] struct {
	mu       sync.Mutex // serializes writers so the byte count stays exact
	lru      *expirable.LRU[string, sized[V]]
	bytes    atomic.Int64
	maxBytes int64
}

func newBudgeted[V any](opts Options) *budgeted[V] {
	b := &budgeted[V]{maxBytes: opts.MaxBytes}
	// The callback runs under the LRU's own lock, including from its expiry
	// goroutine, so it must only touch the atomic counter.
	b.lru = expirable.NewLRU[string, sized[V]](opts.MaxEntries, func(_ string, e sized[V]) {
		b.bytes.Add(-e.size)
	}, opts.TTL)
	return b
}

func (b *budgeted[V]) get(key string) (V, bool) {
	e, ok := b.lru.Get(key)
	return e.value, ok
}

// set stores value and evicts least recently used entries until the byte
// budget holds. A value larger than the whole budget is not stored.
func (b *budgeted[V]) set(key string, value V, size int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lru.Remove(key)
	if b.maxBytes > 0 && size > b.maxBytes {
		return false
	}

	b.bytes.Add(size)
	b.lru.Add(key, sized[V]{value: value, size: size})

	for b.maxBytes > 0 && b.bytes.Load() > b.maxBytes {
		if _, _, ok := b.lru.RemoveOldest(); !ok {
			break
		}
	}
	_, ok := b.lru.Peek(key)
	return ok
}

func (b *budgeted[V]) remove(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lru.Remove(key)
}

func (b *budgeted[V]) purge() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lru.Purge()
}

func (b *budgeted[V]) len() int {
	return b.lru.Len()
}

func (b *budgeted[V]) size() int64 {
	return b.bytes.Load()
}
