package cache

import "sync"

// AllVideosKey is the sentinel key for the full video list snapshot.
const AllVideosKey = "videos:all"

// ListCache holds list snapshots keyed by a sentinel. Size is charged
// through sizeOf and used only for the cache's own accounting.
//
// Every Invalidate advances a generation. A reader that loads from the store
// takes Generation first and stores with SetIfCurrent, so a snapshot read
// before a write can never be put back after that write's invalidation.
type ListCache[V any] struct {
	c      *budgeted[V]
	sizeOf func(V) int64

	mu  sync.Mutex
	gen uint64
}

func NewListCache[V any](opts Options, sizeOf func(V) int64) *ListCache[V] {
	if sizeOf == nil {
		sizeOf = func(V) int64 { return 1 }
	}
	return &ListCache[V]{c: newBudgeted[V](opts), sizeOf: sizeOf}
}

func (l *ListCache[V]) Get(key string) (V, bool) {
	return l.c.get(key)
}

func (l *ListCache[V]) Set(key string, value V) bool {
	return l.c.set(key, value, l.sizeOf(value))
}

// Generation returns the current invalidation generation.
func (l *ListCache[V]) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

// SetIfCurrent stores value only if no Invalidate happened since gen was
// read. It reports whether the value was stored.
func (l *ListCache[V]) SetIfCurrent(key string, value V, gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return false
	}
	return l.c.set(key, value, l.sizeOf(value))
}

// Invalidate drops key synchronously; a Get after Invalidate returns absent.
func (l *ListCache[V]) Invalidate(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.c.remove(key)
}

func (l *ListCache[V]) Len() int {
	return l.c.len()
}

func (l *ListCache[V]) Bytes() int64 {
	return l.c.size()
}
