package cache

// ThumbnailCache maps a source media URI to the URI of its thumbnail.
type ThumbnailCache struct {
	c *budgeted[string]
}

func NewThumbnailCache(opts Options) *ThumbnailCache {
	return &ThumbnailCache{c: newBudgeted[string](opts)}
}

// Get returns the cached thumbnail for uri and marks it recently used.
func (t *ThumbnailCache) Get(uri string) (string, bool) {
	return t.c.get(uri)
}

// Set caches thumb for uri. size is the byte cost charged against the
// budget; when zero or negative the length of thumb is used. It reports
// whether the entry was kept.
func (t *ThumbnailCache) Set(uri, thumb string, size int64) bool {
	if size <= 0 {
		size = int64(len(thumb))
	}
	return t.c.set(uri, thumb, size)
}

func (t *ThumbnailCache) Remove(uri string) {
	t.c.remove(uri)
}

func (t *ThumbnailCache) Purge() {
	t.c.purge()
}

func (t *ThumbnailCache) Len() int {
	return t.c.len()
}

// Bytes is the aggregate size of live entries.
func (t *ThumbnailCache) Bytes() int64 {
	return t.c.size()
}
