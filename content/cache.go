package content

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedStore serves repeated reads from an expiring LRU, the way the
// hosted edge cache does for the site. Any write through it purges the cache.
//
// A read that overlaps a write may have fetched the old data; gen makes such
// a read skip filling the cache once a purge has happened since it started.
type CachedStore struct {
	inner   Store
	queries *expirable.LRU[string, []Document]
	docs    *expirable.LRU[string, Document]

	mu  sync.Mutex
	gen uint64
}

// NewCachedStore wraps inner with a cache of size entries living ttl.
func NewCachedStore(inner Store, size int, ttl time.Duration) *CachedStore {
	if size <= 0 {
		size = 256
	}
	return &CachedStore{
		inner:   inner,
		queries: expirable.NewLRU[string, []Document](size, nil, ttl),
		docs:    expirable.NewLRU[string, Document](size, nil, ttl),
	}
}

// Query serves q from cache when possible.
func (c *CachedStore) Query(ctx context.Context, q Query) ([]Document, error) {
	key := cacheKey(q)
	if docs, ok := c.queries.Get(key); ok {
		return cloneDocs(docs), nil
	}
	gen := c.generation()
	docs, err := c.inner.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	c.fill(gen, func() { c.queries.Add(key, cloneDocs(docs)) })
	return docs, nil
}

// Get serves a document from cache when possible. Misses are not cached.
func (c *CachedStore) Get(ctx context.Context, id string) (Document, error) {
	if doc, ok := c.docs.Get(id); ok {
		return doc.Clone(), nil
	}
	gen := c.generation()
	doc, err := c.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.fill(gen, func() { c.docs.Add(id, doc.Clone()) })
	return doc, nil
}

// Mutate writes through and purges.
func (c *CachedStore) Mutate(ctx context.Context, tx *Transaction) (*MutationResult, error) {
	defer c.Purge()
	return c.inner.Mutate(ctx, tx)
}

// Upload writes through and purges.
func (c *CachedStore) Upload(ctx context.Context, kind AssetKind, filename string, body []byte) (*Asset, error) {
	defer c.Purge()
	return c.inner.Upload(ctx, kind, filename, body)
}

// Purge drops every cached entry.
func (c *CachedStore) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.queries.Purge()
	c.docs.Purge()
}

func (c *CachedStore) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// fill runs add unless the cache was purged after gen was read.
func (c *CachedStore) fill(gen uint64, add func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		add()
	}
}

func cacheKey(q Query) string {
	groq, params := q.GROQ()
	raw, err := json.Marshal(params)
	if err != nil {
		return groq
	}
	return groq + "|" + string(raw)
}

func cloneDocs(docs []Document) []Document {
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}
