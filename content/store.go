package content

import "context"

// Store is a content store: the hosted API, the in-memory stand-in, or a
// cache in front of either.
type Store interface {
	Query(ctx context.Context, q Query) ([]Document, error)
	Get(ctx context.Context, id string) (Document, error)
	Mutate(ctx context.Context, tx *Transaction) (*MutationResult, error)
	Upload(ctx context.Context, kind AssetKind, filename string, body []byte) (*Asset, error)
}

// Transaction starts a transaction against c.
func (c *Client) Transaction() *Transaction { return NewTransaction(c) }

// Patch starts a patch of document id against c.
func (c *Client) Patch(id string) *Patch { return NewPatch(c, id) }

// Transaction starts a transaction against m.
func (m *MemoryStore) Transaction() *Transaction { return NewTransaction(m) }

// Patch starts a patch of document id against m.
func (m *MemoryStore) Patch(id string) *Patch { return NewPatch(m, id) }

// Transaction starts a transaction against the cache, purging it on commit.
func (c *CachedStore) Transaction() *Transaction { return NewTransaction(c) }

// Patch starts a patch of document id against the cache.
func (c *CachedStore) Patch(id string) *Patch { return NewPatch(c, id) }
