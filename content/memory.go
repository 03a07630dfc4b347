package content

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps documents and assets in process. It follows the hosted
// store's mutation rules and is used for local runs and tests.
type MemoryStore struct {
	projectID string
	dataset   string
	now       func() time.Time

	mu     sync.RWMutex
	docs   map[string]Document
	assets map[string]*Asset
	blobs  map[string][]byte
}

// NewMemoryStore creates an empty store. projectID and dataset only shape
// the asset URLs it hands out.
func NewMemoryStore(projectID, dataset string) *MemoryStore {
	return &MemoryStore{
		projectID: projectID,
		dataset:   dataset,
		now:       time.Now,
		docs:      make(map[string]Document),
		assets:    make(map[string]*Asset),
		blobs:     make(map[string][]byte),
	}
}

// Query returns matching documents.
func (m *MemoryStore) Query(_ context.Context, q Query) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]Document, 0, len(m.docs))
	for _, d := range m.docs {
		all = append(all, d)
	}
	return q.Apply(all), nil
}

// Get returns a copy of one document.
func (m *MemoryStore) Get(_ context.Context, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return d.Clone(), nil
}

// Len is the number of stored documents.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Mutate applies every mutation or none of them.
func (m *MemoryStore) Mutate(_ context.Context, tx *Transaction) (*MutationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := make(map[string]Document, len(m.docs))
	for id, d := range m.docs {
		staged[id] = d
	}

	now := m.now().UTC().Format(time.RFC3339Nano)
	result := &MutationResult{TransactionID: tx.ID}
	touched := make(map[string]int)

	record := func(id, op string, doc Document) {
		item := ResultItem{ID: id, Operation: op}
		if doc != nil {
			item.Document = doc.Clone()
		}
		if i, ok := touched[id]; ok {
			result.Results[i] = item
			return
		}
		touched[id] = len(result.Results)
		result.Results = append(result.Results, item)
	}

	for _, mut := range tx.Mutations() {
		switch mut.Op {
		case OpCreate, OpCreateOrReplace:
			doc, err := normalize(mut.Document)
			if err != nil {
				return nil, fmt.Errorf("normalize document: %w", err)
			}
			id := doc.ID()
			if id == "" {
				if mut.Op == OpCreateOrReplace {
					return nil, fmt.Errorf("createOrReplace: missing _id")
				}
				id = uuid.NewString()
				doc[KeyID] = id
			}
			existing, exists := staged[id]
			if exists && mut.Op == OpCreate {
				return nil, fmt.Errorf("create %s: %w", id, ErrConflict)
			}
			doc[KeyCreatedAt] = now
			if exists {
				doc[KeyCreatedAt] = existing[KeyCreatedAt]
			}
			doc[KeyUpdatedAt] = now
			doc[KeyRev] = newRevision()
			staged[id] = doc
			op := "create"
			if exists {
				op = "update"
			}
			record(id, op, doc)

		case OpPatch:
			existing, ok := staged[mut.ID]
			if !ok {
				return nil, fmt.Errorf("patch %s: %w", mut.ID, ErrNotFound)
			}
			doc := existing.Clone()
			set, err := normalize(Document(mut.Set))
			if err != nil {
				return nil, fmt.Errorf("normalize patch: %w", err)
			}
			for field, value := range set {
				setPath(doc, field, value)
			}
			for _, field := range mut.Unset {
				unsetPath(doc, field)
			}
			doc[KeyUpdatedAt] = now
			doc[KeyRev] = newRevision()
			staged[mut.ID] = doc
			record(mut.ID, "update", doc)

		case OpDelete:
			if mut.Query != nil {
				for id, d := range staged {
					if mut.Query.Matches(d) {
						delete(staged, id)
						record(id, "delete", nil)
					}
				}
				continue
			}
			if _, ok := staged[mut.ID]; ok {
				delete(staged, mut.ID)
				record(mut.ID, "delete", nil)
			}

		default:
			return nil, fmt.Errorf("content: unknown mutation %q", mut.Op)
		}
	}

	m.docs = staged
	return result, nil
}

// Upload stores an asset. Images must decode so their dimensions can be
// encoded into the asset id the way the hosted store does.
func (m *MemoryStore) Upload(_ context.Context, kind AssetKind, filename string, body []byte) (*Asset, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("upload %s: empty body", filename)
	}
	sum := sha1.Sum(body)
	hash := hex.EncodeToString(sum[:])

	asset := &Asset{
		Kind:             kind,
		OriginalFilename: filename,
		MimeType:         http.DetectContentType(body),
		Size:             int64(len(body)),
		SHA1:             hash,
	}

	switch kind {
	case AssetImage:
		cfg, format, err := image.DecodeConfig(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("upload %s: decode image: %w", filename, err)
		}
		if format == "jpeg" {
			format = "jpg"
		}
		ref := ImageRef{Hash: hash, Width: cfg.Width, Height: cfg.Height, Format: format}
		asset.ID = ref.String()
		asset.URL, _ = ImageURL(m.projectID, m.dataset, asset.ID, ImageOptions{})
	case AssetFile:
		ext := strings.TrimPrefix(path.Ext(filename), ".")
		if ext == "" {
			ext = "bin"
		}
		asset.ID = fmt.Sprintf("file-%s-%s", hash, ext)
		asset.URL, _ = FileURL(m.projectID, m.dataset, asset.ID)
	default:
		return nil, fmt.Errorf("upload %s: unknown asset kind %q", filename, kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[asset.ID] = asset
	m.blobs[asset.ID] = append([]byte(nil), body...)

	out := *asset
	return &out, nil
}

// Asset returns an uploaded asset by id.
func (m *MemoryStore) Asset(id string) (*Asset, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[id]
	if !ok {
		return nil, false
	}
	out := *a
	return &out, true
}

func newRevision() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:22]
}
