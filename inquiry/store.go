// Package inquiry records purchase-information requests submitted from the
// site and notifies the sales contact.
package inquiry

import (
	"context"
	"slices"
	"sync"

	"github.com/kardainfra/karda/models"
)

// Store persists submitted inquiries.
type Store interface {
	Save(ctx context.Context, in *models.Inquiry) error
	List(ctx context.Context) ([]models.Inquiry, error)
}

// MemoryStore keeps inquiries in process, newest last.
type MemoryStore struct {
	mu        sync.Mutex
	inquiries []models.Inquiry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(_ context.Context, in *models.Inquiry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inquiries = append(m.inquiries, *in)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]models.Inquiry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.inquiries), nil
}
