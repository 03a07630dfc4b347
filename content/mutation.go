package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Operation names the kind of a mutation.
type Operation string

const (
	OpCreate          Operation = "create"
	OpCreateOrReplace Operation = "createOrReplace"
	OpPatch           Operation = "patch"
	OpDelete          Operation = "delete"
)

// Mutation is one write inside a transaction.
type Mutation struct {
	Op       Operation
	Document Document
	ID       string
	Query    *Query
	Set      map[string]any
	Unset    []string
}

// MarshalJSON renders the mutation in the store's wire shape.
func (m Mutation) MarshalJSON() ([]byte, error) {
	switch m.Op {
	case OpCreate, OpCreateOrReplace:
		return json.Marshal(map[string]any{string(m.Op): m.Document})
	case OpPatch:
		patch := map[string]any{"id": m.ID}
		if len(m.Set) > 0 {
			patch["set"] = m.Set
		}
		if len(m.Unset) > 0 {
			patch["unset"] = m.Unset
		}
		return json.Marshal(map[string]any{"patch": patch})
	case OpDelete:
		if m.Query != nil {
			groq, params := m.Query.GROQ()
			return json.Marshal(map[string]any{"delete": map[string]any{"query": groq, "params": params}})
		}
		return json.Marshal(map[string]any{"delete": map[string]any{"id": m.ID}})
	default:
		return nil, fmt.Errorf("content: unknown mutation %q", m.Op)
	}
}

// MutationResult is the store's answer to a committed transaction.
type MutationResult struct {
	TransactionID string       `json:"transactionId"`
	Results       []ResultItem `json:"results"`
}

// ResultItem describes the effect on one document.
type ResultItem struct {
	ID        string   `json:"id"`
	Operation string   `json:"operation"`
	Document  Document `json:"document,omitempty"`
}

// Transaction batches mutations that are applied atomically.
type Transaction struct {
	ID        string
	store     Store
	mutations []Mutation
	err       error
}

// NewTransaction starts an empty transaction committed against s.
func NewTransaction(s Store) *Transaction {
	return &Transaction{ID: uuid.NewString(), store: s}
}

// Mutations returns the queued mutations.
func (tx *Transaction) Mutations() []Mutation {
	return tx.mutations
}

// Len is the number of queued mutations.
func (tx *Transaction) Len() int {
	return len(tx.mutations)
}

// Create queues a create. The document must carry a _type.
func (tx *Transaction) Create(doc Document) *Transaction {
	return tx.add(OpCreate, doc)
}

// CreateOrReplace queues a create-or-replace. The document must carry an _id.
func (tx *Transaction) CreateOrReplace(doc Document) *Transaction {
	if tx.err == nil && doc.ID() == "" {
		tx.err = errors.New("content: createOrReplace requires an _id")
	}
	return tx.add(OpCreateOrReplace, doc)
}

// Delete queues the removal of one document.
func (tx *Transaction) Delete(id string) *Transaction {
	tx.mutations = append(tx.mutations, Mutation{Op: OpDelete, ID: id})
	return tx
}

// DeleteQuery queues the removal of every document matching q.
func (tx *Transaction) DeleteQuery(q Query) *Transaction {
	tx.mutations = append(tx.mutations, Mutation{Op: OpDelete, Query: &q})
	return tx
}

// Patch queues a patch built with NewPatch.
func (tx *Transaction) Patch(p *Patch) *Transaction {
	tx.mutations = append(tx.mutations, p.mutation())
	return tx
}

// Commit sends the transaction to its store.
func (tx *Transaction) Commit(ctx context.Context) (*MutationResult, error) {
	if tx.err != nil {
		return nil, tx.err
	}
	if tx.store == nil {
		return nil, errors.New("content: transaction has no store")
	}
	if len(tx.mutations) == 0 {
		return &MutationResult{TransactionID: tx.ID}, nil
	}
	return tx.store.Mutate(ctx, tx)
}

func (tx *Transaction) add(op Operation, doc Document) *Transaction {
	if tx.err == nil && doc.Type() == "" {
		tx.err = fmt.Errorf("content: %s requires a _type", op)
	}
	tx.mutations = append(tx.mutations, Mutation{Op: op, Document: doc.Clone()})
	return tx
}

// Patch sets and unsets fields on one existing document.
type Patch struct {
	store Store
	id    string
	set   map[string]any
	unset []string
}

// NewPatch starts a patch of document id, committed against s.
func NewPatch(s Store, id string) *Patch {
	return &Patch{store: s, id: id, set: make(map[string]any)}
}

// Set assigns fields. Keys may be dotted paths into nested objects.
func (p *Patch) Set(fields map[string]any) *Patch {
	for k, v := range fields {
		p.set[k] = v
	}
	return p
}

// Unset removes fields.
func (p *Patch) Unset(keys ...string) *Patch {
	p.unset = append(p.unset, keys...)
	return p
}

// Commit applies the patch and returns the updated document.
func (p *Patch) Commit(ctx context.Context) (Document, error) {
	if p.id == "" {
		return nil, errors.New("content: patch requires a document id")
	}
	res, err := NewTransaction(p.store).Patch(p).Commit(ctx)
	if err != nil {
		return nil, err
	}
	for _, item := range res.Results {
		if item.ID == p.id && item.Document != nil {
			return item.Document, nil
		}
	}
	return p.store.Get(ctx, p.id)
}

func (p *Patch) mutation() Mutation {
	return Mutation{Op: OpPatch, ID: p.id, Set: p.set, Unset: p.unset}
}
