package ledger

import (
	"context"
	"sync"
)

// Store is the durable mirror of the violation ledger. It is a passive
// key-value collection: only the ledger's load and sync routines touch it.
type Store interface {
	Upsert(ctx context.Context, rec Record) error
	LoadAll(ctx context.Context) ([]Record, error)
}

// MemStore is an in-memory Store, for tests and for running without a
// database file.
type MemStore struct {
	mu   sync.Mutex
	recs map[int64]Record
}

func NewMemStore() *MemStore {
	return &MemStore{
		recs: make(map[int64]Record),
	}
}

func (s *MemStore) Upsert(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.UserID] = rec
	return nil
}

func (s *MemStore) LoadAll(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.recs))
	for _, rec := range s.recs {
		out = append(out, rec)
	}
	return out, nil
}

var _ Store = (*MemStore)(nil)
