package opstore

import (
	"context"
	"sync"

	"detcover/pkg/models"
)

// MemoryStore is a thread-safe in-process operation store. It backs tests
// and standalone deployments where operations are pushed in over the API.
type MemoryStore struct {
	mu    sync.RWMutex
	ops   map[string]*models.Operation
	order []string
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ops: make(map[string]*models.Operation)}
}

// Add inserts or replaces an operation.
func (s *MemoryStore) Add(op *models.Operation) {
	if op == nil || op.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ops[op.ID]; !exists {
		s.order = append(s.order, op.ID)
	}
	s.ops[op.ID] = op
}

// Locate returns operations matching the filter in insertion order.
func (s *MemoryStore) Locate(ctx context.Context, f Filter) ([]*models.Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if f.ID != "" {
		if op, ok := s.ops[f.ID]; ok {
			return []*models.Operation{op}, nil
		}
		return nil, nil
	}

	out := make([]*models.Operation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.ops[id])
	}
	return out, nil
}
