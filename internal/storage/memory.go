package storage

import (
	"context"
	"sync"
	"time"

	"expensewizard/internal/core"
)

// MemoryStore keeps records in a map keyed by id. Ids come from a counter
// starting at 1, incremented under the same lock as the insert.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	order  []int64
	items  map[int64]core.StoredExpense
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		items:  make(map[int64]core.StoredExpense),
		now:    time.Now,
	}
}

func (s *MemoryStore) CreateExpense(_ context.Context, rec core.ExpenseRecord) (core.StoredExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := core.StoredExpense{
		ID:            s.nextID,
		CreatedAt:     s.now().UTC(),
		ExpenseRecord: rec,
	}
	s.nextID++
	s.items[stored.ID] = stored
	s.order = append(s.order, stored.ID)
	return stored, nil
}

// ListExpenses returns records in insertion order.
func (s *MemoryStore) ListExpenses(_ context.Context) ([]core.StoredExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.StoredExpense, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out, nil
}

// GetExpense returns a single record by id.
func (s *MemoryStore) GetExpense(_ context.Context, id int64) (core.StoredExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[id]
	if !ok {
		return core.StoredExpense{}, ErrNotFound
	}
	return e, nil
}
