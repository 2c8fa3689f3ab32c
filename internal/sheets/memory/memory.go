// Package memory is an in-process stand-in for the external mirror, used
// in development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"expensewizard/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	docs []sheets.Document
	fail error
}

func New() *Store {
	return &Store{}
}

// SyncExpense records doc and returns a synthetic row reference.
func (s *Store) SyncExpense(ctx context.Context, doc sheets.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", sheets.NetworkError(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	s.docs = append(s.docs, doc)
	return fmt.Sprintf("mem:%d", len(s.docs)), nil
}

// FailWith makes every following SyncExpense return err; nil restores normal operation.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Documents returns a copy of everything mirrored so far.
func (s *Store) Documents() []sheets.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.Document(nil), s.docs...)
}
