package http

import (
	"time"

	"github.com/google/uuid"

	"expensewizard/internal/cache"
	"expensewizard/internal/wizard"
)

// Sessions keeps live wizards keyed by an opaque id. Idle sessions expire
// after the TTL; the least recently used one is dropped when full.
type Sessions struct {
	lru       *cache.LRU[*wizard.Engine]
	newEngine func() *wizard.Engine
	newID     func() string
	onChange  func(n int)
}

// NewSessions builds a session store. onChange, when set, receives the
// session count after every create, delete or eviction.
func NewSessions(maxSize int, ttl time.Duration, newEngine func() *wizard.Engine, onChange func(n int)) *Sessions {
	s := &Sessions{
		newEngine: newEngine,
		newID:     uuid.NewString,
		onChange:  onChange,
	}
	s.lru = cache.NewLRU(maxSize, ttl,
		cache.WithSlidingExpiry[*wizard.Engine](),
		cache.WithEvictCallback(func(string, *wizard.Engine) { s.changed() }),
	)
	return s
}

// Create starts a new wizard and returns its id.
func (s *Sessions) Create() (string, *wizard.Engine) {
	id := s.newID()
	e := s.newEngine()
	s.lru.Set(id, e)
	s.changed()
	return id, e
}

// Get returns the wizard for id and refreshes its expiry.
func (s *Sessions) Get(id string) (*wizard.Engine, bool) {
	return s.lru.Get(id)
}

// Delete discards the wizard for id.
func (s *Sessions) Delete(id string) {
	s.lru.Delete(id)
	s.changed()
}

func (s *Sessions) Len() int {
	return s.lru.Len()
}

// Cache exposes the backing cache to the janitor.
func (s *Sessions) Cache() cache.Cleaner {
	return s.lru
}

func (s *Sessions) changed() {
	if s.onChange != nil {
		s.onChange(s.lru.Len())
	}
}
