package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensewizard/internal/catalog"
	"expensewizard/internal/core"
	"expensewizard/internal/wizard"
)

func newSessionStore(t *testing.T, size int, counts *[]int) *Sessions {
	t.Helper()
	rules := core.NewRules(catalog.Default(), core.DefaultPolicy())
	steps := wizard.DefaultSteps(rules)
	return NewSessions(size, time.Hour,
		func() *wizard.Engine { return wizard.New(steps, rules, nil) },
		func(n int) { *counts = append(*counts, n) },
	)
}

func TestSessions(t *testing.T) {
	var counts []int
	s := newSessionStore(t, 2, &counts)

	id1, e1 := s.Create()
	id2, _ := s.Create()
	assert.NotEqual(t, id1, id2)

	got, ok := s.Get(id1)
	require.True(t, ok)
	assert.Same(t, e1, got)

	// id2 is now least recently used and makes room for the third session.
	id3, _ := s.Create()
	assert.Equal(t, 2, s.Len())
	_, ok = s.Get(id2)
	assert.False(t, ok)
	_, ok = s.Get(id3)
	assert.True(t, ok)

	s.Delete(id1)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, counts[len(counts)-1])
}

func TestSessionsIsolated(t *testing.T) {
	var counts []int
	s := newSessionStore(t, 10, &counts)

	_, a := s.Create()
	_, b := s.Create()
	require.NoError(t, a.SetField(core.FieldUser, "Tyler"))
	assert.Empty(t, b.Snapshot().Draft.User)
	assert.Equal(t, []int{1, 2}, counts)
}
