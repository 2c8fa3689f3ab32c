package attachments

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensewizard/internal/core"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestLocalStore_Resolve(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	s, err := NewLocalStore(dir, "http://localhost:8081/uploads/", nil)
	require.NoError(t, err)
	s.newName = func() string { return "fixed" }

	url, err := s.Resolve(context.Background(), &core.Attachment{Filename: "r.png", Data: pngHeader})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8081/uploads/fixed.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "fixed.png"))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestLocalStore_UniqueNames(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "/uploads", nil)
	require.NoError(t, err)

	a, err := s.Resolve(context.Background(), &core.Attachment{Data: pngHeader})
	require.NoError(t, err)
	b, err := s.Resolve(context.Background(), &core.Attachment{Data: pngHeader})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "/uploads/"))
}

func TestLocalStore_Rejects(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "/uploads", nil)
	require.NoError(t, err)

	_, err = s.Resolve(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = s.Resolve(context.Background(), &core.Attachment{Data: []byte("#!/bin/sh\necho hi\n")})
	assert.ErrorIs(t, err, ErrUnsupported)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Resolve(ctx, &core.Attachment{Data: pngHeader})
	assert.ErrorIs(t, err, context.Canceled)
}
