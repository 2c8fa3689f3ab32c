package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensewizard/internal/config"
	"expensewizard/internal/sheets/memory"
	"expensewizard/internal/storage"
)

func TestFactory_PrimaryStore(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		f := NewFactory(&config.Config{DataBackend: config.BackendMemory}, nil)
		s, err := f.PrimaryStore()
		require.NoError(t, err)
		assert.IsType(t, &storage.MemoryStore{}, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		f := NewFactory(&config.Config{
			DataBackend:  config.BackendSQLite,
			SQLiteDBPath: filepath.Join(t.TempDir(), "spese.db"),
		}, nil)
		s, err := f.PrimaryStore()
		require.NoError(t, err)
		repo, ok := s.(*storage.SQLiteRepository)
		require.True(t, ok)
		assert.NoError(t, repo.Close())
	})

	t.Run("unknown", func(t *testing.T) {
		f := NewFactory(&config.Config{DataBackend: "postgres"}, nil)
		_, err := f.PrimaryStore()
		assert.ErrorContains(t, err, "unsupported data backend")
	})
}

func TestFactory_ExternalSync(t *testing.T) {
	ctx := context.Background()

	ext, err := NewFactory(&config.Config{ExternalSync: config.SyncNone}, nil).ExternalSync(ctx)
	require.NoError(t, err)
	assert.Nil(t, ext)

	ext, err = NewFactory(&config.Config{ExternalSync: config.SyncMemory}, nil).ExternalSync(ctx)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, ext)

	_, err = NewFactory(&config.Config{ExternalSync: config.SyncSheets}, nil).ExternalSync(ctx)
	assert.ErrorContains(t, err, "Google Sheets")

	_, err = NewFactory(&config.Config{ExternalSync: "fax"}, nil).ExternalSync(ctx)
	assert.ErrorContains(t, err, "unsupported external sync")
}
