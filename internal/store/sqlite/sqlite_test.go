package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive-backend/internal/store"
	"github.com/taskhive/taskhive-backend/internal/store/sqlite"
	"github.com/taskhive/taskhive-backend/internal/store/storetest"
)

func TestSQLiteStore_Compliance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := sqlite.New(filepath.Join(t.TempDir(), "taskhive.db"))
		require.NoError(t, err)
		return s
	})
}

func TestSQLiteStore_SchemaIdempotent(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "taskhive.db"))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	require.NoError(t, sqlite.EnsureSchema(db))
	require.NoError(t, sqlite.EnsureSchema(db))
}
