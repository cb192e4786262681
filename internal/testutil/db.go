package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tmerge/internal/store"
)

// OpenStore opens a fresh database in the test's temp dir and runs ddl
// against it. The store is closed when the test ends.
func OpenStore(t testing.TB, ddl string) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	if ddl != "" {
		require.NoError(t, s.Exec(context.Background(), ddl))
	}
	return s
}

// DatabaseFile creates a database file holding ddl and returns its path,
// for code that opens the database itself.
func DatabaseFile(t testing.TB, ddl string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	defer s.Close()
	if ddl != "" {
		require.NoError(t, s.Exec(context.Background(), ddl))
	}
	return path
}
