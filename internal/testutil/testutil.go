// Package testutil provides shared helpers for integration tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/windrose/windrose/internal/database"
)

// NewTestStore opens a migrated catalog store in a per-test temp directory.
// The store is closed and the directory removed when the test ends.
func NewTestStore(t *testing.T) *database.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "windrose.db")
	store, err := database.Open(dbPath, NewTestLogger(t))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// NewTestLogger returns a logger that writes through t.Log.
func NewTestLogger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}
