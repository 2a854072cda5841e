// Package testutil provides shared test helpers for setting up local caches
// and loggers.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/sinorat/sinorat/internal/cache"
)

// TestCache creates a temporary SQLite cache that is automatically cleaned up.
func TestCache(t *testing.T) *cache.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "sinorat-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := cache.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// DiscardLogger returns a logger whose output goes nowhere.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
