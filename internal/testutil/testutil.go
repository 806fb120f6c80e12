// Package testutil provides shared test helpers for setting up vaults,
// stores and observer registries.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/norg/internal/observer"
	"github.com/starford/norg/internal/sqlstore"
	"github.com/starford/norg/internal/storage"
)

// Logger returns a JSON logger that only surfaces errors, keeping test
// output quiet.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestDB creates a temporary SQLite store that is automatically cleaned up.
func TestDB(t *testing.T) *sqlstore.DB {
	t.Helper()
	db, err := sqlstore.Open(filepath.Join(t.TempDir(), "norg-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// TestRegistry creates a registry preloaded with the given observers.
func TestRegistry(t *testing.T, obs ...observer.Observer) *observer.Registry {
	t.Helper()
	registry := observer.NewRegistry(Logger())
	for _, o := range obs {
		registry.Register(o)
	}
	return registry
}
