package hashcache

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testCache(t *testing.T) *FileCache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "content_hashes.json")
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewFileCache(path, logger)
}

func TestGet_MissingFile(t *testing.T) {
	c := testCache(t)
	if _, ok := c.Get("Demo"); ok {
		t.Error("expected no entry for fresh cache")
	}
}

func TestPutThenGet(t *testing.T) {
	c := testCache(t)
	if err := c.Put("Demo", "abc123"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	digest, ok := c.Get("Demo")
	if !ok || digest != "abc123" {
		t.Errorf("Get = (%q, %v), want (abc123, true)", digest, ok)
	}
}

func TestPut_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content_hashes.json")
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	first := NewFileCache(path, logger)
	if err := first.Put("Demo", "d1"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	second := NewFileCache(path, logger)
	digest, ok := second.Get("Demo")
	if !ok || digest != "d1" {
		t.Errorf("Get after reopen = (%q, %v), want (d1, true)", digest, ok)
	}
}

func TestLoad_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content_hashes.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	c := NewFileCache(path, logger)
	if _, ok := c.Get("anything"); ok {
		t.Error("corrupt cache should behave as empty")
	}
	if err := c.Put("Demo", "d2"); err != nil {
		t.Fatalf("Put over corrupt file: %v", err)
	}
	if digest, ok := c.Get("Demo"); !ok || digest != "d2" {
		t.Errorf("Get = (%q, %v), want (d2, true)", digest, ok)
	}
}
