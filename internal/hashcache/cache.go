// Package hashcache persists per-note content digests used to decide
// whether a note needs reprocessing.
package hashcache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Cache maps note titles to content digests. Implementations decide how
// the mapping is persisted; callers only get and put by key.
type Cache interface {
	// Get returns the stored digest for title and whether one exists.
	Get(title string) (string, bool)
	// Put records the digest for title.
	Put(title, digest string) error
}

// FileCache stores the mapping as a single JSON object on disk. Every
// operation re-reads and rewrites the whole file. There is no cross-process
// locking: concurrent writers race and the last one wins. Acceptable for a
// single-user, single-process tool; do not share the file across processes.
type FileCache struct {
	path   string
	logger *slog.Logger
}

// NewFileCache creates a file-backed cache at path.
func NewFileCache(path string, logger *slog.Logger) *FileCache {
	return &FileCache{path: path, logger: logger}
}

// DefaultPath returns the per-user cache file location, falling back to a
// local data directory when the user cache dir cannot be resolved.
func DefaultPath() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join("data", "content_hashes.json")
	}
	return filepath.Join(base, "norg", "content_hashes.json")
}

// Get reads the cache file and looks up title. A missing or unreadable
// file is treated as an empty cache.
func (c *FileCache) Get(title string) (string, bool) {
	entries := c.load()
	digest, ok := entries[title]
	return digest, ok
}

// Put records the digest for title and rewrites the cache file.
func (c *FileCache) Put(title, digest string) error {
	entries := c.load()
	entries[title] = digest
	return c.save(entries)
}

func (c *FileCache) load() map[string]string {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return make(map[string]string)
	}
	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		c.logger.Warn("hashcache: parse failed, starting empty",
			slog.String("path", c.path),
			slog.String("error", err.Error()))
		return make(map[string]string)
	}
	if entries == nil {
		entries = make(map[string]string)
	}
	return entries
}

func (c *FileCache) save(entries map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("hashcache: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("hashcache: marshal: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("hashcache: write: %w", err)
	}
	return nil
}
