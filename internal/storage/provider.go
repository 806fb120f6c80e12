// Package storage defines the vault file-system abstraction.
package storage

import "time"

// FileInfo is lightweight metadata for one vault file.
type FileInfo struct {
	Path    string // relative to the vault root
	ModTime time.Time
}

// Provider is the interface for vault file operations. Paths are relative
// to the vault root.
type Provider interface {
	// List returns every file with the given extension under the root.
	List(ext string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Stat returns metadata for the file at path.
	Stat(path string) (FileInfo, error)
	// Root returns the absolute vault root directory.
	Root() string
}
