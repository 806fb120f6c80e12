// Package apperr defines sentinel errors shared by the sync workflow and
// its HTTP and MCP surfaces.
package apperr

import "errors"

// ErrNoteNotFound marks operations addressed at a title with no backing
// vault file.
var ErrNoteNotFound = errors.New("note not found")
