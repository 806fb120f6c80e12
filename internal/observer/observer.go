// Package observer defines the note observer contract and the registry
// that orders and dispatches notification rounds.
package observer

import (
	"context"

	"github.com/starford/norg/internal/models"
)

// Reserved observer names whose dispatch position is pinned regardless of
// declared priority: the tag index runs after every unpinned observer, and
// the store runs last overall.
const (
	NameTagIndex = "tag_index"
	NameStore    = "sqlite"
)

// Observer is a pluggable handler invoked on note lifecycle events. It may
// contribute metadata, replacement content, both, or neither (nil result).
//
// Name must be unique and stable; Priority orders unpinned observers
// (higher runs earlier, default 0). OnEvent may block for the duration of
// its own I/O; dispatch is strictly sequential within a round.
type Observer interface {
	Name() string
	Priority() int
	OnEvent(ctx context.Context, event models.NoteEvent) (*models.ObserverResult, error)
}
