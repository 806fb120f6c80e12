// Package observers contains the built-in observers: timestamp stamping,
// the tag index, and table-of-contents generation.
package observers

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/norg/internal/metadata"
	"github.com/starford/norg/internal/models"
	"github.com/starford/norg/internal/note"
	"github.com/starford/norg/internal/observer"
)

// Timestamp stamps created_at (once) and updated_at (every sync).
type Timestamp struct {
	logger *slog.Logger
	now    func() time.Time
}

var _ observer.Observer = (*Timestamp)(nil)

// NewTimestamp creates the timestamp observer.
func NewTimestamp(logger *slog.Logger) *Timestamp {
	return &Timestamp{logger: logger, now: time.Now}
}

// Name implements observer.Observer.
func (t *Timestamp) Name() string { return "timestamp" }

// Priority implements observer.Observer.
func (t *Timestamp) Priority() int { return 0 }

// OnEvent contributes timestamp metadata. The merger guarantees an
// existing created_at is never overwritten, so echoing one here is safe.
func (t *Timestamp) OnEvent(_ context.Context, event models.NoteEvent) (*models.ObserverResult, error) {
	now := t.now().Format(note.TimeFormat)
	md := map[string]string{metadata.KeyUpdatedAt: now}

	switch event.Kind {
	case models.EventCreated:
		if _, ok := event.Frontmatter[metadata.KeyCreatedAt]; !ok {
			md[metadata.KeyCreatedAt] = now
		}
	default:
		if created, ok := event.Frontmatter[metadata.KeyCreatedAt]; ok {
			md[metadata.KeyCreatedAt] = created
		}
	}

	t.logger.Debug("timestamp: stamped", slog.String("title", event.Title))
	return &models.ObserverResult{Metadata: md}, nil
}
