package sqlstore

import (
	"context"
	"log/slog"

	"github.com/starford/norg/internal/models"
	"github.com/starford/norg/internal/observer"
)

// StoreObserver is the relational-store observer. It persists the event's
// frontmatter and rewrites embedded SQL blocks. Its name is reserved: the
// registry pins it to run strictly last, and the sync orchestrator invokes
// it in a separate phase whose errors abort the enclosing operation.
type StoreObserver struct {
	db       *DB
	rewriter *Rewriter
	logger   *slog.Logger
}

var _ observer.Observer = (*StoreObserver)(nil)

// NewObserver creates the store observer rendering links with ext.
func NewObserver(db *DB, ext string, logger *slog.Logger) *StoreObserver {
	return &StoreObserver{
		db:       db,
		rewriter: NewRewriter(db, ext, logger),
		logger:   logger,
	}
}

// Name implements observer.Observer.
func (o *StoreObserver) Name() string { return observer.NameStore }

// Priority implements observer.Observer. Ordering is pinned by name, not
// by this value.
func (o *StoreObserver) Priority() int { return 0 }

// OnEvent stores the event's frontmatter, then rewrites SQL blocks in the
// content. Store and query failures propagate: persistence correctness
// depends on them, so the caller aborts the sync operation.
func (o *StoreObserver) OnEvent(ctx context.Context, event models.NoteEvent) (*models.ObserverResult, error) {
	if err := o.db.StoreFrontmatter(ctx, event.Title, event.FilePath, event.Frontmatter); err != nil {
		return nil, err
	}
	o.logger.Debug("sqlstore: frontmatter stored", slog.String("title", event.Title))

	out, changed, err := o.rewriter.Rewrite(ctx, event.Content)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, nil
	}
	o.logger.Info("sqlstore: rewrote SQL blocks", slog.String("title", event.Title))
	return &models.ObserverResult{Content: &out}, nil
}

// Query exposes the store's query interface for the CLI and HTTP query
// surfaces.
func (o *StoreObserver) Query(ctx context.Context, query string) (*models.QueryResult, error) {
	return o.db.Query(ctx, query)
}

// Remove drops a note's rows from the store. Used when a note file is
// deleted from the vault.
func (o *StoreObserver) Remove(ctx context.Context, title string) error {
	return o.db.DeleteNote(ctx, title)
}
