// Package syncer implements the note-level workflow: add, sync-one and
// sync-all. Each operation builds an event, runs a notification round over
// the registered observers, reconciles metadata and content, and persists
// the note, twice when the store observer rewrites it.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/norg/internal/apperr"
	"github.com/starford/norg/internal/checksum"
	"github.com/starford/norg/internal/hashcache"
	"github.com/starford/norg/internal/metadata"
	"github.com/starford/norg/internal/models"
	"github.com/starford/norg/internal/note"
	"github.com/starford/norg/internal/observer"
	"github.com/starford/norg/internal/storage"
)

// keySkipObservers names the frontmatter field controlling which observers
// run for a note. The literal "all" skips every observer including the
// store; a comma list skips the named ones.
const keySkipObservers = "skip_observers"

// remover is implemented by the store observer so deleted notes can be
// dropped from the relational store as well.
type remover interface {
	Remove(ctx context.Context, title string) error
}

// Orchestrator drives note synchronization. Bulk sync is a sequential
// loop, one note end-to-end at a time, keeping store writes serialized.
type Orchestrator struct {
	store    storage.Provider
	registry *observer.Registry
	cache    hashcache.Cache
	ext      string
	logger   *slog.Logger
}

// New creates an orchestrator over the given vault, registry and
// idempotency cache. ext is the note file extension without the dot.
func New(store storage.Provider, registry *observer.Registry, cache hashcache.Cache, ext string, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		registry: registry,
		cache:    cache,
		ext:      ext,
		logger:   logger,
	}
}

// AddNote creates a new note from user-supplied content and frontmatter
// fields and runs the full observer pipeline over it.
func (s *Orchestrator) AddNote(ctx context.Context, title, content string, fields map[string]string) error {
	rel := note.FilenameForTitle(title, s.ext)
	event := models.NoteEvent{
		Kind:        models.EventCreated,
		Title:       title,
		Content:     content,
		FilePath:    filepath.Join(s.store.Root(), rel),
		Frontmatter: cloneFields(fields),
	}
	s.logger.Info("syncer: adding note", slog.String("title", title))
	return s.process(ctx, event)
}

// SyncAll processes every note file in the vault. Unless skipHashCheck is
// set, notes whose body digest matches the idempotency cache are skipped
// without invoking any observer.
func (s *Orchestrator) SyncAll(ctx context.Context, skipHashCheck bool) error {
	files, err := s.store.List(s.ext)
	if err != nil {
		return fmt.Errorf("syncer: list vault: %w", err)
	}
	s.logger.Info("syncer: sync started", slog.Int("files", len(files)))
	for _, info := range files {
		if err := s.syncFile(ctx, info, skipHashCheck); err != nil {
			return err
		}
	}
	return nil
}

// SyncOne processes a single note by title. Used by the watcher and the
// CLI sync command.
func (s *Orchestrator) SyncOne(ctx context.Context, title string, skipHashCheck bool) error {
	rel := note.FilenameForTitle(title, s.ext)
	info, err := s.store.Stat(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("syncer: %q: %w", title, apperr.ErrNoteNotFound)
		}
		return fmt.Errorf("syncer: note %q: %w", title, err)
	}
	return s.syncFile(ctx, info, skipHashCheck)
}

// DeleteNote removes a note file and, when a store observer is registered,
// its rows in the relational store.
func (s *Orchestrator) DeleteNote(ctx context.Context, title string) error {
	rel := note.FilenameForTitle(title, s.ext)
	if err := s.store.Delete(rel); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("syncer: %q: %w", title, apperr.ErrNoteNotFound)
		}
		return fmt.Errorf("syncer: delete %q: %w", title, err)
	}
	if o, ok := s.registry.Find(observer.NameStore); ok {
		if r, ok := o.(remover); ok {
			if err := r.Remove(ctx, title); err != nil {
				return fmt.Errorf("syncer: remove %q from store: %w", title, err)
			}
		}
	}
	s.logger.Info("syncer: note deleted", slog.String("title", title))
	return nil
}

// NoteInfo is one entry of a vault listing.
type NoteInfo struct {
	Title       string
	Path        string
	Frontmatter map[string]string
}

// ListNotes returns every note in the vault whose frontmatter matches the
// filter. A tags filter matches membership in the tag list; any other key
// matches by equality. Results are sorted by title.
func (s *Orchestrator) ListNotes(filter map[string]string) ([]NoteInfo, error) {
	files, err := s.store.List(s.ext)
	if err != nil {
		return nil, fmt.Errorf("syncer: list vault: %w", err)
	}
	var out []NoteInfo
	for _, info := range files {
		data, err := s.store.Read(info.Path)
		if err != nil {
			return nil, err
		}
		_, fm := note.Parse(data, info.ModTime)
		if !matchesFilter(fm, filter) {
			continue
		}
		out = append(out, NoteInfo{
			Title:       note.TitleFromPath(info.Path),
			Path:        info.Path,
			Frontmatter: fm,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (s *Orchestrator) syncFile(ctx context.Context, info storage.FileInfo, skipHashCheck bool) error {
	data, err := s.store.Read(info.Path)
	if err != nil {
		return err
	}
	body, fm := note.Parse(data, info.ModTime)
	title := note.TitleFromPath(info.Path)

	if !skipHashCheck && !s.shouldProcess(title, body) {
		s.logger.Debug("syncer: note unchanged", slog.String("title", title))
		return nil
	}

	event := models.NoteEvent{
		Kind:        models.EventSynced,
		Title:       title,
		Content:     body,
		FilePath:    filepath.Join(s.store.Root(), info.Path),
		Frontmatter: fm,
	}
	return s.process(ctx, event)
}

// process runs the two-phase pipeline for one event. Phase one is a
// notification round over every non-store observer followed by the first
// write. Phase two invokes the store observer alone against the original
// event; when it returns replacement content the note is written a second
// time. Store failures abort the operation, leaving write #1 on disk.
func (s *Orchestrator) process(ctx context.Context, event models.NoteEvent) error {
	skipAll, skip := skipSet(event.Frontmatter)

	fields := cloneFields(event.Frontmatter)
	content := event.Content

	if !skipAll {
		roundSkip := make(map[string]struct{}, len(skip)+1)
		for name := range skip {
			roundSkip[name] = struct{}{}
		}
		// The store observer runs in its own phase below, never in the
		// round.
		roundSkip[observer.NameStore] = struct{}{}

		round := s.registry.Notify(ctx, event, roundSkip)
		metadata.Merge(fields, round.Metadata)
		if round.Content != nil {
			content = *round.Content
		}
	}

	rel := note.FilenameForTitle(event.Title, s.ext)
	if err := s.writeNote(event.Title, content, fields, rel); err != nil {
		return err
	}

	if skipAll {
		return nil
	}
	if _, skipped := skip[observer.NameStore]; skipped {
		return nil
	}
	storeObs, ok := s.registry.Find(observer.NameStore)
	if !ok {
		return nil
	}

	res, err := storeObs.OnEvent(ctx, event.Clone())
	if err != nil {
		// Write #1 stays on disk; indexing failures are not rolled back.
		return fmt.Errorf("syncer: store observer: %w", err)
	}
	if res != nil && res.Content != nil {
		if err := s.writeNote(event.Title, *res.Content, fields, rel); err != nil {
			return err
		}
	}
	return nil
}

func (s *Orchestrator) writeNote(title, content string, fields map[string]string, rel string) error {
	n := note.New(title, content, fields)
	rendered, err := n.Render()
	if err != nil {
		return err
	}
	if err := s.store.Write(rel, []byte(rendered)); err != nil {
		return fmt.Errorf("syncer: persist %q: %w", title, err)
	}
	return nil
}

// shouldProcess is the idempotency gate: it digests the note body and
// compares against the cached digest. An unchanged body leaves the cache
// untouched; a changed or unseen one updates it. The cache file is
// read-modify-written whole on every update; last writer wins.
func (s *Orchestrator) shouldProcess(title, body string) bool {
	digest := checksum.SumString(body)
	if cached, ok := s.cache.Get(title); ok && cached == digest {
		return false
	}
	if err := s.cache.Put(title, digest); err != nil {
		s.logger.Warn("syncer: cache update failed",
			slog.String("title", title),
			slog.String("error", err.Error()))
	}
	return true
}

func skipSet(fm map[string]string) (all bool, skip map[string]struct{}) {
	skip = make(map[string]struct{})
	raw, ok := fm[keySkipObservers]
	if !ok {
		return false, skip
	}
	if strings.TrimSpace(raw) == "all" {
		return true, skip
	}
	for _, name := range metadata.SplitList(raw) {
		skip[name] = struct{}{}
	}
	return false, skip
}

func cloneFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func matchesFilter(fm, filter map[string]string) bool {
	for key, want := range filter {
		got, ok := fm[key]
		if !ok {
			return false
		}
		if key == metadata.KeyTags || key == metadata.KeyTopics {
			found := false
			for _, tag := range metadata.SplitList(got) {
				if tag == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
			continue
		}
		if got != want {
			return false
		}
	}
	return true
}
