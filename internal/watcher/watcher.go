// Package watcher turns filesystem change notifications into sync calls.
// Bursts for the same path are debounced, and a per-path in-flight marker
// keeps the orchestrator's own writes from re-triggering an endless loop.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/norg/internal/note"
)

// DefaultDebounce is the minimum interval between accepted events for the
// same path.
const DefaultDebounce = 100 * time.Millisecond

// permissionProbe is the throwaway file written before the watch loop
// starts to surface permission problems up front.
const permissionProbe = ".norg-permissions-check"

// SyncFunc is invoked for each accepted change, with the note title
// recovered from the changed path.
type SyncFunc func(ctx context.Context, title string) error

// Watcher watches a vault directory and triggers syncs.
type Watcher struct {
	root     string
	ext      string
	debounce time.Duration
	syncFn   SyncFunc
	logger   *slog.Logger

	mu           sync.Mutex
	lastAccepted map[string]time.Time
	inFlight     map[string]struct{}
}

// New creates a watcher over root for files carrying ext. A zero debounce
// selects DefaultDebounce.
func New(root, ext string, debounce time.Duration, syncFn SyncFunc, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		root:         root,
		ext:          ext,
		debounce:     debounce,
		syncFn:       syncFn,
		logger:       logger,
		lastAccepted: make(map[string]time.Time),
		inFlight:     make(map[string]struct{}),
	}
}

// Run watches the vault until ctx is cancelled. Syncs run inline on the
// event loop, one at a time; a sync already in flight is never cancelled,
// only the loop that would start new ones stops.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.preflight(); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: start: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.root); err != nil {
		return fmt.Errorf("watcher: watch %s: %w", w.root, err)
	}
	w.logger.Info("watcher: started",
		slog.String("root", w.root),
		slog.Duration("debounce", w.debounce))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.HasSuffix(ev.Name, "."+w.ext) {
				continue
			}
			w.handle(ctx, ev.Name)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: event source error", slog.String("error", err.Error()))
		}
	}
}

// preflight writes and removes a probe file so missing write permission
// fails loudly before the loop starts instead of on the first sync.
func (w *Watcher) preflight() error {
	probe := filepath.Join(w.root, permissionProbe)
	if err := os.WriteFile(probe, []byte("probe"), 0o644); err != nil {
		return fmt.Errorf("watcher: vault %s is not writable, check directory permissions: %w", w.root, err)
	}
	if err := os.Remove(probe); err != nil {
		w.logger.Warn("watcher: probe cleanup failed", slog.String("error", err.Error()))
	}
	return nil
}

// handle accepts or drops one change event for path, and runs the sync
// when accepted. The in-flight marker is held for the sync plus one
// debounce window and cleared by a deferred timer regardless of the sync
// outcome.
func (w *Watcher) handle(ctx context.Context, path string) {
	now := time.Now()

	w.mu.Lock()
	if _, busy := w.inFlight[path]; busy {
		w.mu.Unlock()
		w.logger.Debug("watcher: in flight, ignoring", slog.String("path", path))
		return
	}
	if last, ok := w.lastAccepted[path]; ok && now.Sub(last) < w.debounce {
		w.mu.Unlock()
		w.logger.Debug("watcher: debounced", slog.String("path", path))
		return
	}
	w.lastAccepted[path] = now
	w.inFlight[path] = struct{}{}
	w.mu.Unlock()

	title := note.TitleFromPath(path)
	w.logger.Info("watcher: change detected",
		slog.String("path", path),
		slog.String("title", title))

	if err := w.syncFn(ctx, title); err != nil {
		w.logger.Error("watcher: sync failed",
			slog.String("title", title),
			slog.String("error", err.Error()))
	}

	time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.inFlight, path)
		w.mu.Unlock()
	})
}
