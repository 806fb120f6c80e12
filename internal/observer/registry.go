package observer

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/starford/norg/internal/metadata"
	"github.com/starford/norg/internal/models"
)

// Registry holds the ordered set of observers. Registration happens once
// at startup; the list is read-mostly and safe for concurrent rounds.
type Registry struct {
	mu        sync.RWMutex
	observers []Observer
	logger    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register appends an observer. There is no runtime removal.
func (r *Registry) Register(o Observer) {
	r.mu.Lock()
	r.observers = append(r.observers, o)
	r.mu.Unlock()
	r.logger.Info("registry: observer registered", slog.String("name", o.Name()))
}

// Observers returns the observers in dispatch order: a stable sort by
// priority descending, then the reserved names moved to the tail
// (tag_index, then the store strictly last).
func (r *Registry) Observers() []Observer {
	r.mu.RLock()
	out := make([]Observer, len(r.observers))
	copy(out, r.observers)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority() > out[j].Priority()
	})
	for _, pinned := range []string{NameTagIndex, NameStore} {
		for i, o := range out {
			if o.Name() == pinned {
				out = append(append(out[:i:i], out[i+1:]...), o)
				break
			}
		}
	}
	return out
}

// Find returns the registered observer with the given name.
func (r *Registry) Find(name string) (Observer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.observers {
		if o.Name() == name {
			return o, true
		}
	}
	return nil, false
}

// RoundResult is the outcome of one notification round: the folded
// metadata contributions and, when some observer supplied one, the winning
// replacement content (last writer in dispatch order).
type RoundResult struct {
	Metadata map[string]string
	Content  *string
}

// Notify runs one sequential notification round over every registered
// observer not named in skip. Each observer receives a clone of the same
// original event; content edits by earlier observers are not visible to
// later ones, only metadata accumulates. Per-observer errors are logged
// and treated as no contribution; the round itself never fails.
func (r *Registry) Notify(ctx context.Context, event models.NoteEvent, skip map[string]struct{}) RoundResult {
	result := RoundResult{Metadata: make(map[string]string)}

	for _, o := range r.Observers() {
		if _, skipped := skip[o.Name()]; skipped {
			r.logger.Debug("registry: observer skipped", slog.String("name", o.Name()))
			continue
		}

		r.logger.Debug("registry: dispatching",
			slog.String("name", o.Name()),
			slog.String("title", event.Title))

		res, err := o.OnEvent(ctx, event.Clone())
		if err != nil {
			r.logger.Error("registry: observer failed",
				slog.String("name", o.Name()),
				slog.String("error", err.Error()))
			continue
		}
		if res == nil {
			continue
		}
		if res.Metadata != nil {
			metadata.Merge(result.Metadata, res.Metadata)
		}
		if res.Content != nil {
			result.Content = res.Content
		}
	}

	return result
}
