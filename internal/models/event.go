// Package models defines the domain types for norg.
package models

// EventKind classifies a note lifecycle event.
type EventKind string

// Event kinds.
const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventSynced  EventKind = "synced"
)

// NoteEvent is an immutable snapshot of a note at the moment a sync
// operation starts. Every observer in a notification round receives the
// same snapshot; intermediate observer output is never folded back in.
type NoteEvent struct {
	Kind        EventKind         `json:"kind"`
	Title       string            `json:"title"`
	Content     string            `json:"content"`
	FilePath    string            `json:"file_path"`
	Frontmatter map[string]string `json:"frontmatter"`
}

// Clone returns a deep copy of the event so observers cannot mutate the
// snapshot shared across a round.
func (e NoteEvent) Clone() NoteEvent {
	fm := make(map[string]string, len(e.Frontmatter))
	for k, v := range e.Frontmatter {
		fm[k] = v
	}
	out := e
	out.Frontmatter = fm
	return out
}

// ObserverResult is an observer's contribution for one event. A nil
// Metadata map means "no metadata opinion"; Content is a complete
// replacement body, applied last-writer-wins across the round.
type ObserverResult struct {
	Metadata map[string]string `json:"metadata,omitempty"`
	Content  *string           `json:"content,omitempty"`
}

// QueryResult holds the columns and rows returned by a store query.
type QueryResult struct {
	Columns []string            `json:"columns"`
	Rows    []map[string]string `json:"rows"`
}
