package api

// AddNoteRequest is the body of POST /api/notes.
type AddNoteRequest struct {
	Title       string            `json:"title"`
	Content     string            `json:"content"`
	Frontmatter map[string]string `json:"frontmatter,omitempty"`
}

// SyncRequest is the body of POST /api/sync. An empty Title syncs the
// whole vault.
type SyncRequest struct {
	Title         string `json:"title,omitempty"`
	SkipHashCheck bool   `json:"skip_hash_check,omitempty"`
}

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Query string `json:"query"`
}

// NoteSummary is one entry of the note listing.
type NoteSummary struct {
	Title       string            `json:"title"`
	Path        string            `json:"path"`
	Frontmatter map[string]string `json:"frontmatter"`
}

// NoteListResponse is the body of GET /api/notes.
type NoteListResponse struct {
	Notes []NoteSummary `json:"notes"`
	Total int           `json:"total"`
}

// ObserverInfo describes one registered observer in dispatch order.
type ObserverInfo struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
}

type statusResponse struct {
	Status string `json:"status"`
}
