package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/starford/norg/internal/apperr"
	"github.com/starford/norg/internal/models"
	"github.com/starford/norg/internal/observer"
	"github.com/starford/norg/internal/syncer"
)

// Querier executes read-only queries against the relational store.
type Querier interface {
	Query(ctx context.Context, query string) (*models.QueryResult, error)
}

// Publisher receives sync activity for fan-out to SSE clients.
type Publisher interface {
	PublishSyncEvent(kind, title string)
}

// Handler holds API route handlers.
type Handler struct {
	orch     *syncer.Orchestrator
	registry *observer.Registry
	querier  Querier
	publish  Publisher
}

// NewHandler creates a new Handler. querier and publish may be nil when
// the store or the SSE broker is not wired.
func NewHandler(orch *syncer.Orchestrator, registry *observer.Registry, querier Querier, publish Publisher) *Handler {
	return &Handler{orch: orch, registry: registry, querier: querier, publish: publish}
}

func (h *Handler) publishEvent(kind, title string) {
	if h.publish != nil {
		h.publish.PublishSyncEvent(kind, title)
	}
}

// noteTitle extracts the note title from the URL, tolerating
// percent-encoding from HTTP clients.
func noteTitle(r *http.Request) string {
	raw := chi.URLParam(r, "title")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListNotes handles GET /api/notes with an optional tag filter.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	filter := map[string]string{}
	if tag := r.URL.Query().Get("tag"); tag != "" {
		filter["tags"] = tag
	}

	notes, err := h.orch.ListNotes(filter)
	if err != nil {
		slog.Error("list notes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	resp := NoteListResponse{Notes: make([]NoteSummary, 0, len(notes)), Total: len(notes)}
	for _, n := range notes {
		resp.Notes = append(resp.Notes, NoteSummary{
			Title:       n.Title,
			Path:        n.Path,
			Frontmatter: n.Frontmatter,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateNote handles POST /api/notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req AddNoteRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title is required"))
		return
	}

	if err := h.orch.AddNote(r.Context(), req.Title, req.Content, req.Frontmatter); err != nil {
		slog.Error("add note failed",
			slog.String("title", req.Title),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	h.publishEvent("created", req.Title)
	writeJSON(w, http.StatusCreated, statusResponse{Status: "created"})
}

// DeleteNote handles DELETE /api/notes/{title}.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	title := noteTitle(r)
	if title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title is required"))
		return
	}

	if err := h.orch.DeleteNote(r.Context(), title); err != nil {
		if errors.Is(err, apperr.ErrNoteNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("note not found"))
			return
		}
		slog.Error("delete note failed",
			slog.String("title", title),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	h.publishEvent("deleted", title)
	writeJSON(w, http.StatusOK, statusResponse{Status: "deleted"})
}

// Sync handles POST /api/sync. With a title it syncs one note, without it
// syncs the whole vault.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	var err error
	if req.Title != "" {
		err = h.orch.SyncOne(r.Context(), req.Title, req.SkipHashCheck)
	} else {
		err = h.orch.SyncAll(r.Context(), req.SkipHashCheck)
	}
	if err != nil {
		if errors.Is(err, apperr.ErrNoteNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("note not found"))
			return
		}
		slog.Error("sync failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if req.Title != "" {
		h.publishEvent("synced", req.Title)
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "synced"})
}

// Query handles POST /api/query, running a read-only SQL query against
// the note store.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	if h.querier == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("store not available"))
		return
	}

	var req QueryRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query is required"))
		return
	}

	res, err := h.querier.Query(r.Context(), req.Query)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Observers handles GET /api/observers, reporting the registry in
// dispatch order.
func (h *Handler) Observers(w http.ResponseWriter, _ *http.Request) {
	ordered := h.registry.Observers()
	out := make([]ObserverInfo, 0, len(ordered))
	for _, o := range ordered {
		out = append(out, ObserverInfo{Name: o.Name(), Priority: o.Priority()})
	}
	writeJSON(w, http.StatusOK, out)
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}
