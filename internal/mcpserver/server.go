// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes norg tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/norg/internal/models"
	"github.com/starford/norg/internal/note"
	"github.com/starford/norg/internal/storage"
	"github.com/starford/norg/internal/syncer"
)

// Querier executes read-only queries against the note store.
type Querier interface {
	Query(ctx context.Context, query string) (*models.QueryResult, error)
}

// Server wraps the MCP server with norg tools.
type Server struct {
	mcp     *server.MCPServer
	orch    *syncer.Orchestrator
	store   storage.Provider
	querier Querier
	ext     string
}

// New creates a new MCP server with all norg tools registered.
func New(orch *syncer.Orchestrator, store storage.Provider, querier Querier, ext string) *Server {
	s := &Server{orch: orch, store: store, querier: querier, ext: ext}

	s.mcp = server.NewMCPServer(
		"norg",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("add_note",
		mcp.WithDescription("Create a note and run the observer pipeline over it. "+
			"Frontmatter fields like tags are merged and timestamps are stamped automatically."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title (also the filename stem)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown body, frontmatter excluded")),
		mcp.WithString("tags", mcp.Description("Optional comma-separated tags")),
	), s.addNote)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the raw content of a note by title."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("sync_notes",
		mcp.WithDescription("Run the sync pipeline. With a title, syncs that note; "+
			"without one, syncs the whole vault (unchanged notes are skipped)."),
		mcp.WithString("title", mcp.Description("Optional note title to sync")),
	), s.syncNotes)

	s.mcp.AddTool(mcp.NewTool("query_notes",
		mcp.WithDescription("Run a read-only SQL query against the note store. "+
			"Schema: notes(id, title, path), frontmatter(file_id, key, value)."),
		mcp.WithString("query", mcp.Required(), mcp.Description("SQL query text")),
	), s.queryNotes)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List note titles, optionally filtered by tag."),
		mcp.WithString("tag", mcp.Description("Optional tag to filter by")),
	), s.listNotes)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource("norg://note-format", "Note Format Contract",
			mcp.WithResourceDescription("Canonical note format including frontmatter fields and embedded SQL blocks."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) addNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	fields := map[string]string{}
	if tags, tagErr := req.RequireString("tags"); tagErr == nil && tags != "" {
		fields["tags"] = tags
	}

	if err := s.orch.AddNote(ctx, title, content, fields); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", title)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(note.FilenameForTitle(title, s.ext))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", title)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) syncNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if title, err := req.RequireString("title"); err == nil && title != "" {
		if syncErr := s.orch.SyncOne(ctx, title, false); syncErr != nil {
			return mcp.NewToolResultError(syncErr.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("synced: %s", title)), nil
	}
	if err := s.orch.SyncAll(ctx, false); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("vault synced"), nil
}

func (s *Server) queryNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.querier.Query(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := map[string]string{}
	if tag, err := req.RequireString("tag"); err == nil && tag != "" {
		filter["tags"] = tag
	}

	notes, err := s.orch.ListNotes(filter)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var titles []string
	for _, n := range notes {
		titles = append(titles, n.Title)
	}
	if len(titles) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	return mcp.NewToolResultText(strings.Join(titles, "\n")), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "norg://note-format",
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
