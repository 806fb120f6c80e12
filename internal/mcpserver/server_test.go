package mcpserver

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/norg/internal/hashcache"
	"github.com/starford/norg/internal/observers"
	"github.com/starford/norg/internal/sqlstore"
	"github.com/starford/norg/internal/storage"
	"github.com/starford/norg/internal/syncer"
	"github.com/starford/norg/internal/testutil"
)

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()

	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	storeObs := sqlstore.NewObserver(db, "md", testutil.Logger())
	registry := testutil.TestRegistry(t, observers.NewTimestamp(testutil.Logger()), storeObs)
	cache := hashcache.NewFileCache(filepath.Join(t.TempDir(), "hashes.json"), testutil.Logger())
	orch := syncer.New(store, registry, cache, "md", testutil.Logger())

	return New(orch, store, storeObs, "md"), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handler
	// functions are invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "add_note":
		result, err = srv.addNote(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "sync_notes":
		result, err = srv.syncNotes(ctx, req)
	case "query_notes":
		result, err = srv.queryNotes(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestAddAndReadNote(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "add_note", map[string]interface{}{
		"title":   "Test",
		"content": "# Test\nHello",
		"tags":    "a, b",
	})
	if text := resultText(r); text != "created: Test" {
		t.Errorf("add result = %q", text)
	}

	r = callTool(t, srv, "read_note", map[string]interface{}{"title": "Test"})
	text := resultText(r)
	if !strings.Contains(text, "# Test\nHello") {
		t.Errorf("read result = %q", text)
	}
	if !strings.Contains(text, "tags: a, b") {
		t.Errorf("frontmatter missing from %q", text)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"title": "nope"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestSyncNotes_WholeVault(t *testing.T) {
	srv, store := testServer(t)
	_ = store.Write("a.md", []byte("plain"))

	r := callTool(t, srv, "sync_notes", map[string]interface{}{})
	if text := resultText(r); text != "vault synced" {
		t.Errorf("sync result = %q", text)
	}
}

func TestQueryNotes(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "add_note", map[string]interface{}{
		"title":   "Queried",
		"content": "body",
	})

	r := callTool(t, srv, "query_notes", map[string]interface{}{
		"query": "SELECT title FROM notes",
	})
	if r.IsError {
		t.Fatalf("query failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "Queried") {
		t.Errorf("query result = %q", resultText(r))
	}
}

func TestListNotes_TagFilter(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "add_note", map[string]interface{}{
		"title": "Tagged", "content": "x", "tags": "go",
	})
	callTool(t, srv, "add_note", map[string]interface{}{
		"title": "Other", "content": "y", "tags": "rust",
	})

	r := callTool(t, srv, "list_notes", map[string]interface{}{"tag": "go"})
	if text := resultText(r); text != "Tagged" {
		t.Errorf("list result = %q", text)
	}
}
