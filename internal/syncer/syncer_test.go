package syncer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/norg/internal/apperr"
	"github.com/starford/norg/internal/hashcache"
	"github.com/starford/norg/internal/metadata"
	"github.com/starford/norg/internal/models"
	"github.com/starford/norg/internal/note"
	"github.com/starford/norg/internal/observer"
	"github.com/starford/norg/internal/observers"
	"github.com/starford/norg/internal/sqlstore"
	"github.com/starford/norg/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// countingObserver records how many events it has seen and optionally
// contributes metadata or content.
type countingObserver struct {
	name     string
	priority int
	calls    int
	result   *models.ObserverResult
	err      error
}

func (c *countingObserver) Name() string  { return c.name }
func (c *countingObserver) Priority() int { return c.priority }
func (c *countingObserver) OnEvent(_ context.Context, _ models.NoteEvent) (*models.ObserverResult, error) {
	c.calls++
	return c.result, c.err
}

type testEnv struct {
	orch     *Orchestrator
	store    *storage.FS
	registry *observer.Registry
}

func newEnv(t *testing.T, obs ...observer.Observer) *testEnv {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	logger := testLogger()
	registry := observer.NewRegistry(logger)
	for _, o := range obs {
		registry.Register(o)
	}
	cache := hashcache.NewFileCache(filepath.Join(t.TempDir(), "hashes.json"), logger)
	return &testEnv{
		orch:     New(fs, registry, cache, "md", logger),
		store:    fs,
		registry: registry,
	}
}

func testStoreObserver(t *testing.T) *sqlstore.StoreObserver {
	t.Helper()
	db, err := sqlstore.Open(filepath.Join(t.TempDir(), "notes.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlstore.NewObserver(db, "md", testLogger())
}

func readNote(t *testing.T, env *testEnv, title string) (body string, fm map[string]string) {
	t.Helper()
	rel := note.FilenameForTitle(title, "md")
	data, err := env.store.Read(rel)
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	info, err := env.store.Stat(rel)
	if err != nil {
		t.Fatal(err)
	}
	return note.Parse(data, info.ModTime)
}

func TestAddNote_EndToEnd(t *testing.T) {
	env := newEnv(t, observers.NewTimestamp(testLogger()), testStoreObserver(t))

	err := env.orch.AddNote(context.Background(), "Demo", "# Demo\nHello",
		map[string]string{metadata.KeyTags: "a, b"})
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}

	body, fm := readNote(t, env, "Demo")
	if body != "# Demo\nHello" {
		t.Errorf("body = %q", body)
	}
	if fm[metadata.KeyTags] != "a, b" {
		t.Errorf("tags = %q, want %q", fm[metadata.KeyTags], "a, b")
	}
	if fm[metadata.KeyCreatedAt] == "" {
		t.Error("created_at missing")
	}
	if fm[metadata.KeyUpdatedAt] == "" {
		t.Error("updated_at missing")
	}
}

func TestAddNote_PersistsFrontmatterInStore(t *testing.T) {
	storeObs := testStoreObserver(t)
	env := newEnv(t, storeObs)

	if err := env.orch.AddNote(context.Background(), "Demo", "Hello",
		map[string]string{metadata.KeyTags: "a, b"}); err != nil {
		t.Fatalf("AddNote: %v", err)
	}

	res, err := storeObs.Query(context.Background(),
		`SELECT value FROM frontmatter f JOIN notes n ON f.file_id = n.id WHERE n.title = 'Demo' AND f.key = 'tags'`)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0]["value"] != "a, b" {
		t.Errorf("rows = %+v", res.Rows)
	}
}

func TestSyncAll_UnchangedNoteSkipsObservers(t *testing.T) {
	counter := &countingObserver{name: "counter"}
	env := newEnv(t, counter)

	if err := env.store.Write("First.md", []byte("plain body")); err != nil {
		t.Fatal(err)
	}

	if err := env.orch.SyncAll(context.Background(), false); err != nil {
		t.Fatalf("SyncAll #1: %v", err)
	}
	first := counter.calls
	if first == 0 {
		t.Fatal("observer not invoked on first sync")
	}

	if err := env.orch.SyncAll(context.Background(), false); err != nil {
		t.Fatalf("SyncAll #2: %v", err)
	}
	if counter.calls != first {
		t.Errorf("observer invoked %d more times on unchanged note", counter.calls-first)
	}
}

func TestSyncAll_SkipHashCheckForcesProcessing(t *testing.T) {
	counter := &countingObserver{name: "counter"}
	env := newEnv(t, counter)
	_ = env.store.Write("First.md", []byte("plain body"))

	_ = env.orch.SyncAll(context.Background(), false)
	first := counter.calls
	if err := env.orch.SyncAll(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if counter.calls <= first {
		t.Error("skipHashCheck should force reprocessing")
	}
}

func TestAddNote_SkipObserversAll(t *testing.T) {
	counter := &countingObserver{name: "counter"}
	storeCounter := &countingObserver{name: observer.NameStore}
	env := newEnv(t, counter, storeCounter)

	err := env.orch.AddNote(context.Background(), "Quiet", "body",
		map[string]string{keySkipObservers: "all"})
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if counter.calls != 0 || storeCounter.calls != 0 {
		t.Errorf("calls = %d/%d, want 0/0", counter.calls, storeCounter.calls)
	}

	// The note itself is still written.
	body, _ := readNote(t, env, "Quiet")
	if body != "body" {
		t.Errorf("body = %q", body)
	}
}

func TestAddNote_SkipNamedObserver(t *testing.T) {
	skipped := &countingObserver{name: "skipped"}
	active := &countingObserver{name: "active"}
	env := newEnv(t, skipped, active)

	err := env.orch.AddNote(context.Background(), "Partial", "body",
		map[string]string{keySkipObservers: "skipped"})
	if err != nil {
		t.Fatal(err)
	}
	if skipped.calls != 0 {
		t.Errorf("skipped observer invoked %d times", skipped.calls)
	}
	if active.calls != 1 {
		t.Errorf("active observer invoked %d times, want 1", active.calls)
	}
}

func TestAddNote_StoreErrorAbortsButKeepsWrite(t *testing.T) {
	failing := &countingObserver{name: observer.NameStore, err: errors.New("db locked")}
	env := newEnv(t, failing)

	err := env.orch.AddNote(context.Background(), "Doomed", "body", nil)
	if err == nil {
		t.Fatal("expected store failure to surface")
	}

	// Write #1 is not rolled back.
	body, _ := readNote(t, env, "Doomed")
	if body != "body" {
		t.Errorf("body = %q", body)
	}
}

func TestAddNote_StoreContentTriggersSecondWrite(t *testing.T) {
	rewritten := "body with rendered table"
	storeObs := &countingObserver{
		name:   observer.NameStore,
		result: &models.ObserverResult{Content: &rewritten},
	}
	env := newEnv(t, storeObs)

	if err := env.orch.AddNote(context.Background(), "Table", "body", nil); err != nil {
		t.Fatal(err)
	}
	body, _ := readNote(t, env, "Table")
	if body != rewritten {
		t.Errorf("body = %q, want store-rewritten content", body)
	}
}

func TestSyncOne_UnknownTitle(t *testing.T) {
	env := newEnv(t)
	err := env.orch.SyncOne(context.Background(), "Missing", false)
	if !errors.Is(err, apperr.ErrNoteNotFound) {
		t.Errorf("err = %v, want ErrNoteNotFound", err)
	}
}

func TestDeleteNote_UnknownTitle(t *testing.T) {
	env := newEnv(t)
	err := env.orch.DeleteNote(context.Background(), "Missing")
	if !errors.Is(err, apperr.ErrNoteNotFound) {
		t.Errorf("err = %v, want ErrNoteNotFound", err)
	}
}

func TestSyncOne_ChangedBodyReprocessed(t *testing.T) {
	counter := &countingObserver{name: "counter"}
	env := newEnv(t, counter)
	_ = env.store.Write("Note.md", []byte("v1"))

	_ = env.orch.SyncOne(context.Background(), "Note", false)
	_ = env.store.Write("Note.md", []byte("v2"))
	if err := env.orch.SyncOne(context.Background(), "Note", false); err != nil {
		t.Fatal(err)
	}
	if counter.calls != 2 {
		t.Errorf("calls = %d, want 2", counter.calls)
	}
}

func TestDeleteNote(t *testing.T) {
	storeObs := testStoreObserver(t)
	env := newEnv(t, storeObs)
	ctx := context.Background()

	if err := env.orch.AddNote(ctx, "Gone", "body", nil); err != nil {
		t.Fatal(err)
	}
	if err := env.orch.DeleteNote(ctx, "Gone"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}

	if _, err := env.store.Read("Gone.md"); err == nil {
		t.Error("note file should be removed")
	}
	res, err := storeObs.Query(ctx, `SELECT title FROM notes`)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 0 {
		t.Errorf("store still holds %d notes", len(res.Rows))
	}
}

func TestListNotes_FiltersByTag(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	_ = env.orch.AddNote(ctx, "Alpha", "a", map[string]string{metadata.KeyTags: "go, notes"})
	_ = env.orch.AddNote(ctx, "Beta", "b", map[string]string{metadata.KeyTags: "rust"})

	notes, err := env.orch.ListNotes(map[string]string{metadata.KeyTags: "go"})
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 || notes[0].Title != "Alpha" {
		t.Errorf("notes = %+v", notes)
	}
}

func TestListNotes_SortedByTitle(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	_ = env.orch.AddNote(ctx, "Zulu", "z", nil)
	_ = env.orch.AddNote(ctx, "Alpha", "a", nil)

	notes, err := env.orch.ListNotes(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 || notes[0].Title != "Alpha" || notes[1].Title != "Zulu" {
		t.Errorf("notes = %+v", notes)
	}
}
