package observers

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/starford/norg/internal/models"
	"github.com/starford/norg/internal/note"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestTimestamp_CreatedSetsBoth(t *testing.T) {
	obs := NewTimestamp(testLogger())
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	obs.now = func() time.Time { return fixed }

	res, err := obs.OnEvent(context.Background(), models.NoteEvent{
		Kind:        models.EventCreated,
		Title:       "Demo",
		Frontmatter: map[string]string{},
	})
	if err != nil {
		t.Fatalf("OnEvent: %v", err)
	}
	want := fixed.Format(note.TimeFormat)
	if res.Metadata["created_at"] != want {
		t.Errorf("created_at = %q, want %q", res.Metadata["created_at"], want)
	}
	if res.Metadata["updated_at"] != want {
		t.Errorf("updated_at = %q, want %q", res.Metadata["updated_at"], want)
	}
}

func TestTimestamp_CreatedPreservesExistingCreatedAt(t *testing.T) {
	obs := NewTimestamp(testLogger())
	res, _ := obs.OnEvent(context.Background(), models.NoteEvent{
		Kind:        models.EventCreated,
		Title:       "Demo",
		Frontmatter: map[string]string{"created_at": "2020-01-01 00:00:00 +0000"},
	})
	if _, ok := res.Metadata["created_at"]; ok {
		t.Error("created_at must not be re-stamped when already present")
	}
	if res.Metadata["updated_at"] == "" {
		t.Error("updated_at must always be stamped")
	}
}

func TestTimestamp_SyncedEchoesCreatedAt(t *testing.T) {
	obs := NewTimestamp(testLogger())
	res, _ := obs.OnEvent(context.Background(), models.NoteEvent{
		Kind:        models.EventSynced,
		Title:       "Demo",
		Frontmatter: map[string]string{"created_at": "2020-01-01 00:00:00 +0000"},
	})
	if res.Metadata["created_at"] != "2020-01-01 00:00:00 +0000" {
		t.Errorf("created_at = %q, want the existing value echoed", res.Metadata["created_at"])
	}
}
