package script

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"testing"

	"github.com/starford/norg/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func requireSh(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

func TestNew_EmptyCommand(t *testing.T) {
	if _, err := New("bad", 0, nil, testLogger()); err == nil {
		t.Error("expected error for empty command")
	}
}

func TestOnEvent_ResultDecoded(t *testing.T) {
	requireSh(t)
	obs, err := New("echoer", 0, []string{"sh", "-c", `cat >/dev/null; echo '{"metadata":{"source":"script"}}'`}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	res, err := obs.OnEvent(context.Background(), models.NoteEvent{Title: "T", Kind: models.EventSynced})
	if err != nil {
		t.Fatalf("OnEvent: %v", err)
	}
	if res == nil || res.Metadata["source"] != "script" {
		t.Errorf("result = %+v", res)
	}
}

func TestOnEvent_EmptyStdoutNoContribution(t *testing.T) {
	requireSh(t)
	obs, _ := New("silent", 0, []string{"sh", "-c", "cat >/dev/null"}, testLogger())
	res, err := obs.OnEvent(context.Background(), models.NoteEvent{Title: "T"})
	if err != nil {
		t.Fatalf("OnEvent: %v", err)
	}
	if res != nil {
		t.Errorf("expected no contribution, got %+v", res)
	}
}

func TestOnEvent_EventOnStdin(t *testing.T) {
	requireSh(t)
	// The subprocess wraps the received title into its result metadata.
	obs, _ := New("reader", 0, []string{"sh", "-c",
		`title=$(sed -n 's/.*"title":"\([^"]*\)".*/\1/p'); echo "{\"metadata\":{\"seen\":\"$title\"}}"`}, testLogger())
	res, err := obs.OnEvent(context.Background(), models.NoteEvent{Title: "Demo"})
	if err != nil {
		t.Fatalf("OnEvent: %v", err)
	}
	if res.Metadata["seen"] != "Demo" {
		t.Errorf("subprocess saw %q, want Demo", res.Metadata["seen"])
	}
}

func TestOnEvent_FailureSurfacesStderr(t *testing.T) {
	requireSh(t)
	obs, _ := New("failing", 0, []string{"sh", "-c", "echo broken >&2; exit 3"}, testLogger())
	_, err := obs.OnEvent(context.Background(), models.NoteEvent{Title: "T"})
	if err == nil {
		t.Fatal("expected error from failing subprocess")
	}
}
