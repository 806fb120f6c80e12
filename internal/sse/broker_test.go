package sse

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// waitFor polls fn until it returns true or timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "note.synced", Data: map[string]string{"title": "Demo"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: note.synced") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"title":"Demo"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishSyncEvent_RollupThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First event should trigger vault.synced.
	b.PublishSyncEvent("created", "A")
	// Second event immediately after should NOT trigger another rollup.
	b.PublishSyncEvent("synced", "B")

	time.Sleep(50 * time.Millisecond)
	rollupCount := 0
	noteCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			if strings.Contains(string(msg), "vault.synced") {
				rollupCount++
			} else {
				noteCount++
			}
		default:
			break loop
		}
	}

	if noteCount != 2 {
		t.Errorf("note events = %d, want 2", noteCount)
	}
	if rollupCount != 1 {
		t.Errorf("rollup events = %d, want 1", rollupCount)
	}
}

func TestClose_Idempotent(t *testing.T) {
	b := NewBroker(time.Second)
	b.Close()
	b.Close()
	if b.ClientCount() != 0 {
		t.Error("closed broker should report 0 clients")
	}
}

func TestSubscribeAfterClose(t *testing.T) {
	b := NewBroker(time.Second)
	b.Close()
	ch := b.Subscribe()
	if _, ok := <-ch; ok {
		t.Error("channel from closed broker should be closed")
	}
}

func TestServeHTTP_StreamsEvents(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/events", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 300*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(rec, req.WithContext(ctx))
		close(done)
	}()

	// Give the handler time to subscribe before publishing.
	waitFor(t, time.Second, func() bool { return b.ClientCount() == 1 })
	b.PublishSyncEvent("created", "Streamed")

	<-done
	body := rec.Body.String()
	if !strings.Contains(body, "event: note.created") {
		t.Errorf("body = %q", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
}
