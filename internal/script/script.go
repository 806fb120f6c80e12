// Package script hosts externally-authored observers behind the standard
// Observer interface. The boundary is deliberately narrow: the event is
// marshalled to JSON on the subprocess's stdin, and an optional
// {"metadata": ..., "content": ...} result is read from its stdout.
package script

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/starford/norg/internal/models"
	"github.com/starford/norg/internal/observer"
)

// Observer runs a configured command once per event.
type Observer struct {
	name     string
	priority int
	argv     []string
	logger   *slog.Logger
}

var _ observer.Observer = (*Observer)(nil)

// New creates a process-backed observer. argv must be non-empty.
func New(name string, priority int, argv []string, logger *slog.Logger) (*Observer, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("script: observer %q has no command", name)
	}
	return &Observer{name: name, priority: priority, argv: argv, logger: logger}, nil
}

// Name implements observer.Observer.
func (o *Observer) Name() string { return o.name }

// Priority implements observer.Observer.
func (o *Observer) Priority() int { return o.priority }

// OnEvent marshals the event to the subprocess and decodes its result.
// An empty stdout means no contribution.
func (o *Observer) OnEvent(ctx context.Context, event models.NoteEvent) (*models.ObserverResult, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("script: marshal event: %w", err)
	}

	cmd := exec.CommandContext(ctx, o.argv[0], o.argv[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("script: %s: %w (stderr: %s)", o.name, err, strings.TrimSpace(stderr.String()))
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return nil, nil
	}

	var result models.ObserverResult
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("script: %s: decode result: %w", o.name, err)
	}
	o.logger.Debug("script: observer contributed",
		slog.String("name", o.name),
		slog.Bool("content", result.Content != nil))
	return &result, nil
}
