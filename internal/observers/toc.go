package observers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/norg/internal/models"
	"github.com/starford/norg/internal/observer"
)

// tocHeading is the section heading for a generated table of contents.
// It doubles as the marker the SQL rewriter uses to leave TOC content
// alone.
const tocHeading = "## Contents"

// minTOCLength is the minimum body size worth a table of contents.
const minTOCLength = 50

type heading struct {
	level  int
	text   string
	anchor string
}

// TOC inserts a table of contents after the first H1, replacing any prior
// one. Short or heading-less notes are left untouched.
type TOC struct {
	logger *slog.Logger
}

var _ observer.Observer = (*TOC)(nil)

// NewTOC creates the table-of-contents observer.
func NewTOC(logger *slog.Logger) *TOC {
	return &TOC{logger: logger}
}

// Name implements observer.Observer.
func (o *TOC) Name() string { return "toc" }

// Priority implements observer.Observer.
func (o *TOC) Priority() int { return 0 }

// OnEvent returns replacement content with a refreshed TOC, or nothing
// when no TOC is warranted or the document is already current.
func (o *TOC) OnEvent(_ context.Context, event models.NoteEvent) (*models.ObserverResult, error) {
	content := event.Content
	if len(content) < minTOCLength || !strings.Contains(content, "#") {
		return nil, nil
	}

	updated, ok := insertTOC(content)
	if !ok || updated == content {
		return nil, nil
	}

	o.logger.Info("toc: generated", slog.String("title", event.Title))
	return &models.ObserverResult{
		Content:  &updated,
		Metadata: map[string]string{"toc_generated": "true"},
	}, nil
}

// collectHeadings scans for ATX headings outside fenced code blocks. The
// first H1 is the document title and is excluded from the TOC.
func collectHeadings(content string) []heading {
	var out []heading
	inFence := false
	firstH1Seen := false

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence || !strings.HasPrefix(trimmed, "#") {
			continue
		}

		level := 0
		for level < len(trimmed) && trimmed[level] == '#' {
			level++
		}
		if level > 6 || level >= len(trimmed) || trimmed[level] != ' ' {
			continue
		}
		text := strings.TrimSpace(trimmed[level+1:])
		if text == "" {
			continue
		}
		if level == 1 && !firstH1Seen {
			firstH1Seen = true
			continue
		}
		if text == strings.TrimPrefix(tocHeading, "## ") {
			continue
		}
		out = append(out, heading{level: level, text: text, anchor: anchorFor(text)})
	}
	return out
}

// anchorFor builds a GitHub-style anchor: lowercased, spaces to hyphens,
// other punctuation removed.
func anchorFor(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r == ' ':
			b.WriteByte('-')
		case r == '-' || r == '_':
			b.WriteRune(r)
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// renderTOC builds the Contents section from the collected headings.
func renderTOC(headings []heading) string {
	var b strings.Builder
	b.WriteString(tocHeading)
	b.WriteString("\n\n")
	for _, h := range headings {
		b.WriteString(strings.Repeat("  ", h.level-1))
		fmt.Fprintf(&b, "* [%s](#%s)\n", h.text, h.anchor)
	}
	return b.String()
}

// insertTOC splices the rendered TOC after the first H1, dropping any
// previous Contents section.
func insertTOC(content string) (string, bool) {
	headings := collectHeadings(content)
	if len(headings) == 0 {
		return "", false
	}
	toc := renderTOC(headings)

	lines := strings.Split(content, "\n")
	firstH1 := -1
	for i, line := range lines {
		if strings.HasPrefix(line, "# ") {
			firstH1 = i
			break
		}
	}
	if firstH1 < 0 {
		return "", false
	}

	var out []string
	out = append(out, lines[:firstH1+1]...)
	out = append(out, "")
	out = append(out, strings.Split(strings.TrimRight(toc, "\n"), "\n")...)
	out = append(out, "")

	skippingOld := false
	for _, line := range lines[firstH1+1:] {
		if strings.HasPrefix(line, tocHeading) || strings.HasPrefix(line, "## Table of Contents") {
			skippingOld = true
			continue
		}
		if skippingOld {
			if strings.HasPrefix(line, "## ") {
				skippingOld = false
			} else {
				continue
			}
		}
		out = append(out, line)
	}

	return strings.Join(out, "\n"), true
}
