package note

import (
	"strings"
	"testing"
	"time"
)

var fallback = time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)

func TestParse_FrontmatterAndBody(t *testing.T) {
	data := []byte("---\ntags: a, b\ncreated_at: 2024-01-01 00:00:00 +0000\n---\n\n# Demo\nHello")
	body, fm := Parse(data, fallback)
	if body != "# Demo\nHello" {
		t.Errorf("body = %q", body)
	}
	if fm["tags"] != "a, b" {
		t.Errorf("tags = %q", fm["tags"])
	}
	if fm["created_at"] != "2024-01-01 00:00:00 +0000" {
		t.Errorf("created_at = %q", fm["created_at"])
	}
}

func TestParse_MissingFrontmatter(t *testing.T) {
	body, fm := Parse([]byte("# Bare\nNo frontmatter here."), fallback)
	if body != "# Bare\nNo frontmatter here." {
		t.Errorf("body = %q", body)
	}
	if fm["created_at"] == "" {
		t.Error("created_at should be synthesised")
	}
}

func TestParse_SynthesisesCreatedAtWhenAbsent(t *testing.T) {
	data := []byte("---\ntags: x\n---\nBody")
	_, fm := Parse(data, fallback)
	if fm["created_at"] != fallback.Format(TimeFormat) {
		t.Errorf("created_at = %q, want fallback time", fm["created_at"])
	}
}

func TestParse_MalformedFrontmatterFallsBack(t *testing.T) {
	data := []byte("---\n: bad: yaml: {{{\n---\nBody")
	body, fm := Parse(data, fallback)
	if !strings.Contains(body, "Body") {
		t.Errorf("body should survive malformed frontmatter: %q", body)
	}
	if len(fm) != 1 || fm["created_at"] == "" {
		t.Errorf("expected only synthesised created_at, got %v", fm)
	}
}

func TestRenderParse_RoundTrip(t *testing.T) {
	n := New("Demo", "# Demo\nHello", map[string]string{"tags": " b ,a ", "status": "draft"})
	if n.Frontmatter["tags"] != "b, a" {
		t.Errorf("tags not normalised: %q", n.Frontmatter["tags"])
	}

	rendered, err := n.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	body, fm := Parse([]byte(rendered), fallback)
	if body != "# Demo\nHello" {
		t.Errorf("body = %q", body)
	}
	if fm["tags"] != "b, a" || fm["status"] != "draft" {
		t.Errorf("frontmatter = %v", fm)
	}
}

func TestRender_DeterministicFieldOrder(t *testing.T) {
	n := New("X", "body", map[string]string{"b": "2", "a": "1", "c": "3"})
	first, _ := n.Render()
	second, _ := n.Render()
	if first != second {
		t.Error("render should be deterministic")
	}
	if !strings.HasPrefix(first, "---\na: 1\nb: 2\nc: 3\n---\n\nbody") {
		t.Errorf("unexpected render:\n%s", first)
	}
}

func TestFilenameForTitle(t *testing.T) {
	if got := FilenameForTitle("My Note", "md"); got != "My%20Note.md" {
		t.Errorf("FilenameForTitle = %q", got)
	}
}

func TestTitleFromPath(t *testing.T) {
	if got := TitleFromPath("/vault/My%20Note.md"); got != "My Note" {
		t.Errorf("TitleFromPath = %q", got)
	}
}
