package observers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/norg/internal/metadata"
	"github.com/starford/norg/internal/models"
	"github.com/starford/norg/internal/note"
	"github.com/starford/norg/internal/observer"
)

// IndexFilename is the tag index file maintained inside the vault.
const IndexFilename = "_tag_index.md"

// indexEntry is one note listed under a tag.
type indexEntry struct {
	title string
	path  string
}

// TagIndex maintains a Markdown index of notes grouped by tag. It is a
// reserved-name observer: the registry pins it after all unpinned
// observers so it sees their metadata contributions via the event's
// already-loaded frontmatter on the next round.
type TagIndex struct {
	indexPath string
	ext       string
	logger    *slog.Logger
}

var _ observer.Observer = (*TagIndex)(nil)

// NewTagIndex creates the tag index observer, creating an empty index
// file in dir when none exists.
func NewTagIndex(dir, ext string, logger *slog.Logger) (*TagIndex, error) {
	indexPath := filepath.Join(dir, IndexFilename)
	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		if err := os.WriteFile(indexPath, []byte("# Tag Index\n\n"), 0o644); err != nil {
			return nil, fmt.Errorf("observers: create tag index: %w", err)
		}
	}
	return &TagIndex{indexPath: indexPath, ext: ext, logger: logger}, nil
}

// Name implements observer.Observer. The name is reserved for ordering.
func (t *TagIndex) Name() string { return observer.NameTagIndex }

// Priority implements observer.Observer. Ordering is pinned by name.
func (t *TagIndex) Priority() int { return 0 }

// OnEvent re-files the note under its frontmatter tags and echoes the
// tags back as metadata. Notes without a tags field contribute nothing.
func (t *TagIndex) OnEvent(_ context.Context, event models.NoteEvent) (*models.ObserverResult, error) {
	raw, ok := event.Frontmatter[metadata.KeyTags]
	if !ok {
		return nil, nil
	}
	tags := metadata.SplitList(raw)

	if err := t.update(event.Title, tags); err != nil {
		return nil, err
	}
	t.logger.Debug("tag_index: updated",
		slog.String("title", event.Title),
		slog.Int("tags", len(tags)))

	return &models.ObserverResult{
		Metadata: map[string]string{metadata.KeyTags: strings.Join(tags, ", ")},
	}, nil
}

// update removes the note's old entries and files it under each tag.
func (t *TagIndex) update(title string, tags []string) error {
	index, err := t.parse()
	if err != nil {
		return err
	}

	for tag, entries := range index {
		kept := entries[:0]
		for _, e := range entries {
			if e.title != title {
				kept = append(kept, e)
			}
		}
		index[tag] = kept
	}

	rel := "./" + note.FilenameForTitle(title, t.ext)
	for _, tag := range tags {
		index[tag] = append(index[tag], indexEntry{title: title, path: rel})
	}

	for tag, entries := range index {
		if len(entries) == 0 {
			delete(index, tag)
			continue
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].title < entries[j].title })
	}

	return t.write(index)
}

// parse reads the index file back into tag buckets. The format is
// "## <tag>" sections holding "- [title](path)" lines.
func (t *TagIndex) parse() (map[string][]indexEntry, error) {
	data, err := os.ReadFile(t.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string][]indexEntry), nil
		}
		return nil, fmt.Errorf("observers: read tag index: %w", err)
	}

	index := make(map[string][]indexEntry)
	var currentTag string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "## ") {
			currentTag = strings.TrimSpace(line[3:])
			continue
		}
		if currentTag == "" || !strings.HasPrefix(line, "- [") {
			continue
		}
		title, path, ok := parseLinkLine(line)
		if ok {
			index[currentTag] = append(index[currentTag], indexEntry{title: title, path: path})
		}
	}
	return index, nil
}

func parseLinkLine(line string) (title, path string, ok bool) {
	tOpen := strings.IndexByte(line, '[')
	tClose := strings.IndexByte(line, ']')
	pOpen := strings.IndexByte(line, '(')
	pClose := strings.IndexByte(line, ')')
	if tOpen < 0 || tClose < tOpen || pOpen < tClose || pClose < pOpen {
		return "", "", false
	}
	return line[tOpen+1 : tClose], line[pOpen+1 : pClose], true
}

// write renders the index with tags in lexicographic order.
func (t *TagIndex) write(index map[string][]indexEntry) error {
	tags := make([]string, 0, len(index))
	for tag := range index {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	var b strings.Builder
	b.WriteString("# Tag Index\n\n")
	for _, tag := range tags {
		fmt.Fprintf(&b, "## %s\n\n", tag)
		for _, e := range index[tag] {
			fmt.Fprintf(&b, "- [%s](%s)\n", e.title, e.path)
		}
		b.WriteByte('\n')
	}

	if err := os.WriteFile(t.indexPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("observers: write tag index: %w", err)
	}
	return nil
}
