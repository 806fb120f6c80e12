// Package note implements the on-disk note format: a YAML frontmatter
// block delimited by --- lines, followed by the Markdown body.
package note

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/norg/internal/metadata"
)

// TimeFormat is the timestamp layout used in frontmatter fields.
const TimeFormat = "2006-01-02 15:04:05 -0700"

const delim = "---"

// Note is a titled document with string-keyed frontmatter. The title is
// also the filename stem.
type Note struct {
	Title       string
	Content     string
	Frontmatter map[string]string
}

// New builds a note, normalising a user-supplied tags field into trimmed
// ", "-joined form.
func New(title, content string, fields map[string]string) *Note {
	fm := make(map[string]string, len(fields))
	for k, v := range fields {
		fm[k] = v
	}
	if tags, ok := fm[metadata.KeyTags]; ok {
		fm[metadata.KeyTags] = metadata.NormalizeList(tags)
	}
	return &Note{Title: title, Content: content, Frontmatter: fm}
}

// Render serialises the note to its file representation.
func (n *Note) Render() (string, error) {
	var b strings.Builder
	b.WriteString(delim)
	b.WriteByte('\n')

	// Deterministic field order keeps rewrites stable.
	keys := make([]string, 0, len(n.Frontmatter))
	for k := range n.Frontmatter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		line, err := yaml.Marshal(map[string]string{k: n.Frontmatter[k]})
		if err != nil {
			return "", fmt.Errorf("note: marshal frontmatter: %w", err)
		}
		b.Write(line)
	}

	b.WriteString(delim)
	b.WriteString("\n\n")
	b.WriteString(n.Content)
	return b.String(), nil
}

// Parse splits raw file data into body and frontmatter. Malformed or
// missing frontmatter yields the full data as body and an empty field map;
// created_at is synthesised from fallbackCreated when absent.
func Parse(data []byte, fallbackCreated time.Time) (body string, fm map[string]string) {
	created := fallbackCreated.Format(TimeFormat)
	text := string(data)

	trimmed := strings.TrimLeft(text, "\n\r")
	if strings.HasPrefix(trimmed, delim+"\n") {
		rest := trimmed[len(delim)+1:]
		if idx := strings.Index(rest, "\n"+delim); idx >= 0 {
			block := rest[:idx]
			after := rest[idx+1+len(delim):]
			if i := strings.IndexByte(after, '\n'); i >= 0 {
				after = after[i+1:]
			} else {
				after = ""
			}
			var fields map[string]string
			if err := yaml.Unmarshal([]byte(block), &fields); err == nil && fields != nil {
				if _, ok := fields[metadata.KeyCreatedAt]; !ok {
					fields[metadata.KeyCreatedAt] = created
				}
				return strings.TrimSpace(after), fields
			}
			// Malformed frontmatter: fall through and treat the whole
			// file as body.
		}
	}

	return text, map[string]string{metadata.KeyCreatedAt: created}
}

// FilenameForTitle maps a title to its filename, percent-encoding spaces.
func FilenameForTitle(title, ext string) string {
	return strings.ReplaceAll(title, " ", "%20") + "." + ext
}

// TitleFromPath recovers the title from a note path's filename stem.
func TitleFromPath(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.ReplaceAll(stem, "%20", " ")
}
