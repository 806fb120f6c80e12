package sqlstore

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// Markup recognised by the rewriter.
const (
	sqlFenceOpen = "```sql"
	fenceClose   = "```"
	beginMarker  = "<!-- BEGIN SQL -->"
	endMarker    = "<!-- END SQL -->"
	tocMarker    = "## Contents"
)

// sqlBlock is one embedded query and the byte range it occupies in the
// document, including any previously rendered result so a rewrite pass
// fully supersedes the prior rendering.
type sqlBlock struct {
	query      string
	start, end int
}

// Rewriter finds embedded SQL blocks, executes them against the store,
// and splices a rendered Markdown table in place of each block.
type Rewriter struct {
	store  Querier
	ext    string
	logger *slog.Logger
}

// NewRewriter creates a rewriter that renders note links with the given
// file extension.
func NewRewriter(store Querier, ext string, logger *slog.Logger) *Rewriter {
	return &Rewriter{store: store, ext: ext, logger: logger}
}

// Rewrite replaces every SQL block in content with a freshly rendered
// result. It reports changed=false when the document contains no blocks.
// Rendering is idempotent: a second pass over its own output is
// byte-identical for a deterministic query.
func (r *Rewriter) Rewrite(ctx context.Context, content string) (out string, changed bool, err error) {
	blocks := extractBlocks(content)
	if len(blocks) == 0 {
		return content, false, nil
	}

	r.logger.Debug("rewrite: processing blocks", slog.Int("count", len(blocks)))

	// Replace back to front so earlier byte ranges stay valid.
	out = content
	for i := len(blocks) - 1; i >= 0; i-- {
		rendered, err := r.renderBlock(ctx, blocks[i])
		if err != nil {
			return "", false, err
		}
		out = out[:blocks[i].start] + rendered + out[blocks[i].end:]
	}
	return out, true, nil
}

// renderBlock executes the block's query and renders the fenced query,
// the marker pair, and the result table.
func (r *Rewriter) renderBlock(ctx context.Context, b sqlBlock) (string, error) {
	res, err := r.store.Query(ctx, b.query)
	if err != nil {
		return "", fmt.Errorf("rewrite: %w", err)
	}

	var out strings.Builder
	out.WriteString(sqlFenceOpen)
	out.WriteByte('\n')
	out.WriteString(b.query)
	out.WriteByte('\n')
	out.WriteString(fenceClose)
	out.WriteByte('\n')
	out.WriteString(beginMarker)
	out.WriteByte('\n')

	out.WriteString("| ")
	out.WriteString(strings.Join(res.Columns, " | "))
	out.WriteString(" |\n|")
	for range res.Columns {
		out.WriteString("---|")
	}
	out.WriteByte('\n')

	for _, row := range res.Rows {
		cells := make([]string, len(res.Columns))
		for i, col := range res.Columns {
			val := row[col]
			if col == "path" {
				cells[i] = r.renderLink(val)
			} else {
				cells[i] = strings.TrimSpace(val)
			}
		}
		out.WriteString("| ")
		out.WriteString(strings.Join(cells, " | "))
		out.WriteString(" |\n")
	}

	out.WriteString(endMarker)
	out.WriteByte('\n')
	return out.String(), nil
}

// renderLink turns a stored note path into a relative Markdown link using
// the filename stem and the configured extension.
func (r *Rewriter) renderLink(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return fmt.Sprintf("[%s](./%s.%s)", stem, stem, r.ext)
}

// extractBlocks scans content line by line for fenced SQL blocks outside
// the table-of-contents section. After a block's closing fence it consumes
// any stale rendering: lines up to the next opening fence (exclusive), the
// end marker (inclusive), or end of input.
func extractBlocks(content string) []sqlBlock {
	lines := strings.Split(content, "\n")
	offsets := lineOffsets(content)

	var blocks []sqlBlock
	i := 0
	for i < len(lines) {
		if !strings.HasPrefix(strings.TrimSpace(lines[i]), sqlFenceOpen) ||
			strings.Contains(content[:offsets[i]], tocMarker) {
			i++
			continue
		}

		start := offsets[i]
		i++

		var query []string
		for i < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[i]), fenceClose) {
			query = append(query, lines[i])
			i++
		}
		if i < len(lines) {
			i++ // closing fence
		}

		end := i
		for end < len(lines) {
			line := strings.TrimSpace(lines[end])
			if strings.HasPrefix(line, sqlFenceOpen) {
				break
			}
			if line == endMarker {
				end++
				break
			}
			end++
		}

		blocks = append(blocks, sqlBlock{
			query: strings.TrimSpace(strings.Join(query, "\n")),
			start: start,
			end:   offsets[end],
		})
		i = end
	}
	return blocks
}
