// Package metadata implements the frontmatter merge rules applied when
// folding observer results into a note's field map.
package metadata

import (
	"sort"
	"strings"
)

// Reserved keys with non-default merge behaviour.
const (
	KeyTags      = "tags"
	KeyTopics    = "topics"
	KeyCreatedAt = "created_at"
	KeyUpdatedAt = "updated_at"
	KeyTimestamp = "timestamp"
)

// Merge folds incoming into existing, in place. Rules per key:
//
//   - tags, topics: union of comma-separated tokens, trimmed, sorted,
//     deduplicated, rejoined with ", ". Order-independent and idempotent.
//   - created_at: written only if absent; an existing value always wins.
//   - updated_at: always overwritten.
//   - timestamp: legacy field, dropped.
//   - anything else: overwritten (last writer wins across the round).
func Merge(existing, incoming map[string]string) {
	for key, value := range incoming {
		switch key {
		case KeyTags, KeyTopics:
			existing[key] = mergeList(existing[key], value)
		case KeyCreatedAt:
			if _, ok := existing[key]; !ok {
				existing[key] = value
			}
		case KeyUpdatedAt:
			existing[key] = value
		case KeyTimestamp:
			// Redundant with created_at/updated_at; never merged.
		default:
			existing[key] = value
		}
	}
}

// mergeList unions two comma-separated lists into a canonical
// sorted, deduplicated ", "-joined form.
func mergeList(existing, incoming string) string {
	seen := make(map[string]struct{})
	var out []string
	for _, raw := range append(splitList(existing), splitList(incoming)...) {
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}
		out = append(out, raw)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

// SplitList splits a comma-separated field value into trimmed, non-empty
// tokens.
func SplitList(s string) []string {
	return splitList(s)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// NormalizeList rewrites a comma-separated value into trimmed ", "-joined
// form without sorting. Used when accepting user-supplied tags.
func NormalizeList(s string) string {
	return strings.Join(splitList(s), ", ")
}
