package mcpserver

// NoteFormatContract describes the canonical note format that LLM
// consumers should follow when creating notes.
const NoteFormatContract = `# norg Note Format Contract

Every note stored in norg MUST follow this structure.

## Structure

` + "```" + `markdown
---
created_at: 2025-01-15 10:30:00 +0000   # stamped automatically on first sync
updated_at: 2025-01-15 10:30:00 +0000   # refreshed on every sync
tags: project-x, meeting-notes          # OPTIONAL - comma-separated list
---

Body text in standard Markdown.
` + "```" + `

## Rules

1. **The title is the filename stem.** Spaces in titles are stored as ` + "`%20`" + ` on disk.
2. **Frontmatter is a flat key: value map.** Lists like ` + "`tags`" + ` and ` + "`topics`" + ` are
   comma-separated strings, kept sorted and deduplicated by the sync pipeline.
3. **Timestamps are managed for you.** Do not hand-edit ` + "`created_at`" + `; it is set
   once and never overwritten. ` + "`updated_at`" + ` is refreshed on every sync.
4. **Embedded SQL blocks** are fenced with ` + "```" + `sql and executed on sync; the
   result table is spliced in below the fence between ` + "`<!-- BEGIN SQL -->`" + ` and
   ` + "`<!-- END SQL -->`" + ` markers. Do not edit the rendered table by hand.
5. **Skipping observers:** set ` + "`skip_observers: all`" + ` (or a comma list of observer
   names) in frontmatter to exclude a note from parts of the pipeline.
6. **Encoding** is UTF-8.
`
