package sqlstore

// lineOffsets returns the byte offset of the start of every line in s
// (lines as produced by splitting on '\n'), plus a trailing sentinel equal
// to len(s), so line i spans offsets[i]..offsets[i+1]. Offsets are
// byte-accurate regardless of multi-byte characters because lines are
// located by scanning raw bytes.
func lineOffsets(s string) []int {
	offsets := []int{0}
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return append(offsets, len(s))
}
