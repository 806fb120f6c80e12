// Package checksum provides the content digest behind the idempotency
// gate: a note whose body digest matches the cached one is skipped.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumString digests a note body held as a string.
func SumString(s string) string {
	return Sum([]byte(s))
}
