package indexing

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHashLen is the hex length of ContentHash output (128 bits).
const ContentHashLen = 32

// ContentHash is a change-detection digest of searchable text, not a security primitive.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}
