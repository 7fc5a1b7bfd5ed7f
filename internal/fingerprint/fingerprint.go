// Package fingerprint computes stable content digests used for change
// detection. The digest only needs to answer "has this file changed since
// its last recorded scan"; it is not used for anything cryptographic.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of content. Identical content
// always yields an identical digest.
func Sum(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// SumString is Sum for string content.
func SumString(content string) string {
	return Sum([]byte(content))
}
