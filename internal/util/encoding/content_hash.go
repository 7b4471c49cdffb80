package encoding

import (
	"crypto/sha256"
	"strings"
)

// ContentHash returns the sha256 digest of data in lowercase Crockford Base32.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)

	return EncodeCrockfordB32LC(sum[:])
}

// ETag formats a content hash as a strong HTTP entity tag.
func ETag(hash string) string {
	return `"` + hash + `"`
}

// MatchesETag reports whether an If-None-Match header value names hash.
// The header may list several tags and may use weak tags or "*".
func MatchesETag(header, hash string) bool {
	for _, tag := range strings.Split(header, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" {
			return true
		}

		tag = strings.TrimPrefix(tag, "W/")
		tag = strings.Trim(tag, `"`)

		if tag != "" && NormalizeCrockfordB32LC(tag) == hash {
			return true
		}
	}

	return false
}
