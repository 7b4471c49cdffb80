package encoding_test

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mkrupp/filevault/internal/util/encoding"
)

func TestContentHash(t *testing.T) {
	t.Parallel()

	sum := sha256.Sum256([]byte("hello"))

	assert.Equal(t, encoding.EncodeCrockfordB32LC(sum[:]), encoding.ContentHash([]byte("hello")))
	assert.Len(t, encoding.ContentHash(nil), 52)
	assert.NotEqual(t, encoding.ContentHash([]byte("a")), encoding.ContentHash([]byte("b")))

	hash := encoding.ContentHash([]byte("report"))
	assert.Equal(t, hash, encoding.NormalizeCrockfordB32LC(hash), "hashes are already canonical")
}

func TestMatchesETag(t *testing.T) {
	t.Parallel()

	hash := encoding.ContentHash([]byte("report"))

	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{name: "empty header", header: "", want: false},
		{name: "exact tag", header: encoding.ETag(hash), want: true},
		{name: "weak tag", header: "W/" + encoding.ETag(hash), want: true},
		{name: "wildcard", header: "*", want: true},
		{name: "in list", header: `"abc", ` + encoding.ETag(hash), want: true},
		{name: "other tag", header: `"abc"`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, encoding.MatchesETag(tt.header, hash))
		})
	}
}
