package encoding

import (
	"strings"
)

// crockfordAlphabet is Crockford's Base32 alphabet in lowercase.
// I, L, O and U are left out so encoded values survive being read aloud or retyped.
const crockfordAlphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// EncodeCrockfordB32LC encodes input with Crockford's Base32 alphabet, lowercase and unpadded.
//
//nolint:gosec
func EncodeCrockfordB32LC(input []byte) string {
	var (
		out   strings.Builder
		bits  uint
		accum uint32
	)

	out.Grow((len(input)*8 + 4) / 5)

	for _, b := range input {
		accum = accum<<8 | uint32(b)
		bits += 8

		for bits >= 5 {
			bits -= 5
			out.WriteByte(crockfordAlphabet[(accum>>bits)&0x1F])
		}
	}

	if bits > 0 {
		out.WriteByte(crockfordAlphabet[(accum<<(5-bits))&0x1F])
	}

	return out.String()
}

// NormalizeCrockfordB32LC maps a user supplied Crockford Base32 string onto the
// canonical lowercase form: whitespace is dropped, O reads as 0, I and L read as 1.
func NormalizeCrockfordB32LC(input string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		case 'O', 'o':
			return '0'
		case 'I', 'i', 'L', 'l':
			return '1'
		}

		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}

		return r
	}, input)
}
