package util

import (
	"regexp"
	"strings"
)

// CodeAlphabet is the 32-symbol pairing code alphabet. Visually ambiguous
// characters (0/O, 1/I) are excluded so codes survive being read aloud.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the fixed pairing code length.
const CodeLength = 6

var codeRegex = regexp.MustCompile(`^[` + CodeAlphabet + `]{6}$`)

// NormalizeCode uppercases and trims a pairing code for use as a store key.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidCode reports whether a normalized code matches the fixed-length
// restricted alphabet. Callers must check this before any store lookup.
func IsValidCode(code string) bool {
	return codeRegex.MatchString(code)
}

var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func IsValidUUID(s string) bool {
	if s == "" {
		return false
	}
	return uuidRegex.MatchString(s)
}
