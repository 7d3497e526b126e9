package hash

import "strings"

// MaxBasenameLength caps a sanitized basename before the hash suffix is
// appended.
const MaxBasenameLength = 100

// Sanitize replaces filesystem-hostile characters and control codes with
// underscores, trims the result, and caps its length.
func Sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			b.WriteByte('_')
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	s := strings.Trim(b.String(), " ._")
	if len(s) > MaxBasenameLength {
		s = s[:MaxBasenameLength]
	}
	return s
}
