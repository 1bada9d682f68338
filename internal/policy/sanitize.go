// Package policy maps discovered keys to safe column identifiers, applies
// the sensitive-column exclusion rule and picks the company code filter key.
// Everything here is pure and total.
package policy

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Placeholder is the identifier used for keys that sanitize to nothing.
const Placeholder = "UNNAMED_COLUMN"

// MaxIdentLen bounds identifier length; Postgres truncates at 63 bytes.
const MaxIdentLen = 63

// Sanitize maps a raw JSON key to an identifier matching ^[A-Z_][A-Z0-9_]*$.
// Accents are folded, letters upper-cased, every other rune becomes '_', and
// a leading digit is prefixed with '_'. Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(key string) string {
	s := sanitizeFull(key)
	if len(s) > MaxIdentLen {
		s = s[:MaxIdentLen]
	}
	return s
}

// sanitizeFull is Sanitize without the length bound.
func sanitizeFull(key string) string {
	// Decompose, drop nonspacing marks, recompose.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, key)
	if err != nil {
		folded = key
	}

	var b strings.Builder
	b.Grow(len(folded) + 1)
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	s := b.String()
	if s == "" {
		return Placeholder
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	return s
}

// uniqueIdent returns base, or base with a numeric suffix when base is
// already taken. The suffix replaces trailing bytes so the result stays
// within MaxIdentLen.
func uniqueIdent(base string, taken map[string]struct{}) string {
	if _, dup := taken[base]; !dup {
		return base
	}
	for n := 2; ; n++ {
		suffix := "_" + strconv.Itoa(n)
		stem := base
		if len(stem)+len(suffix) > MaxIdentLen {
			stem = stem[:MaxIdentLen-len(suffix)]
		}
		if _, dup := taken[stem+suffix]; !dup {
			return stem + suffix
		}
	}
}
