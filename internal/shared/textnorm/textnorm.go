// Package textnorm normalizes the free-text keys that the two IBGE sources
// share. The SIDRA API and the projection spreadsheet do not agree on Unicode
// composition, so "São Paulo" may arrive precomposed from one and decomposed
// from the other.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Key trims s and returns its NFC form. It is the canonical spelling of a
// join key.
func Key(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Fold returns a case and accent insensitive form of s for label matching:
// "Unidade da Federação" and "unidade da federacao" fold to the same string.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		folded = strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// EqualFold reports whether a and b are the same label under Fold
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}

// Slug turns a state name into a file-name friendly token:
// "Mato Grosso do Sul" becomes "mato-grosso-do-sul".
func Slug(s string) string {
	folded := Fold(s)
	var b strings.Builder
	dash := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
