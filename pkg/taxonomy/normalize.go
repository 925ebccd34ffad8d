package taxonomy

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer transforms a label into its comparison key.
type Normalizer func(string) string

// stripAccents returns a fresh chain per call: transform.Chain keeps internal
// buffers and must not be shared between goroutines.
func stripAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Normalize returns the normalized key of a label: accents stripped, "&" spelled
// as "e", anything other than letters, digits, spaces, '-' and '>' turned into a
// space, whitespace collapsed and trimmed, lowercased.
//
// Lowercasing happens before decomposition: some uppercase letters (İ) lowercase
// into a base letter plus a combining mark, which must be stripped in the same pass
// for Normalize(Normalize(s)) == Normalize(s) to hold.
func Normalize(s string) string {
	folded, _, err := transform.String(stripAccents(), strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r == '&':
			b.WriteString(" e ")
		case r == '-' || r == '>':
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
