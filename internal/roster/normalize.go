package roster

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// NormalizeName returns the identity key for a display name: NFC composed,
// case folded, with inner whitespace collapsed. "Jiří Novák" typed with
// combining marks and "JIŘÍ  NOVÁK" share one key.
func NormalizeName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	name = folder.String(name)
	return strings.Join(strings.Fields(name), " ")
}

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// SearchKey is a looser key for lookups typed by a person: no diacritics and
// dashes read as spaces, so "jiri-novak" finds "Jiří Novák".
func SearchKey(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ReplaceAll(name, "-", " ")
	return NormalizeName(name)
}
