package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// RemoveDiacritics strips combining marks, so "Jiří" becomes "Jiri".
func RemoveDiacritics(s string) string {
	result, _, _ := transform.String(stripMarks, s)
	return result
}

// NormalizeStudentName folds a student's display name for searching: no
// diacritics, lower case, dashes as spaces and runs of whitespace collapsed.
// Gallery labels keep the name exactly as registered.
func NormalizeStudentName(name string) string {
	name = strings.ToLower(RemoveDiacritics(name))
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}

// StudentNameContains reports whether query occurs in displayName after both
// are normalized. An empty query matches every name.
func StudentNameContains(displayName, query string) bool {
	q := NormalizeStudentName(query)
	return q == "" || strings.Contains(NormalizeStudentName(displayName), q)
}
