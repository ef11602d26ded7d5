package service

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// identityKeyPattern is also a safe file name for the reference image.
var identityKeyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,63}$`)

// removeDiacritics turns "Jiří" into "Jiri".
func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, _ := transform.String(t, s)
	return out
}

// foldName normalises a name for search: no diacritics, lower case, single
// spaces.
func foldName(s string) string {
	s = strings.ToLower(removeDiacritics(s))
	s = strings.ReplaceAll(s, "-", " ")
	return strings.Join(strings.Fields(s), " ")
}

// slugKey derives an identity key from a display name:
// "Zoë Ann-Marie" -> "zoe_ann_marie".
func slugKey(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(removeDiacritics(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			underscore = false
		case !underscore && b.Len() > 0:
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
