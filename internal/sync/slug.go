package sync

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// slugify folds a product name to an ascii slug: diacritics stripped via
// NFD decomposition, đ mapped to d, and every other run of non-alphanumeric
// characters collapsed to a single hyphen.
func slugify(value string) string {
	folded := strings.Map(func(r rune) rune {
		switch r {
		case 'đ':
			return 'd'
		case 'Đ':
			return 'D'
		}
		return r
	}, value)
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), folded)
	if err != nil {
		stripped = folded
	}
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(stripped) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		default:
			pendingHyphen = true
		}
	}
	return b.String()
}

// fallbackSKU derives a stable SKU for pages that expose none, so repeated
// runs keep matching the same record.
func fallbackSKU(name string) string {
	slug := slugify(name)
	if len(slug) > 24 {
		slug = slug[:24]
	}
	return strings.ToUpper("SKU-" + slug)
}
