package service

import "strings"

// Slugify derives a URL slug from a category name.
//
// The name is lowercased; every run of characters other than ASCII letters,
// digits, hiragana, katakana and CJK ideographs becomes a single "-", and
// dashes at either end are dropped. "Go & Rust!" becomes "go-rust" and
// "日本語 入門" becomes "日本語-入門".
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	dash := false
	for _, r := range strings.ToLower(name) {
		if slugRune(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	return b.String()
}

func slugRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r >= 0x3040 && r <= 0x309F: // hiragana
		return true
	case r >= 0x30A0 && r <= 0x30FF: // katakana
		return true
	case r >= 0x4E00 && r <= 0x9FAF: // CJK unified ideographs
		return true
	}
	return false
}
