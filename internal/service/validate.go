package service

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

// Field limits, counted in characters (runes), not bytes.
const (
	MaxTitleLength       = 200
	MaxExcerptLength     = 500
	MaxCategoryName      = 50
	MaxCategoryDesc      = 500
	MaxProfileNameLength = 100
	MaxBioLength         = 500
	MaxHandleLength      = 50
)

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// ValidFeaturedImage accepts an empty value, a single emoji glyph or an
// absolute http(s) URL.
func ValidFeaturedImage(s string) bool {
	return s == "" || IsSingleEmoji(s) || IsURL(s)
}

// IsURL reports whether s is an absolute http or https URL with a host.
func IsURL(s string) bool {
	if strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

const (
	zwj  = 0x200D
	vs16 = 0xFE0F
)

// IsSingleEmoji reports whether s renders as exactly one emoji: a pictograph
// optionally followed by a variation selector or skin tone, possibly joined
// to further pictographs with zero-width joiners, or a regional-indicator
// flag pair.
func IsSingleEmoji(s string) bool {
	runes := []rune(s)
	if len(runes) == 0 {
		return false
	}
	if len(runes) == 2 && isRegionalIndicator(runes[0]) && isRegionalIndicator(runes[1]) {
		return true
	}

	i := 0
	for {
		if i >= len(runes) || !isPictograph(runes[i]) {
			return false
		}
		i++
		for i < len(runes) && (runes[i] == vs16 || isSkinTone(runes[i])) {
			i++
		}
		if i == len(runes) {
			return true
		}
		if runes[i] != zwj {
			return false
		}
		i++
	}
}

func isPictograph(r rune) bool {
	switch {
	case r >= 0x1F600 && r <= 0x1F64F: // emoticons
	case r >= 0x1F300 && r <= 0x1F5FF: // symbols & pictographs
	case r >= 0x1F680 && r <= 0x1F6FF: // transport & map
	case r >= 0x1F900 && r <= 0x1F9FF: // supplemental symbols
	case r >= 0x1FA70 && r <= 0x1FAFF: // symbols extended-A
	case r >= 0x2600 && r <= 0x26FF: // misc symbols
	case r >= 0x2700 && r <= 0x27BF: // dingbats
	default:
		return false
	}
	return true
}

func isRegionalIndicator(r rune) bool { return r >= 0x1F1E6 && r <= 0x1F1FF }

func isSkinTone(r rune) bool { return r >= 0x1F3FB && r <= 0x1F3FF }

// trimmedOrNil trims s and maps the empty result to nil.
func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
