package cache

import (
	"strings"
	"unicode"
)

// toSnake normalizes a namespace to snake_case. Anything that is not a
// letter or digit becomes a single underscore so namespaces stay safe for
// key value stores that reject punctuation (Redis, Memcache).
func toSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	pendingSep := false
	sep := func() {
		if b.Len() > 0 {
			pendingSep = true
		}
	}

	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					sep()
				}
			}
			if pendingSep {
				b.WriteByte('_')
				pendingSep = false
			}
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsLower(r), unicode.IsDigit(r):
			if unicode.IsDigit(r) && i > 0 && unicode.IsLetter(runes[i-1]) {
				sep()
			}
			if pendingSep {
				b.WriteByte('_')
				pendingSep = false
			}
			b.WriteRune(r)
		default:
			sep()
		}
	}

	return b.String()
}
