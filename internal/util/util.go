package util

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var slugPattern = regexp.MustCompile("[^a-z0-9]+")

// Slugify creates a slug from the given string.
func Slugify(s string) string {
	s = strings.ToLower(s)

	// Remove accents
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, _ = transform.String(t, s)

	s = slugPattern.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Normalize removes NULL bytes and trims the string.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}

// JoinWithOr joins a slice of strings with commas and "or" for the last element.
func JoinWithOr(items []string) string {
	if len(items) == 0 {
		return ""
	}
	if len(items) == 1 {
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " or " + items[len(items)-1]
}

var snakeCache sync.Map

// CamelToSnake converts CamelCase (or camelCase) identifiers to snake_case.
// Digits become their own word and non-alphanumeric runes act as separators.
// Results are memoized.
func CamelToSnake(s string) string {
	if v, ok := snakeCache.Load(s); ok {
		return v.(string)
	}
	out := camelToSnake(s)
	snakeCache.Store(s, out)
	return out
}

func camelToSnake(s string) string {
	src := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 8)

	sep := func() {
		str := b.String()
		if len(str) > 0 && str[len(str)-1] != '_' {
			b.WriteByte('_')
		}
	}

	for i, r := range src {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			sep()
			continue
		}
		if i > 0 {
			prev := src[i-1]
			switch {
			case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
				sep()
			case unicode.IsUpper(r) && unicode.IsUpper(prev) && i+1 < len(src) && unicode.IsLower(src[i+1]):
				// acronym followed by a word: "HTTPServer" -> "http_server"
				sep()
			case unicode.IsDigit(r) && unicode.IsLetter(prev):
				sep()
			case unicode.IsLetter(r) && unicode.IsDigit(prev):
				sep()
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return strings.Trim(b.String(), "_")
}

// SanitizeSessionID masks a session identifier so it can be logged. The first
// group is kept, everything after it is replaced with X.
func SanitizeSessionID(id string) string {
	if parsed, err := uuid.Parse(id); err == nil {
		id = parsed.String()
	}

	head, tail, found := strings.Cut(id, "-")
	if !found {
		if len(id) <= 8 {
			return strings.Repeat("X", len(id))
		}
		head, tail = id[:8], id[8:]
		return head + mask(tail)
	}
	return head + "-" + mask(tail)
}

func mask(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' {
			return r
		}
		return 'X'
	}, s)
}
