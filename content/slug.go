package content

import (
	"strings"
	"unicode"
)

// ValidateSlug checks that slug can be used as both a file name and a URL
// path segment.
func ValidateSlug(slug string) error {
	if strings.TrimSpace(slug) == "" {
		return invalid("slug", "is required")
	}
	if strings.HasPrefix(slug, ".") {
		return invalid("slug", "must not start with a dot")
	}
	if strings.Contains(slug, "..") {
		return invalid("slug", "must not contain \"..\"")
	}
	for _, r := range slug {
		switch {
		case r == '/' || r == '\\':
			return invalid("slug", "must not contain path separators")
		case unicode.IsSpace(r) || unicode.IsControl(r):
			return invalid("slug", "must not contain whitespace or control characters")
		case strings.ContainsRune(`?#%:*"<>|`, r):
			return invalid("slug", "must not contain %q", r)
		}
	}
	return nil
}

// Slugify converts a title to a URL-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
