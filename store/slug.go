package store

import (
	"regexp"
	"strings"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives a filesystem-safe identifier from a source's name, falling
// back to its URL. The same inputs always slug identically.
func Slug(name, url string) string {
	s := name
	if s == "" {
		s = url
		s = strings.TrimPrefix(s, "https://")
		s = strings.TrimPrefix(s, "http://")
	}
	s = strings.ToLower(s)
	s = slugPattern.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
