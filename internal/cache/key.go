package cache

import "strings"

// keySeparator joins key segments. Colons keep the keys readable in redis-cli
// and group them per service when browsing.
const keySeparator = ":"

// Key builds a namespaced cache key for a service. Segments containing the
// separator are sanitized so "anilist" and "jimaku" keys can never collide.
func Key(service string, parts ...string) string {
	segments := make([]string, 0, len(parts)+1)
	segments = append(segments, sanitizeSegment(service))
	for _, p := range parts {
		segments = append(segments, sanitizeSegment(p))
	}
	return strings.Join(segments, keySeparator)
}

func sanitizeSegment(s string) string {
	return strings.ReplaceAll(s, keySeparator, "_")
}
