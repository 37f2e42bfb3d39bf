package moderation

import "strings"

// Slugify derives a URL-safe slug from an equipment name: lowercase, strip
// everything outside [a-z0-9 -], collapse runs of whitespace and hyphens to a
// single hyphen. "DHS Hurricane 3!!" becomes "dhs-hurricane-3".
func Slugify(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	slug := make([]rune, 0, len(lowered))
	lastDash := false
	for _, ch := range lowered {
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') {
			slug = append(slug, ch)
			lastDash = false
			continue
		}
		if ch == ' ' || ch == '\t' || ch == '-' {
			if !lastDash && len(slug) > 0 {
				slug = append(slug, '-')
				lastDash = true
			}
		}
		// anything else is stripped
	}
	return strings.Trim(string(slug), "-")
}
