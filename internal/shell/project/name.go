package project

import "strings"

// =============================================================================
// Context Names
// =============================================================================

// Slugify turns a project name into a compose project name, which
// prefixes container names and names the shared external network.
//
// The transformation rules are:
//   - Lowercase letters, digits, hyphens and underscores are kept
//   - Uppercase letters are lowercased
//   - Spaces and dots become hyphens
//   - All other characters are dropped
//
// Example:
//
//	Slugify("Shop API")      // returns "shop-api"
//	Slugify("acme.prod v2!") // returns "acme-prod-v2"
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + 'a' - 'A')
		case r == ' ' || r == '.':
			b.WriteByte('-')
		}
	}
	return b.String()
}

// ContextName returns the slug of the project name.
func (p *Project) ContextName() string {
	return Slugify(p.Name)
}
