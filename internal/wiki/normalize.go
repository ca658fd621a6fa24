package wiki

import (
	"regexp"
	"strings"
)

var (
	markupPattern     = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	hyphenRunPattern  = regexp.MustCompile(`-{2,}`)
)

// NormalizeName produces the canonical stored form of a page name: trimmed,
// internal whitespace collapsed to single hyphens, lower-cased, with any
// markup stripped. The transform is idempotent.
func NormalizeName(name string) string {
	normalized := markupPattern.ReplaceAllString(name, "")
	normalized = strings.TrimSpace(normalized)
	normalized = whitespacePattern.ReplaceAllString(normalized, "-")
	normalized = hyphenRunPattern.ReplaceAllString(normalized, "-")
	return strings.ToLower(normalized)
}
