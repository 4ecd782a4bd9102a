package services

import (
	"regexp"
	"strings"
)

var (
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	unsafeReplace = strings.NewReplacer("<", "", ">", "", "&", "")
)

// Sanitize strips markup from text typed by the user before it is stored or sent.
// Backend-authored text is trusted and never passes through here.
func Sanitize(raw string) string {
	clean := strings.TrimSpace(raw)
	clean = tagPattern.ReplaceAllString(clean, "")
	clean = unsafeReplace.Replace(clean)
	// removing a tag can expose surrounding whitespace
	return strings.TrimSpace(clean)
}
