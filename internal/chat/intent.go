package chat

import "strings"

// projectKeywords decide whether a message is about building something.
var projectKeywords = []string{
	"project", "app", "application", "website", "system",
	"platform", "tool", "software", "ai", "ml",
	"build", "create", "develop", "design",
}

// IsProjectRelated reports whether text mentions any project keyword.
//
// Matching is case-insensitive and by substring, not by whole word, so
// "said" matches "ai" and "happy" matches "app". The gate is meant to be
// cheap and permissive: it only filters out small talk before an AI call.
func IsProjectRelated(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range projectKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
