package chat

import (
	"html"
	"html/template"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// highlightKeywords are emphasized when a turn is rendered.
var highlightKeywords = []string{
	"definition", "types", "example", "advantages", "disadvantages",
	"attack", "security", "steps", "process", "sql", "injection",
}

var (
	// highlightPattern matches every keyword in lower case and capitalized
	// form ("sql", "Sql"). Matching is case-sensitive: "SQL" is left alone.
	highlightPattern = buildHighlightPattern(highlightKeywords)

	// highlightPolicy lets through exactly the markup Highlight generates.
	highlightPolicy = newHighlightPolicy()
)

func buildHighlightPattern(keywords []string) *regexp.Regexp {
	alternatives := make([]string, 0, 2*len(keywords))
	for _, kw := range keywords {
		alternatives = append(alternatives, regexp.QuoteMeta(kw), regexp.QuoteMeta(capitalize(kw)))
	}
	return regexp.MustCompile(strings.Join(alternatives, "|"))
}

func newHighlightPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^highlight$`)).OnElements("span")
	return p
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Highlight renders text as HTML with keywords wrapped in
// <span class="highlight">.
//
// The text is escaped first, so markup inside a message (including anything
// an AI reply echoes back) is displayed, never interpreted. The result is
// then run through a bluemonday policy that allows nothing but the highlight
// spans. Stored turns are never modified; this only affects rendering.
func Highlight(text string) template.HTML {
	if text == "" {
		return ""
	}
	escaped := html.EscapeString(text)
	marked := highlightPattern.ReplaceAllString(escaped, `<span class="highlight">$0</span>`)
	return template.HTML(highlightPolicy.Sanitize(marked))
}
