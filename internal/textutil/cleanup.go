package textutil

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// LLM output reaches the speech provider as plain text; markdown bullets,
// brackets and sentence punctuation otherwise get read aloud.
var (
	markupRunes    = regexp.MustCompile(`[\n\r\t*_\-+\[\](){}.?!]+`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

// CleanForSpeech strips control and markup punctuation from text, collapses
// whitespace and trims the result. The transform is a projection: applying it
// twice yields the same output as applying it once.
func CleanForSpeech(text string) string {
	text = norm.NFC.String(text)
	text = markupRunes.ReplaceAllString(text, " ")
	text = whitespaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
