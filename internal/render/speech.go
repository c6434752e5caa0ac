package render

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	mdHeading      = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	mdBold         = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	mdItalic       = regexp.MustCompile(`\*([^*]+)\*`)
	mdBoldUnder    = regexp.MustCompile(`__([^_]+)__`)
	mdItalicUnder  = regexp.MustCompile(`\b_([^_]+)_\b`)
	mdLink         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdRule         = regexp.MustCompile(`(?m)^-{3,}[ \t]*$`)
	mdBullet       = regexp.MustCompile(`(?m)^[ \t]*[-*][ \t]+`)
	blankRuns      = regexp.MustCompile(`\n{3,}`)
	spaceRuns      = regexp.MustCompile(` {2,}`)
	sentencePauses = strings.NewReplacer(". ", "... ", "? ", "?... ", "! ", "!... ")
)

// SpeechText strips markdown markers from text and lengthens sentence pauses so
// it reads naturally when spoken.
func SpeechText(text string) string {
	text = mdHeading.ReplaceAllString(text, "")
	text = mdRule.ReplaceAllString(text, "")
	text = mdBullet.ReplaceAllString(text, "")
	text = mdBold.ReplaceAllString(text, "$1")
	text = mdItalic.ReplaceAllString(text, "$1")
	text = mdBoldUnder.ReplaceAllString(text, "$1")
	text = mdItalicUnder.ReplaceAllString(text, "$1")
	text = mdLink.ReplaceAllString(text, "$1")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	text = spaceRuns.ReplaceAllString(text, " ")
	text = sentencePauses.Replace(text)
	return strings.TrimSpace(text)
}

// truncateRunes cuts text to at most limit runes, preferring a word boundary.
func truncateRunes(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	cut := string([]rune(text)[:limit])
	if i := strings.LastIndexAny(cut, " \n"); i > limit/2 {
		cut = cut[:i]
	}
	return cut
}
