package chunker

import (
	"regexp"
	"strings"
)

// maxLinkPasses bounds the nested-link stripping loop. Converter output
// nests links a handful of levels at most, and each pass removes at least
// one level.
const maxLinkPasses = 16

var (
	markdownLinkRe = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	// C1 control range: mojibake left over from mixed Greek legacy encodings
	c1ControlRe  = regexp.MustCompile(`[\x{80}-\x{9f}]`)
	horizRuleRe  = regexp.MustCompile(`(?m)^[-_]{3,}$`)
	blankRunRe   = regexp.MustCompile(`\n{3,}`)
	spaceRunRe   = regexp.MustCompile(` {2,}`)
	dashRunRe    = regexp.MustCompile(`-{2,}`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

var invisibleReplacer = strings.NewReplacer(
	" ", " ", // no-break space
	"‑", "-", // non-breaking hyphen
	"­", "", // soft hyphen
	"͘", "", // stray combining mark
)

// CleanText strips formatting and encoding noise from document body text
// before splitting. It removes decoration only, never legal content. The
// pass order matters: emphasis markers hide link syntax, and stripping one
// link layer can expose another, so the link pass repeats until stable.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "*", "")
	text = strings.ReplaceAll(text, "#", "")

	for i := 0; i < maxLinkPasses && markdownLinkRe.MatchString(text); i++ {
		text = markdownLinkRe.ReplaceAllString(text, "$1")
	}

	text = c1ControlRe.ReplaceAllString(text, "")
	text = invisibleReplacer.Replace(text)
	text = horizRuleRe.ReplaceAllString(text, "")

	text = blankRunRe.ReplaceAllString(text, "\n\n")
	text = spaceRunRe.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// CleanLine is the single-line variant used for titles and jurisdiction
// lines. It maps C1 bytes to dashes instead of deleting them: in headings
// they are almost always a mangled en-dash between party names.
func CleanLine(line string) string {
	line = strings.ReplaceAll(line, "*", "")
	line = strings.ReplaceAll(line, "#", "")
	line = markdownLinkRe.ReplaceAllString(line, "$1")
	line = c1ControlRe.ReplaceAllString(line, "-")
	line = strings.ReplaceAll(line, "‑", "-")
	line = dashRunRe.ReplaceAllString(line, "-")
	line = whitespaceRe.ReplaceAllString(line, " ")
	return strings.TrimSpace(line)
}

// truncateRunes caps s at n characters. Greek text is two bytes per letter
// in UTF-8, so byte slicing would cut glyphs in half.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
