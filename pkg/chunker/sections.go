package chunker

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/dikastis/cylaw/pkg/courts"
)

// Section markers emitted by the HTML conversion. The converter preserves
// the source bolding, so each marker appears with zero to four surrounding
// asterisks.
const (
	referencesMarker    = "ΑΝΑΦΟΡΕΣ"
	decisionMarker      = "ΚΕΙΜΕΝΟ ΑΠΟΦΑΣΗΣ"
	legalAnalysisMarker = "ΝΟΜΙΚΗ ΠΤΥΧΗ"
	jurisdictionWord    = "ΔΙΚΑΙΟΔΟΣΙΑ"
)

var (
	referencesRe    = regexp.MustCompile(`\*{0,4}` + referencesMarker + `\*{0,4}`)
	decisionRe      = regexp.MustCompile(`\*{0,4}` + decisionMarker + `\*{0,4}:?`)
	decisionSplitRe = regexp.MustCompile(`\*{0,4}` + decisionMarker + `\*{0,4}`)
	subjectRe       = regexp.MustCompile(`Subject:\s*(.+?)(?:\n|$)`)
	crossRefRe      = regexp.MustCompile(`\]\(([^)]*\.md)\)`)
)

// ExtractTitle returns the case title: the first Markdown H1, or failing
// that the first non-empty line that is not a horizontal rule, capped at
// 200 characters. The result is cleaned with CleanLine.
func ExtractTitle(text string) string {
	var raw string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			raw = strings.TrimSpace(line[2:])
			break
		}
	}
	if raw == "" {
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "---") {
				raw = truncateRunes(line, 200)
				break
			}
		}
	}
	if raw == "" {
		return ""
	}
	return CleanLine(raw)
}

// ExtractSubject returns the content of a "Subject:" line when the document
// has one. Only the English-era archives carry subject lines.
func ExtractSubject(text string) string {
	m := subjectRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return truncateRunes(strings.TrimSpace(m[1]), 200)
}

// jurisdictionScanLines bounds the search for the jurisdiction heading: it
// sits within the first page after the decision marker when present at all.
const jurisdictionScanLines = 30

// ExtractJurisdiction returns the ΔΙΚΑΙΟΔΟΣΙΑ line from the opening of the
// decision text, cleaned but otherwise verbatim. Documents without one fall
// back to the path-derived label, and to "" when neither source applies.
// Must run on the raw text: reference stripping can remove the marker the
// scan starts from.
func ExtractJurisdiction(text, docID string) string {
	parts := decisionSplitRe.Split(text, 2)
	if len(parts) == 2 {
		lines := strings.Split(parts[1], "\n")
		if len(lines) > jurisdictionScanLines {
			lines = lines[:jurisdictionScanLines]
		}
		for _, line := range lines {
			cleaned := CleanLine(line)
			if strings.Contains(cleaned, jurisdictionWord) {
				return cleaned
			}
		}
	}
	return courts.JurisdictionFromPath(docID)
}

// StripReferences removes the ΑΝΑΦΟΡΕΣ block sitting between the case
// header and the decision text. The citation lists in that block would
// dominate the embedding of any chunk containing them.
//
// Four layouts occur in the corpus:
//   - ΑΝΑΦΟΡΕΣ then ΚΕΙΜΕΝΟ ΑΠΟΦΑΣΗΣ: keep the text before the former and
//     after the latter, joined by a blank line
//   - ΑΝΑΦΟΡΕΣ alone: truncate from the marker onward
//   - ΚΕΙΜΕΝΟ ΑΠΟΦΑΣΗΣ alone: excise just the marker
//   - neither: text passes through unchanged
func StripReferences(text string) string {
	refs := referencesRe.FindStringIndex(text)
	body := decisionRe.FindStringIndex(text)

	if refs == nil {
		if body != nil {
			return text[:body[0]] + text[body[1]:]
		}
		return text
	}

	before := strings.TrimRightFunc(text[:refs[0]], unicode.IsSpace)
	if body != nil && body[0] > refs[0] {
		after := strings.TrimLeftFunc(text[body[1]:], unicode.IsSpace)
		if before == "" {
			return after
		}
		return before + "\n\n" + after
	}
	return before
}

// ExtractCrossRefs collects the targets of Markdown links pointing at other
// case files, deduplicated in order of first appearance. The targets are
// corpus-relative paths, so they double as doc IDs. Runs on raw text for
// the same reason as ExtractJurisdiction.
func ExtractCrossRefs(text string) []string {
	matches := crossRefRe.FindAllStringSubmatch(text, -1)
	if matches == nil {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			refs = append(refs, m[1])
		}
	}
	return refs
}
