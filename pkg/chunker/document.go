package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dikastis/cylaw/internal/models"
	"github.com/dikastis/cylaw/pkg/courts"
)

// ExtractDocument builds the whole-document embedding record for one case.
// Returns nil for placeholder documents and for documents whose body comes
// out empty after cleaning.
//
// The content favors the ΝΟΜΙΚΗ ΠΤΥΧΗ analysis section when the document
// has one: it summarizes the legal reasoning and embeds far better than
// pages of procedural history.
func (c *Chunker) ExtractDocument(text, docID string) *models.DocumentRecord {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minDocumentChars {
		return nil
	}

	title := ExtractTitle(text)
	subject := ExtractSubject(text)
	body := extractBody(text)

	if strings.TrimSpace(body) == "" {
		return nil
	}

	var parts []string
	if title != "" {
		parts = append(parts, title)
	}
	if subject != "" {
		parts = append(parts, "[Subject: "+subject+"]")
	}
	parts = append(parts, body)

	content := strings.Join(parts, "\n\n")
	if utf8.RuneCountInString(content) > c.config.MaxContentChars {
		content = truncateRunes(content, c.config.MaxContentChars-100) + "\n[...truncated]"
	}

	court := courts.Detect(docID)

	return &models.DocumentRecord{
		DocID:        docID,
		Content:      content,
		Title:        truncateRunes(title, 200),
		Court:        court,
		Year:         courts.Year(docID),
		CourtLevel:   courts.Level(court),
		Subcourt:     courts.Subcourt(docID, court),
		Jurisdiction: ExtractJurisdiction(text, docID),
	}
}

// extractBody returns the text to embed for the document record:
// everything after ΝΟΜΙΚΗ ΠΤΥΧΗ when present, else after ΚΕΙΜΕΝΟ ΑΠΟΦΑΣΗΣ,
// else the whole cleaned text. The markers are matched on cleaned text, so
// asterisk decoration is already gone by the time they are searched.
func extractBody(text string) string {
	cleaned := CleanText(StripReferences(text))

	if idx := strings.Index(cleaned, legalAnalysisMarker); idx >= 0 {
		return trimMarkerLead(cleaned[idx+len(legalAnalysisMarker):])
	}
	if idx := strings.Index(cleaned, decisionMarker); idx >= 0 {
		return trimMarkerLead(cleaned[idx+len(decisionMarker):])
	}
	return cleaned
}

// trimMarkerLead drops the punctuation run that trails a section marker
// (colons, stray emphasis, whitespace) before the body proper starts.
func trimMarkerLead(s string) string {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	for len(s) > 0 && strings.IndexByte(":* \t\n", s[0]) >= 0 {
		s = strings.TrimLeftFunc(s[1:], unicode.IsSpace)
	}
	return s
}
