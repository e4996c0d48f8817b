package chunker_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dikastis/cylaw/pkg/chunker"
	"github.com/dikastis/cylaw/pkg/courts"
)

func buildAnalysisDoc() string {
	return "# Υπόθεση Αρ. 45/2023, Ε.Φ. ν. Δημοκρατίας\n\n" +
		"**ΑΝΑΦΟΡΕΣ**\n\n[Παραπομπή](apofaseis/aad/meros_1/1999/p.md)\n\n" +
		"**ΚΕΙΜΕΝΟ ΑΠΟΦΑΣΗΣ**\n\n" +
		"Το διαδικαστικό ιστορικό της υπόθεσης είναι εκτενές και περιλαμβάνει σειρά ενδιάμεσων αιτήσεων.\n\n" +
		"**ΝΟΜΙΚΗ ΠΤΥΧΗ**:\n\n" +
		"Η νομική ανάλυση επικεντρώνεται στην ερμηνεία του άρθρου 146 του Συντάγματος και στη φύση της προσβαλλόμενης πράξης."
}

func TestExtractDocument_PrefersLegalAnalysis(t *testing.T) {
	c := chunker.New()
	rec := c.ExtractDocument(buildAnalysisDoc(), "supreme/2023/case.md")
	require.NotNil(t, rec)

	assert.True(t, strings.HasPrefix(rec.Content, "Υπόθεση Αρ. 45/2023, Ε.Φ. ν. Δημοκρατίας\n\nΗ νομική ανάλυση"))
	assert.NotContains(t, rec.Content, "διαδικαστικό ιστορικό")
	assert.NotContains(t, rec.Content, "ΑΝΑΦΟΡΕΣ")
	assert.NotContains(t, rec.Content, "*")
}

func TestExtractDocument_WholeTextFallback(t *testing.T) {
	text := "# Τίτλος Υπόθεσης\n\nΑπλό κείμενο απόφασης χωρίς ενότητες, αρκετά μεγάλο για να ξεπεράσει το ελάχιστο όριο."

	c := chunker.New()
	rec := c.ExtractDocument(text, "supreme/2024/case.md")
	require.NotNil(t, rec)

	// Without section markers the whole cleaned text becomes the body
	assert.Contains(t, rec.Content, "Απλό κείμενο απόφασης")
	assert.True(t, strings.HasPrefix(rec.Content, "Τίτλος Υπόθεσης\n\n"))
}

func TestExtractDocument_SubjectLine(t *testing.T) {
	text := "# Appeal No. 12 of 1955\n\nSubject: Negligence of common carrier\n\n**ΚΕΙΜΕΝΟ ΑΠΟΦΑΣΗΣ**\n\n" +
		"The appellant was the owner of goods entrusted to the respondent for carriage between Nicosia and Larnaca."

	c := chunker.New()
	rec := c.ExtractDocument(text, "jsc/1955_12_case.md")
	require.NotNil(t, rec)

	assert.Contains(t, rec.Content, "[Subject: Negligence of common carrier]")
	assert.Equal(t, "Appeal No. 12 of 1955", rec.Title)
}

func TestExtractDocument_ContentCapped(t *testing.T) {
	text := "# Τίτλος\n\n" + strings.Repeat("Εκτενές σκεπτικό της απόφασης με πλήρη ανάλυση. ", 200)

	c := chunker.New()
	rec := c.ExtractDocument(text, "supreme/2024/case.md")
	require.NotNil(t, rec)

	assert.LessOrEqual(t, utf8.RuneCountInString(rec.Content), chunker.DefaultMaxContentChars)
	assert.True(t, strings.HasSuffix(rec.Content, "\n[...truncated]"))
}

func TestExtractDocument_Metadata(t *testing.T) {
	c := chunker.New()
	rec := c.ExtractDocument(buildCaseDoc("ΠΟΛΙΤΙΚΗ ΔΙΚΑΙΟΔΟΣΙΑ"), "apofaseised/pol/2024/case.md")
	require.NotNil(t, rec)

	assert.Equal(t, "apofaseised/pol/2024/case.md", rec.DocID)
	assert.Equal(t, "apofaseised", rec.Court)
	assert.Equal(t, courts.LevelFirstInstance, rec.CourtLevel)
	assert.Equal(t, "pol", rec.Subcourt)
	assert.Equal(t, "2024", rec.Year)
	assert.Equal(t, "ΠΟΛΙΤΙΚΗ ΔΙΚΑΙΟΔΟΣΙΑ", rec.Jurisdiction)
	assert.Equal(t, "Υπόθεση Αρ. 123/2024, Α.Β. ν. Γ.Δ.", rec.Title)
}

func TestExtractDocument_TitleCapped(t *testing.T) {
	text := "# " + strings.Repeat("Β", 260) + "\n\n" + buildCaseDoc("")

	c := chunker.New()
	rec := c.ExtractDocument(text, "supreme/2024/case.md")
	require.NotNil(t, rec)
	assert.Equal(t, 200, utf8.RuneCountInString(rec.Title))
}

func TestExtractDocument_ShortDocument(t *testing.T) {
	c := chunker.New()
	assert.Nil(t, c.ExtractDocument("Σύντομο.", "supreme/2024/case.md"))
	assert.Nil(t, c.ExtractDocument("", "supreme/2024/case.md"))
}

func TestExtractDocument_DecorationOnly(t *testing.T) {
	c := chunker.New()
	assert.Nil(t, c.ExtractDocument(strings.Repeat("*", 80), "supreme/2024/case.md"))
}
