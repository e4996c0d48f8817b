// Package chunker turns parsed Markdown court decisions into embedding
// units: overlapping chunks for passage retrieval and single per-document
// records for whole-case retrieval. Both carry the court metadata resolved
// from the document path.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/dikastis/cylaw/internal/models"
	"github.com/dikastis/cylaw/pkg/courts"
)

// Sizes count characters, not tokens or bytes. Greek legal prose runs about
// seven characters per word, so 2000 characters is roughly 300 words.
const (
	DefaultChunkSize       = 2000
	DefaultChunkOverlap    = 400
	DefaultMinTailChars    = 500
	DefaultMaxContentChars = 3500

	// Documents under this many trimmed characters are placeholder pages
	// (scan stubs, empty shells) and produce no output at all.
	minDocumentChars = 50
)

// separators are tried in order: paragraph break, line break, sentence end,
// word break.
var separators = []string{"\n\n", "\n", ". ", " "}

type Config struct {
	ChunkSize       int
	ChunkOverlap    int
	MinTailChars    int
	MaxContentChars int
}

// Chunker splits court decisions into chunks with metadata attached. The
// zero Config takes corpus-tuned defaults.
type Chunker struct {
	config   Config
	splitter textsplitter.RecursiveCharacter
}

func New() Chunker {
	return NewWithConfig(Config{})
}

func NewWithConfig(config Config) Chunker {
	if config.ChunkSize == 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = DefaultChunkOverlap
	}
	if config.MinTailChars == 0 {
		config.MinTailChars = DefaultMinTailChars
	}
	if config.MaxContentChars == 0 {
		config.MaxContentChars = DefaultMaxContentChars
	}

	return Chunker{
		config: config,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(config.ChunkSize),
			textsplitter.WithChunkOverlap(config.ChunkOverlap),
			textsplitter.WithSeparators(separators),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
	}
}

// ChunkDocument splits one document into chunks. docID is the
// corpus-relative path of the Markdown file; all court metadata derives
// from it. Returns a nil slice for placeholder documents.
//
// Cross-references and the jurisdiction line are read from the raw text
// before any stripping: both live in regions the cleaning passes remove.
func (c *Chunker) ChunkDocument(text, docID string) ([]models.Chunk, error) {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minDocumentChars {
		return nil, nil
	}

	title := ExtractTitle(text)
	court := courts.Detect(docID)
	year := courts.Year(docID)

	crossRefs := ExtractCrossRefs(text)
	jurisdiction := ExtractJurisdiction(text, docID)

	cleaned := CleanText(StripReferences(text))

	bodies, err := c.splitter.SplitText(cleaned)
	if err != nil {
		return nil, err
	}
	bodies = c.mergeTail(bodies)

	header := buildHeader(courts.DisplayName(court), jurisdiction, year, title)

	chunks := make([]models.Chunk, 0, len(bodies))
	for i, body := range bodies {
		chunks = append(chunks, models.Chunk{
			Text:         header + "\n\n" + body,
			DocID:        docID,
			Title:        title,
			Court:        court,
			Year:         year,
			ChunkIndex:   i,
			CourtLevel:   courts.Level(court),
			Subcourt:     courts.Subcourt(docID, court),
			Jurisdiction: jurisdiction,
			CrossRefs:    crossRefs,
		})
	}
	return chunks, nil
}

// mergeTail folds an undersized final piece into its predecessor until the
// last chunk is substantial or only one remains. Fixed-size splitting
// leaves a sliver whenever the text length is not a clean multiple of the
// chunk size, and a sliver retrieves poorly on its own.
func (c *Chunker) mergeTail(bodies []string) []string {
	for len(bodies) >= 2 && utf8.RuneCountInString(bodies[len(bodies)-1]) < c.config.MinTailChars {
		bodies[len(bodies)-2] += "\n\n" + bodies[len(bodies)-1]
		bodies = bodies[:len(bodies)-1]
	}
	return bodies
}

// buildHeader assembles the context line prepended to every chunk, so each
// chunk reads and embeds as self-describing outside its document.
func buildHeader(courtName, jurisdiction, year, title string) string {
	parts := []string{"Δικαστήριο: " + courtName}
	if jurisdiction != "" {
		parts = append(parts, jurisdiction)
	}
	if year != "" {
		parts = append(parts, "Έτος: "+year)
	}
	if title != "" {
		parts = append(parts, truncateRunes(title, 120))
	}
	return strings.Join(parts, " | ")
}
