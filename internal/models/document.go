package models

import "fmt"

// Chunk is one retrievable slice of a court decision, carrying the metadata
// that makes it citable on its own: issuing court, year, jurisdiction and
// the cases it links to.
type Chunk struct {
	Text         string   `json:"text"`
	DocID        string   `json:"doc_id"`
	Title        string   `json:"title"`
	Court        string   `json:"court"`
	Year         string   `json:"year"`
	ChunkIndex   int      `json:"chunk_index"`
	CourtLevel   string   `json:"court_level"`
	Subcourt     string   `json:"subcourt"`
	Jurisdiction string   `json:"jurisdiction"`
	CrossRefs    []string `json:"cross_refs"`
}

// ID is the vector-store key for the chunk.
func (c Chunk) ID() string {
	return fmt.Sprintf("%s::%d", c.DocID, c.ChunkIndex)
}

// DocumentRecord is the whole-document embedding unit: one length-capped
// content string per case instead of a chunk sequence.
type DocumentRecord struct {
	DocID        string `json:"doc_id"`
	Content      string `json:"content"`
	Title        string `json:"title"`
	Court        string `json:"court"`
	Year         string `json:"year"`
	CourtLevel   string `json:"court_level"`
	Subcourt     string `json:"subcourt"`
	Jurisdiction string `json:"jurisdiction"`
}
