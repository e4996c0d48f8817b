package models

// SearchResult is one chunk returned from similarity search. Score maps the
// cosine distance onto a 0-100 scale, higher is closer.
type SearchResult struct {
	DocID        string  `json:"doc_id"`
	Title        string  `json:"title"`
	Court        string  `json:"court"`
	Year         string  `json:"year"`
	ChunkIndex   int     `json:"chunk_index"`
	Jurisdiction string  `json:"jurisdiction,omitempty"`
	Text         string  `json:"text"`
	Distance     float64 `json:"distance"`
	Score        float64 `json:"score"`
}

// SearchOptions narrows a similarity search. Zero values mean no filter.
type SearchOptions struct {
	Court    string
	YearFrom int
	YearTo   int
	Limit    int
}

// GroupedResult folds chunk hits into one entry per document, ranked by the
// best chunk score.
type GroupedResult struct {
	DocID     string         `json:"doc_id"`
	Title     string         `json:"title"`
	Court     string         `json:"court"`
	Year      string         `json:"year"`
	BestScore float64        `json:"best_score"`
	Chunks    []SearchResult `json:"chunks"`
}
