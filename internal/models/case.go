package models

// CaseEntry is one court case discovered on a cylaw.org index page. FilePath
// is the site-relative document path and doubles as the corpus doc_id once
// the file is converted to Markdown.
type CaseEntry struct {
	URL      string `json:"url"`
	FilePath string `json:"file_path"`
	Title    string `json:"title"`
	Court    string `json:"court"`
	Year     string `json:"year"`
	Date     string `json:"date,omitempty"`
}
