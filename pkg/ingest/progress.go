package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Progress records which documents already have embeddings stored, so an
// interrupted run resumes without re-embedding them.
type Progress struct {
	path  string
	state progressState
	done  map[string]bool
}

type progressState struct {
	EmbeddedDocs []string `json:"embedded_docs"`
	TotalChunks  int      `json:"total_chunks"`
}

// LoadProgress reads the progress file at path. A missing file yields empty
// progress.
func LoadProgress(path string) (*Progress, error) {
	p := &Progress{path: path, done: make(map[string]bool)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read progress file: %w", err)
	}

	if err := json.Unmarshal(data, &p.state); err != nil {
		return nil, fmt.Errorf("parse progress file %s: %w", path, err)
	}
	for _, id := range p.state.EmbeddedDocs {
		p.done[id] = true
	}
	return p, nil
}

func (p *Progress) IsDone(docID string) bool {
	return p.done[docID]
}

func (p *Progress) CountDone() int {
	return len(p.done)
}

func (p *Progress) TotalChunks() int {
	return p.state.TotalChunks
}

// MarkDone appends newly completed documents, adds chunkCount to the running
// total and persists the file.
func (p *Progress) MarkDone(docIDs []string, chunkCount int) error {
	for _, id := range docIDs {
		if p.done[id] {
			continue
		}
		p.done[id] = true
		p.state.EmbeddedDocs = append(p.state.EmbeddedDocs, id)
	}
	p.state.TotalChunks += chunkCount
	return p.save()
}

func (p *Progress) save() error {
	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create progress dir: %w", err)
		}
	}
	data, err := json.Marshal(p.state)
	if err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0o644)
}
