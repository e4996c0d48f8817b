package extract

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/dikastis/cylaw/pkg/courts"
)

// Files below this size are error pages or empty shells, not decisions.
const minFileBytes = 100

type Config struct {
	InputDir  string
	OutputDir string
	Workers   int
	Court     string // restrict to one court, empty for all
	Limit     int    // process only the first N files, 0 for all
}

type FileError struct {
	Path    string
	Message string
}

// Stats summarizes one extraction run.
type Stats struct {
	Processed    int
	Skipped      int
	Failed       int
	TotalWords   int
	TotalChars   int
	TotalRefs    int
	WordsByCourt map[string]int
	FilesByCourt map[string]int
	RefsByCourt  map[string]int
	Errors       []FileError
}

type Extractor struct {
	config Config
}

func New(config Config) *Extractor {
	if config.Workers == 0 {
		config.Workers = runtime.NumCPU()
	}
	return &Extractor{config: config}
}

// CollectFiles lists the downloaded case files worth converting, in
// stable path order.
func (e *Extractor) CollectFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(e.config.InputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".htm", ".html", ".pdf", "":
		default:
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() < minFileBytes {
			return nil
		}
		if e.config.Court != "" {
			rel, err := filepath.Rel(e.config.InputDir, path)
			if err != nil {
				return err
			}
			if courts.Detect(filepath.ToSlash(rel)) != e.config.Court {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	if e.config.Limit > 0 && len(files) > e.config.Limit {
		files = files[:e.config.Limit]
	}
	return files, nil
}

type fileResult struct {
	status string // ok, skip, fail
	court  string
	words  int
	chars  int
	refs   int
	err    string
}

// Run converts the given files on Workers goroutines. onFile fires once
// per file regardless of outcome, for progress reporting.
func (e *Extractor) Run(ctx context.Context, files []string, onFile func()) *Stats {
	stats := &Stats{
		WordsByCourt: make(map[string]int),
		FilesByCourt: make(map[string]int),
		RefsByCourt:  make(map[string]int),
	}
	var mu sync.Mutex

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < e.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				r := e.processFile(path)

				mu.Lock()
				switch r.status {
				case "ok":
					stats.Processed++
					stats.TotalWords += r.words
					stats.TotalChars += r.chars
					stats.TotalRefs += r.refs
					stats.WordsByCourt[r.court] += r.words
					stats.FilesByCourt[r.court]++
					stats.RefsByCourt[r.court] += r.refs
				case "skip":
					stats.Skipped++
				default:
					stats.Failed++
					stats.Errors = append(stats.Errors, FileError{Path: path, Message: r.err})
				}
				mu.Unlock()

				if onFile != nil {
					onFile()
				}
			}
		}()
	}

	for _, path := range files {
		select {
		case jobs <- path:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return stats
		}
	}
	close(jobs)
	wg.Wait()
	return stats
}

func (e *Extractor) processFile(path string) fileResult {
	rel, err := filepath.Rel(e.config.InputDir, path)
	if err != nil {
		return fileResult{status: "fail", err: err.Error()}
	}
	relSlash := filepath.ToSlash(rel)
	court := courts.Detect(relSlash)

	// PDFs are a handful of scanned volumes with no extractable text layer
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return fileResult{status: "skip", court: court}
	}

	ext := filepath.Ext(rel)
	outPath := filepath.Join(e.config.OutputDir, strings.TrimSuffix(rel, ext)+".md")
	if info, err := os.Stat(outPath); err == nil && info.Size() > 0 {
		return fileResult{status: "skip", court: court}
	}

	raw, err := ReadDocument(path)
	if err != nil {
		return fileResult{status: "fail", court: court, err: err.Error()}
	}

	md := FromHTML(raw)
	if utf8.RuneCountInString(strings.TrimSpace(md)) < 10 {
		return fileResult{status: "fail", court: court, err: "empty or too short"}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fileResult{status: "fail", court: court, err: err.Error()}
	}
	if err := os.WriteFile(outPath, []byte(md), 0o644); err != nil {
		return fileResult{status: "fail", court: court, err: err.Error()}
	}

	return fileResult{
		status: "ok",
		court:  court,
		words:  CountWords(md),
		chars:  utf8.RuneCountInString(md),
		refs:   CountRefs(md),
	}
}
