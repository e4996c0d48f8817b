// Package ingest drives the corpus pipeline: walk the parsed Markdown tree,
// chunk every decision, embed the chunks in batches and upsert them into the
// vector store. Completed documents are tracked in a progress file, so a
// killed run picks up where it stopped.
package ingest

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/dikastis/cylaw/internal/models"
	"github.com/dikastis/cylaw/pkg/chunker"
	"github.com/dikastis/cylaw/pkg/courts"
)

// progressFlushChunks is how many embedded chunks accumulate before the
// progress file is rewritten.
const progressFlushChunks = 5000

// Embedder is the embedding backend the runner drives.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
	Provider() string
	Model() string
	Dimensions() int
}

// Store is the vector store the runner writes to.
type Store interface {
	Store(ctx context.Context, chunks []models.Chunk, embeddings [][]float32) error
	StoreDocuments(ctx context.Context, docs []models.DocumentRecord, embeddings [][]float32) error
}

type Config struct {
	InputDir     string
	Court        string
	Limit        int
	BatchSize    int
	Workers      int
	ProgressFile string
	Out          io.Writer
}

// Stats summarizes one ingestion run. Units are chunks in chunk mode and
// document records in document mode.
type Stats struct {
	Files    int
	Units    int
	Skipped  int
	Embedded int
	Failed   int
}

type Runner struct {
	config   Config
	chunker  chunker.Chunker
	embedder Embedder
	store    Store
	progress *Progress
	out      io.Writer
}

func NewRunner(config Config, ck chunker.Chunker, embedder Embedder, store Store) (*Runner, error) {
	if config.BatchSize == 0 {
		if embedder.Provider() == "openai" {
			config.BatchSize = 100
		} else {
			config.BatchSize = 256
		}
	}
	if config.Workers == 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.ProgressFile == "" {
		config.ProgressFile = filepath.Join("data", "ingest_progress.json")
	}
	if config.Out == nil {
		config.Out = os.Stdout
	}

	progress, err := LoadProgress(config.ProgressFile)
	if err != nil {
		return nil, err
	}

	return &Runner{
		config:   config,
		chunker:  ck,
		embedder: embedder,
		store:    store,
		progress: progress,
		out:      config.Out,
	}, nil
}

// CollectFiles returns the .md files under root in sorted order, optionally
// filtered to one court and capped at limit.
func CollectFiles(root, court string, limit int) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".md" {
			return nil
		}
		if court != "" {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if courts.Detect(filepath.ToSlash(rel)) != court {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Strings(files)
	if limit > 0 && limit < len(files) {
		files = files[:limit]
	}
	return files, nil
}

// Run executes chunk-mode ingestion: chunk all documents, embed the chunks
// not yet recorded in the progress file and store them.
func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	files, err := CollectFiles(r.config.InputDir, r.config.Court, r.config.Limit)
	if err != nil {
		return nil, err
	}

	r.banner("chunks", len(files))
	stats := &Stats{Files: len(files)}

	color.New(color.FgCyan).Fprintf(r.out, "\n[1/2] Chunking (%d workers)...\n", r.config.Workers)
	chunks, failed := r.chunkFiles(ctx, files)
	stats.Units = len(chunks)
	stats.Failed = failed

	var todo []models.Chunk
	for _, c := range chunks {
		if r.progress.IsDone(c.DocID) {
			stats.Skipped++
			continue
		}
		todo = append(todo, c)
	}
	if stats.Skipped > 0 {
		fmt.Fprintf(r.out, "  resuming: %d chunks already embedded\n", stats.Skipped)
	}
	if len(todo) == 0 {
		color.New(color.FgGreen).Fprintf(r.out, "  all chunks already embedded\n")
		return stats, ctx.Err()
	}

	color.New(color.FgCyan).Fprintf(r.out, "\n[2/2] Embedding %d chunks...\n", len(todo))
	bar := newBar(r.out, len(todo), "Embedding", "chunks")

	// A document is marked done only once its last chunk is stored, so a
	// resume never skips the tail of a half-embedded document.
	lastIndex := make(map[string]int, len(files))
	for i, c := range todo {
		lastIndex[c.DocID] = i
	}

	var completed []string
	pending := 0

	for start := 0; start < len(todo); start += r.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		end := start + r.config.BatchSize
		if end > len(todo) {
			end = len(todo)
		}
		batch := todo[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		embeddings, err := r.embedder.CreateEmbedding(ctx, texts)
		if err != nil {
			return stats, fmt.Errorf("embed batch at chunk %d: %w", start, err)
		}
		if err := r.store.Store(ctx, batch, embeddings); err != nil {
			return stats, fmt.Errorf("store batch at chunk %d: %w", start, err)
		}
		stats.Embedded += len(batch)
		bar.Add(len(batch))

		for i := start; i < end; i++ {
			if lastIndex[todo[i].DocID] == i {
				completed = append(completed, todo[i].DocID)
			}
		}
		pending += len(batch)
		if pending >= progressFlushChunks {
			if err := r.progress.MarkDone(completed, pending); err != nil {
				return stats, fmt.Errorf("save progress: %w", err)
			}
			completed = completed[:0]
			pending = 0
		}
	}

	if pending > 0 || len(completed) > 0 {
		if err := r.progress.MarkDone(completed, pending); err != nil {
			return stats, fmt.Errorf("save progress: %w", err)
		}
	}

	bar.Finish()
	color.New(color.FgGreen).Fprintf(r.out, "\n✓ %d chunks embedded from %d documents\n", stats.Embedded, stats.Files)
	return stats, nil
}

// RunDocuments executes document-mode ingestion: one embedding per decision
// via the whole-document extractor.
func (r *Runner) RunDocuments(ctx context.Context) (*Stats, error) {
	files, err := CollectFiles(r.config.InputDir, r.config.Court, r.config.Limit)
	if err != nil {
		return nil, err
	}

	r.banner("documents", len(files))
	stats := &Stats{Files: len(files)}

	color.New(color.FgCyan).Fprintf(r.out, "\n[1/2] Extracting (%d workers)...\n", r.config.Workers)
	records, failed := r.extractFiles(ctx, files)
	stats.Units = len(records)
	stats.Failed = failed

	var todo []models.DocumentRecord
	for _, rec := range records {
		if r.progress.IsDone(rec.DocID) {
			stats.Skipped++
			continue
		}
		todo = append(todo, rec)
	}
	if stats.Skipped > 0 {
		fmt.Fprintf(r.out, "  resuming: %d documents already embedded\n", stats.Skipped)
	}
	if len(todo) == 0 {
		color.New(color.FgGreen).Fprintf(r.out, "  all documents already embedded\n")
		return stats, ctx.Err()
	}

	color.New(color.FgCyan).Fprintf(r.out, "\n[2/2] Embedding %d documents...\n", len(todo))
	bar := newBar(r.out, len(todo), "Embedding", "docs")

	var completed []string
	pending := 0

	for start := 0; start < len(todo); start += r.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		end := start + r.config.BatchSize
		if end > len(todo) {
			end = len(todo)
		}
		batch := todo[start:end]

		texts := make([]string, len(batch))
		for i, rec := range batch {
			texts[i] = rec.Content
		}

		embeddings, err := r.embedder.CreateEmbedding(ctx, texts)
		if err != nil {
			return stats, fmt.Errorf("embed batch at document %d: %w", start, err)
		}
		if err := r.store.StoreDocuments(ctx, batch, embeddings); err != nil {
			return stats, fmt.Errorf("store batch at document %d: %w", start, err)
		}
		stats.Embedded += len(batch)
		bar.Add(len(batch))

		for _, rec := range batch {
			completed = append(completed, rec.DocID)
		}
		pending += len(batch)
		if pending >= progressFlushChunks {
			if err := r.progress.MarkDone(completed, pending); err != nil {
				return stats, fmt.Errorf("save progress: %w", err)
			}
			completed = completed[:0]
			pending = 0
		}
	}

	if pending > 0 || len(completed) > 0 {
		if err := r.progress.MarkDone(completed, pending); err != nil {
			return stats, fmt.Errorf("save progress: %w", err)
		}
	}

	bar.Finish()
	color.New(color.FgGreen).Fprintf(r.out, "\n✓ %d documents embedded\n", stats.Embedded)
	return stats, nil
}

// chunkFiles chunks every file on a worker pool. Results keep file order,
// so chunk batches are deterministic run to run. Documents that fail to read
// or chunk are logged and skipped.
func (r *Runner) chunkFiles(ctx context.Context, files []string) ([]models.Chunk, int) {
	results := make([][]models.Chunk, len(files))
	jobs := make(chan int)
	var wg sync.WaitGroup
	var failed int32

	for w := 0; w < r.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				chunks, err := r.chunkFile(files[i])
				if err != nil {
					log.Printf("chunking %s: %v", files[i], err)
					atomic.AddInt32(&failed, 1)
					continue
				}
				results[i] = chunks
			}
		}()
	}

feed:
	for i := range files {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	var all []models.Chunk
	for _, chunks := range results {
		all = append(all, chunks...)
	}
	return all, int(failed)
}

func (r *Runner) chunkFile(path string) ([]models.Chunk, error) {
	docID, text, err := r.readDocument(path)
	if err != nil {
		return nil, err
	}
	return r.chunker.ChunkDocument(text, docID)
}

// extractFiles builds document records on a worker pool, keeping file order.
// Placeholder documents extract to nil and are dropped silently.
func (r *Runner) extractFiles(ctx context.Context, files []string) ([]models.DocumentRecord, int) {
	results := make([]*models.DocumentRecord, len(files))
	jobs := make(chan int)
	var wg sync.WaitGroup
	var failed int32

	for w := 0; w < r.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				docID, text, err := r.readDocument(files[i])
				if err != nil {
					log.Printf("extracting %s: %v", files[i], err)
					atomic.AddInt32(&failed, 1)
					continue
				}
				results[i] = r.chunker.ExtractDocument(text, docID)
			}
		}()
	}

feed:
	for i := range files {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	var all []models.DocumentRecord
	for _, rec := range results {
		if rec != nil {
			all = append(all, *rec)
		}
	}
	return all, int(failed)
}

func (r *Runner) readDocument(path string) (docID, text string, err error) {
	rel, err := filepath.Rel(r.config.InputDir, path)
	if err != nil {
		return "", "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return filepath.ToSlash(rel), string(data), nil
}

func (r *Runner) banner(mode string, files int) {
	line := strings.Repeat("=", 60)
	fmt.Fprintf(r.out, "\n%s\n", line)
	color.New(color.FgCyan, color.Bold).Fprintf(r.out, "CyLaw Ingestion (%s)\n", strings.ToUpper(r.embedder.Provider()))
	fmt.Fprintf(r.out, "  Mode:     %s\n", mode)
	fmt.Fprintf(r.out, "  Model:    %s\n", r.embedder.Model())
	fmt.Fprintf(r.out, "  Dims:     %d\n", r.embedder.Dimensions())
	fmt.Fprintf(r.out, "  Docs:     %d\n", files)
	fmt.Fprintf(r.out, "  Batch:    %d\n", r.config.BatchSize)
	fmt.Fprintf(r.out, "%s\n", line)
}

func newBar(out io.Writer, total int, description, unit string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString(unit),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
	)
}
