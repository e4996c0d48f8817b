package scraper

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dikastis/cylaw/internal/models"
)

// ProgressTracker records downloaded file paths in an append-only file so
// interrupted runs resume where they stopped.
type ProgressTracker struct {
	mu   sync.Mutex
	path string
	done map[string]bool
}

func NewProgressTracker(path string) (*ProgressTracker, error) {
	p := &ProgressTracker{path: path, done: make(map[string]bool)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			p.done[line] = true
		}
	}
	return p, nil
}

func (p *ProgressTracker) IsDone(filePath string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done[filePath]
}

func (p *ProgressTracker) MarkDone(filePath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done[filePath] {
		return nil
	}
	p.done[filePath] = true

	f, err := os.OpenFile(p.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(filePath + "\n")
	return err
}

func (p *ProgressTracker) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.done)
}

type DownloaderConfig struct {
	BaseURL      string
	OutputDir    string
	ProgressFile string
	Threads      int
	Delay        float64 // per-worker pause after each request, seconds
	Timeout      time.Duration
	MaxRetries   int
	UserAgent    string
}

// DownloadStats counts outcomes across workers. Fields are updated with
// atomics; read them after Run returns.
type DownloadStats struct {
	Downloaded int64
	Skipped    int64
	Failed     int64
	TotalBytes int64
}

// Downloader fetches case documents in parallel, writing them under
// OutputDir with the site's path layout preserved.
type Downloader struct {
	config   DownloaderConfig
	client   *http.Client
	progress *ProgressTracker
}

func NewDownloader(config DownloaderConfig) (*Downloader, error) {
	if config.Threads == 0 {
		config.Threads = 30
	}
	if config.Delay == 0 {
		config.Delay = 0.5
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.UserAgent == "" {
		config.UserAgent = "CyLawIndexScraper/1.0 (Legal research tool; contact: research@example.com)"
	}
	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return nil, err
	}

	progress, err := NewProgressTracker(config.ProgressFile)
	if err != nil {
		return nil, err
	}
	if n := progress.Count(); n > 0 {
		log.Printf("resuming download: %d files already fetched", n)
	}

	return &Downloader{
		config:   config,
		client:   &http.Client{Timeout: config.Timeout},
		progress: progress,
	}, nil
}

// Run downloads every entry not yet marked done. onDone fires once per
// processed entry regardless of outcome, for progress reporting.
func (d *Downloader) Run(ctx context.Context, entries []models.CaseEntry, onDone func()) DownloadStats {
	var stats DownloadStats

	jobs := make(chan models.CaseEntry)
	var wg sync.WaitGroup
	for i := 0; i < d.config.Threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range jobs {
				d.downloadOne(ctx, entry, &stats)
				if onDone != nil {
					onDone()
				}
			}
		}()
	}

	for _, entry := range entries {
		select {
		case jobs <- entry:
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

func (d *Downloader) downloadOne(ctx context.Context, entry models.CaseEntry, stats *DownloadStats) {
	filePath := entry.FilePath

	if d.progress.IsDone(filePath) {
		atomic.AddInt64(&stats.Skipped, 1)
		return
	}

	localPath := filepath.Join(d.config.OutputDir, strings.TrimPrefix(filePath, "/"))
	if info, err := os.Stat(localPath); err == nil && info.Size() > 0 {
		if err := d.progress.MarkDone(filePath); err != nil {
			log.Printf("progress write failed for %s: %v", filePath, err)
		}
		atomic.AddInt64(&stats.Skipped, 1)
		return
	}

	// Direct file access is far faster than the CGI gateway
	url := d.config.BaseURL + filePath

	for attempt := 1; attempt <= d.config.MaxRetries; attempt++ {
		body, status, err := d.get(ctx, url)

		if err == nil && status == http.StatusNotFound && strings.Contains(entry.URL, "open.pl") {
			// Some older documents only resolve through the gateway
			body, status, err = d.get(ctx, entry.URL)
		}

		switch {
		case err != nil:
			log.Printf("download %s attempt %d/%d: %v", filePath, attempt, d.config.MaxRetries, err)
			backoff(attempt)

		case status == http.StatusOK:
			if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
				atomic.AddInt64(&stats.Failed, 1)
				log.Printf("mkdir for %s: %v", filePath, err)
				return
			}
			if err := os.WriteFile(localPath, body, 0o644); err != nil {
				atomic.AddInt64(&stats.Failed, 1)
				log.Printf("write %s: %v", filePath, err)
				return
			}
			if err := d.progress.MarkDone(filePath); err != nil {
				log.Printf("progress write failed for %s: %v", filePath, err)
			}
			atomic.AddInt64(&stats.Downloaded, 1)
			atomic.AddInt64(&stats.TotalBytes, int64(len(body)))
			d.pause()
			return

		case status >= http.StatusInternalServerError:
			log.Printf("server error %d for %s (attempt %d/%d)", status, filePath, attempt, d.config.MaxRetries)
			backoff(attempt)

		default:
			// 4xx: not worth retrying
			atomic.AddInt64(&stats.Failed, 1)
			d.pause()
			return
		}
	}

	atomic.AddInt64(&stats.Failed, 1)
}

func (d *Downloader) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", d.config.UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

func (d *Downloader) pause() {
	if d.config.Delay > 0 {
		time.Sleep(time.Duration(d.config.Delay * float64(time.Second)))
	}
}

// Progress exposes the tracker for reporting.
func (d *Downloader) Progress() *ProgressTracker {
	return d.progress
}
