package scraper

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/time/rate"
)

type FetcherConfig struct {
	CacheDir     string
	RequestDelay float64 // seconds between requests
	MaxRetries   int
	Timeout      time.Duration
	UserAgent    string
}

// Fetcher downloads index pages with on-disk caching, rate limiting and
// retry on server errors. Bodies are cached keyed by URL hash, so re-runs
// never hit the site for pages already seen.
type Fetcher struct {
	config  FetcherConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewFetcher(config FetcherConfig) (*Fetcher, error) {
	if config.RequestDelay == 0 {
		config.RequestDelay = 0.75
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "CyLawIndexScraper/1.0 (Legal research tool; contact: research@example.com)"
	}
	if config.CacheDir != "" {
		if err := os.MkdirAll(config.CacheDir, 0o755); err != nil {
			return nil, err
		}
	}

	interval := time.Duration(config.RequestDelay * float64(time.Second))
	return &Fetcher{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}, nil
}

// Fetch returns the decoded body of url, preferring the on-disk cache.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if cached, ok := f.readCache(url); ok {
		return cached, nil
	}

	var lastErr error
	for attempt := 1; attempt <= f.config.MaxRetries; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("User-Agent", f.config.UserAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = err
			backoff(attempt)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			backoff(attempt)
			continue
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("server error %d for %s", resp.StatusCode, url)
			backoff(attempt)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("status %d for %s", resp.StatusCode, url)
		}

		content := decodeIndexBody(body, resp.Header.Get("Content-Type"))
		f.writeCache(url, content)
		return content, nil
	}
	return "", fmt.Errorf("fetch %s failed after %d attempts: %w", url, f.config.MaxRetries, lastErr)
}

func (f *Fetcher) cachePath(url string) string {
	sum := md5.Sum([]byte(url))
	return filepath.Join(f.config.CacheDir, hex.EncodeToString(sum[:])+".html")
}

func (f *Fetcher) readCache(url string) (string, bool) {
	if f.config.CacheDir == "" {
		return "", false
	}
	data, err := os.ReadFile(f.cachePath(url))
	if err != nil || len(data) == 0 {
		return "", false
	}
	return string(data), true
}

func (f *Fetcher) writeCache(url, content string) {
	if f.config.CacheDir == "" {
		return
	}
	if err := os.WriteFile(f.cachePath(url), []byte(content), 0o644); err != nil {
		log.Printf("cache write failed for %s: %v", url, err)
	}
}

// backoff sleeps 1s, 2s, 4s... between retry attempts.
func backoff(attempt int) {
	time.Sleep(time.Duration(1<<(attempt-1)) * time.Second)
}

// decodeIndexBody converts legacy Greek responses to UTF-8. cylaw.org
// serves pages as ISO-8859-7 but often omits or misstates the charset, so
// anything that is not already valid UTF-8 goes through the Greek codepage.
func decodeIndexBody(body []byte, contentType string) string {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "utf-8") || utf8.Valid(body) {
		return string(body)
	}
	if decoded, err := charmap.ISO8859_7.NewDecoder().Bytes(body); err == nil {
		return string(decoded)
	}
	return string(body)
}
