// Package scraper builds the case index for cylaw.org. Court index pages
// link to one index per year; each year index links to the individual
// decisions through the open.pl gateway. The scraper walks those pages,
// caches every fetch, and hands back CaseEntry lists ready for download.
package scraper

import (
	"context"
	"log"
	"regexp"
	"time"

	"github.com/dikastis/cylaw/internal/models"
)

var (
	yearInURLRe   = regexp.MustCompile(`(\d{4})`)
	volumeInURLRe = regexp.MustCompile(`index_(\d+)\.html`)
)

type ScraperConfig struct {
	BaseURL      string
	CacheDir     string
	RequestDelay float64 // seconds between requests
	MaxRetries   int
	Timeout      time.Duration
	UserAgent    string
	OnYear       func(courtID, year string, count int)
}

type Scraper struct {
	config  ScraperConfig
	fetcher *Fetcher
}

func NewWithConfig(config ScraperConfig) (*Scraper, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://www.cylaw.org"
	}

	fetcher, err := NewFetcher(FetcherConfig{
		CacheDir:     config.CacheDir,
		RequestDelay: config.RequestDelay,
		MaxRetries:   config.MaxRetries,
		Timeout:      config.Timeout,
		UserAgent:    config.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	return &Scraper{
		config:  config,
		fetcher: fetcher,
	}, nil
}

func New(baseURL string) *Scraper {
	s, _ := NewWithConfig(ScraperConfig{
		BaseURL: baseURL,
	})
	return s
}

// YearFromIndexURL derives the year label for a year index URL. Law report
// volumes (clr, rscc) have no year in their URLs and get "vol_N" labels.
func YearFromIndexURL(urlStr string) string {
	if m := yearInURLRe.FindStringSubmatch(urlStr); m != nil {
		return m[1]
	}
	if m := volumeInURLRe.FindStringSubmatch(urlStr); m != nil {
		return "vol_" + m[1]
	}
	return "unknown"
}

// ScrapeCourt walks the court's main index page and every year index it
// links to. Year indexes that fail to fetch or parse are logged and
// skipped so one bad page does not lose the whole court.
func (s *Scraper) ScrapeCourt(ctx context.Context, court Court) ([]models.CaseEntry, error) {
	var yearURLs []string

	mainHTML, err := s.fetcher.Fetch(ctx, court.MainIndexURL(s.config.BaseURL))
	if err != nil {
		log.Printf("main index for %s: %v", court.ID, err)
	} else {
		yearURLs, err = ParseCourtMainIndex(mainHTML)
		if err != nil {
			log.Printf("main index for %s: %v", court.ID, err)
		}
	}

	if len(yearURLs) == 0 {
		yearURLs = s.fallbackYearURLs(court)
		log.Printf("no year links found for %s, generated %d candidates from known range", court.ID, len(yearURLs))
	}

	var all []models.CaseEntry
	for _, yearURL := range yearURLs {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		year := YearFromIndexURL(yearURL)
		pageURL := absoluteURL(s.config.BaseURL, yearURL)

		html, err := s.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			log.Printf("year index %s: %v", pageURL, err)
			continue
		}

		entries, err := ParseYearIndex(html, s.config.BaseURL, court.ID, year)
		if err != nil {
			log.Printf("year index %s: %v", pageURL, err)
			continue
		}

		if s.config.OnYear != nil {
			s.config.OnYear(court.ID, year, len(entries))
		}
		all = append(all, entries...)
	}

	return all, nil
}

// fallbackYearURLs generates site-relative year index paths from the
// court's known range, for index pages that list years in javascript
// instead of plain links. Paths stay relative so the year label never
// picks up digits from the host.
func (s *Scraper) fallbackYearURLs(court Court) []string {
	var urls []string
	for year := court.YearStart; year <= court.YearEnd; year++ {
		u, err := court.YearIndexURL("", year)
		if err != nil {
			break
		}
		urls = append(urls, u)
	}
	return urls
}

// ScrapeUpdates fetches the site-wide recent additions page, which spans
// all courts.
func (s *Scraper) ScrapeUpdates(ctx context.Context) ([]models.CaseEntry, error) {
	html, err := s.fetcher.Fetch(ctx, s.config.BaseURL+UpdatesPath)
	if err != nil {
		return nil, err
	}
	return ParseUpdatesPage(html, s.config.BaseURL)
}
