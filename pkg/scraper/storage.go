package scraper

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dikastis/cylaw/internal/models"
)

// CourtIndex is the JSON document written for each scraped court. Cases
// group by year; entries without a year land under "unknown".
type CourtIndex struct {
	Court     string                        `json:"court,omitempty"`
	Source    string                        `json:"source,omitempty"`
	ScrapedAt string                        `json:"scraped_at"`
	Total     int                           `json:"total"`
	ByYear    map[string][]models.CaseEntry `json:"by_year"`
}

func groupByYear(entries []models.CaseEntry) map[string][]models.CaseEntry {
	byYear := make(map[string][]models.CaseEntry)
	for _, e := range entries {
		year := e.Year
		if year == "" {
			year = "unknown"
		}
		byYear[year] = append(byYear[year], e)
	}
	return byYear
}

func writeIndex(path string, index CourtIndex) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// SaveCourtIndex writes {outputDir}/{courtID}.json and returns its path.
func SaveCourtIndex(courtID string, entries []models.CaseEntry, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, courtID+".json")
	index := CourtIndex{
		Court:     courtID,
		ScrapedAt: time.Now().UTC().Format(time.RFC3339),
		Total:     len(entries),
		ByYear:    groupByYear(entries),
	}
	if err := writeIndex(path, index); err != nil {
		return "", err
	}
	return path, nil
}

// SaveUpdatesIndex writes {outputDir}/updates.json and returns its path.
func SaveUpdatesIndex(entries []models.CaseEntry, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, "updates.json")
	index := CourtIndex{
		Source:    "updates.html",
		ScrapedAt: time.Now().UTC().Format(time.RFC3339),
		Total:     len(entries),
		ByYear:    groupByYear(entries),
	}
	if err := writeIndex(path, index); err != nil {
		return "", err
	}
	return path, nil
}

// LoadCourtIndex reads a previously saved index, or returns nil when the
// court has not been scraped yet.
func LoadCourtIndex(courtID, indexDir string) (*CourtIndex, error) {
	data, err := os.ReadFile(filepath.Join(indexDir, courtID+".json"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var index CourtIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parse %s index: %w", courtID, err)
	}
	return &index, nil
}

// CollectEntries reads every JSON index in indexDir and returns the unique
// case entries across all of them, keyed by file path. Files are read in
// name order so the result is stable.
func CollectEntries(indexDir string) ([]models.CaseEntry, error) {
	paths, err := filepath.Glob(filepath.Join(indexDir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var entries []models.CaseEntry
	seen := make(map[string]bool)
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		var index CourtIndex
		if err := json.Unmarshal(data, &index); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		years := make([]string, 0, len(index.ByYear))
		for y := range index.ByYear {
			years = append(years, y)
		}
		sort.Sort(sort.Reverse(sort.StringSlice(years)))
		for _, y := range years {
			for _, e := range index.ByYear[y] {
				if !seen[e.FilePath] {
					seen[e.FilePath] = true
					entries = append(entries, e)
				}
			}
		}
	}
	return entries, nil
}
