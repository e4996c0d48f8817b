package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYearFromIndexURL(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"/aad/index_2024.html", "2024"},
		{"/apofaseised/index_pol_2005.html", "2005"},
		{"https://www.cylaw.org/areiospagos/index_1968.html", "1968"},
		{"/epa/2019/index.html", "2019"},
		{"/rscc/index_3.html", "vol_3"},
		{"/about.html", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, YearFromIndexURL(tt.url))
		})
	}
}

func TestGetCourt(t *testing.T) {
	court, err := GetCourt("aad")
	require.NoError(t, err)
	assert.Equal(t, "/apofaseis/aad/", court.BaseIndexURL)
	assert.Equal(t, 1961, court.YearStart)

	_, err = GetCourt("nosuchcourt")
	assert.Error(t, err)
}

func TestYearIndexURL(t *testing.T) {
	fileCourt, err := GetCourt("supreme")
	require.NoError(t, err)
	url, err := fileCourt.YearIndexURL("https://www.cylaw.org", 2024)
	require.NoError(t, err)
	assert.Equal(t, "https://www.cylaw.org/supreme/index_2024.html", url)

	subdirCourt, err := GetCourt("epa")
	require.NoError(t, err)
	url, err = subdirCourt.YearIndexURL("https://www.cylaw.org", 2019)
	require.NoError(t, err)
	assert.Equal(t, "https://www.cylaw.org/apofaseis/epa/2019/index.html", url)

	volumes, err := GetCourt("rscc")
	require.NoError(t, err)
	url, err = volumes.YearIndexURL("https://www.cylaw.org", 3)
	require.NoError(t, err)
	assert.Equal(t, "https://www.cylaw.org/rscc/index_3.html", url)
}

func TestScrapeCourt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/testcourt/":
			fmt.Fprint(w, `<html><body>
				<a href="/testcourt/index_2023.html">2023</a>
				<a href="/testcourt/index_2024.html">2024</a>
				<a href="/testcourt/about.html">About</a>
			</body></html>`)
		case "/testcourt/index_2023.html":
			fmt.Fprint(w, `<html><body>
				<a href="/cgi-bin/open.pl?file=/testcourt/2023/case_1.md&amp;color=">  Υπόθεση 1/2023  </a>
				<a href="/cgi-bin/open.pl?file=/testcourt/2023/case_2.md&amp;color=">Υπόθεση 2/2023</a>
				<a href="/testcourt/other.html">not a case</a>
			</body></html>`)
		case "/testcourt/index_2024.html":
			fmt.Fprint(w, `<html><body>
				<a href="/cgi-bin/open.pl?file=/testcourt/2024/case_1.md&amp;color=">Υπόθεση 1/2024</a>
			</body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	var mu sync.Mutex
	yearCounts := make(map[string]int)

	s, err := NewWithConfig(ScraperConfig{
		BaseURL:      server.URL,
		CacheDir:     t.TempDir(),
		RequestDelay: 0.001,
		OnYear: func(courtID, year string, count int) {
			mu.Lock()
			yearCounts[year] = count
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	court := Court{
		ID:           "testcourt",
		BaseIndexURL: "/testcourt/",
		YearPattern:  patternYearFile,
		YearStart:    2023,
		YearEnd:      2024,
	}

	entries, err := s.ScrapeCourt(context.Background(), court)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	first := entries[0]
	assert.Equal(t, "/testcourt/2023/case_1.md", first.FilePath)
	assert.Equal(t, server.URL+"/cgi-bin/open.pl?file=/testcourt/2023/case_1.md&color=", first.URL)
	assert.Equal(t, "Υπόθεση 1/2023", first.Title)
	assert.Equal(t, "testcourt", first.Court)
	assert.Equal(t, "2023", first.Year)

	assert.Equal(t, map[string]int{"2023": 2, "2024": 1}, yearCounts)
}

func TestScrapeCourt_FallbackYearRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/testcourt/":
			// Year menu built by javascript, no parsable links
			fmt.Fprint(w, `<html><body><script>buildYearMenu()</script></body></html>`)
		case "/testcourt/index_2023.html":
			fmt.Fprint(w, `<html><body>
				<a href="/cgi-bin/open.pl?file=/testcourt/2023/case_1.md&amp;color=">Υπόθεση 1/2023</a>
			</body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	s, err := NewWithConfig(ScraperConfig{
		BaseURL:      server.URL,
		CacheDir:     t.TempDir(),
		RequestDelay: 0.001,
	})
	require.NoError(t, err)

	court := Court{
		ID:           "testcourt",
		BaseIndexURL: "/testcourt/",
		YearPattern:  patternYearFile,
		YearStart:    2023,
		YearEnd:      2024,
	}

	// 2024 is missing on the server; the scraper should keep what it found
	entries, err := s.ScrapeCourt(context.Background(), court)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2023", entries[0].Year)
}

func TestScrapeUpdates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.URL.Path != "/updates.html" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><body>
			<a href="/cgi-bin/open.pl?file=/courtOfAppeal/2024/case_1.md&amp;color=">Υπόθεση Εφετείου</a>
			<a href="/cgi-bin/open.pl?file=/administrativeIP/2024/case_2.md&amp;color=">Υπόθεση ΔΔΔΠ</a>
		</body></html>`)
	}))
	defer server.Close()

	s, err := NewWithConfig(ScraperConfig{
		BaseURL:      server.URL,
		CacheDir:     t.TempDir(),
		RequestDelay: 0.001,
	})
	require.NoError(t, err)

	entries, err := s.ScrapeUpdates(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "courtOfAppeal", entries[0].Court)
	assert.Equal(t, "administrativeIP", entries[1].Court)
	assert.Equal(t, "2024", entries[0].Year)
}
