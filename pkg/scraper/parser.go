package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dikastis/cylaw/internal/models"
)

var (
	// index_2026.html, index_pol_2005.html, index_1.html (rscc volumes)
	yearFileIndexRe = regexp.MustCompile(`index_\w*\d+\.html`)
	// 2025/index.html (epa/aap subdirectory layout)
	yearSubdirIndexRe = regexp.MustCompile(`/\d{4}/index\.html`)
	fileParamRe       = regexp.MustCompile(`file=([^\s&"']+)`)
	pathYearRe        = regexp.MustCompile(`/(\d{4})/`)
)

type updatePrefix struct {
	prefix string
	court  string
}

// updatePathToCourt resolves updates-page file paths to courts. Prefixes
// keep their surrounding slashes so "/administrative/" cannot shadow
// "/administrativeIP/".
var updatePathToCourt = []updatePrefix{
	{"/courtOfAppeal/", "courtOfAppeal"},
	{"/supreme/", "supreme"},
	{"/supremeAdministrative/", "supremeAdministrative"},
	{"/administrative/", "administrative"},
	{"/administrativeIP/", "administrativeIP"},
	{"/apofaseis/aad/", "aad"},
	{"/apofaseis/epa/", "epa"},
	{"/apofaseis/aap/", "aap"},
	{"/apofaseis/dioikitiko/", "dioikitiko"},
	{"/areiospagos/", "areiospagos"},
	{"/apofaseised/", "apofaseised"},
	{"/jsc/", "jsc"},
	{"/rscc/", "rscc"},
	{"/administrativeCourtOfAppeal/", "administrativeCourtOfAppeal"},
	{"/juvenileCourt/", "juvenileCourt"},
}

func detectCourtFromPath(filePath string) string {
	for _, p := range updatePathToCourt {
		if strings.HasPrefix(filePath, p.prefix) {
			return p.court
		}
	}
	return "unknown"
}

func detectYearFromPath(filePath string) string {
	if m := pathYearRe.FindStringSubmatch(filePath); m != nil {
		return m[1]
	}
	return ""
}

// extractFilePath pulls the file= parameter out of an open.pl gateway URL.
func extractFilePath(href string) string {
	if m := fileParamRe.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	return ""
}

func absoluteURL(baseURL, href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return baseURL + href
}

// ParseCourtMainIndex returns the year-index URLs linked from a court's
// main index page, in page order without duplicates.
func ParseCourtMainIndex(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var urls []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !yearFileIndexRe.MatchString(href) && !yearSubdirIndexRe.MatchString(href) {
			return
		}
		if !seen[href] {
			seen[href] = true
			urls = append(urls, href)
		}
	})
	return urls, nil
}

// ParseYearIndex returns the case entries on a year-specific index page.
// Case links go through the open.pl gateway; the file= parameter is the
// document path and deduplication key.
func ParseYearIndex(html, baseURL, courtID, year string) ([]models.CaseEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var entries []models.CaseEntry
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.Contains(href, "open.pl") {
			return
		}

		filePath := extractFilePath(href)
		if filePath == "" || seen[filePath] {
			return
		}
		seen[filePath] = true

		entries = append(entries, models.CaseEntry{
			URL:      absoluteURL(baseURL, href),
			FilePath: filePath,
			Title:    strings.TrimSpace(sel.Text()),
			Court:    courtID,
			Year:     year,
		})
	})
	return entries, nil
}

// ParseUpdatesPage returns the case entries on the cross-court updates
// page, resolving court and year from each link's file path.
func ParseUpdatesPage(html, baseURL string) ([]models.CaseEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var entries []models.CaseEntry
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.Contains(href, "open.pl") {
			return
		}

		filePath := extractFilePath(href)
		if filePath == "" || seen[filePath] {
			return
		}
		seen[filePath] = true

		entries = append(entries, models.CaseEntry{
			URL:      absoluteURL(baseURL, href),
			FilePath: filePath,
			Title:    strings.TrimSpace(sel.Text()),
			Court:    detectCourtFromPath(filePath),
			Year:     detectYearFromPath(filePath),
		})
	})
	return entries, nil
}
