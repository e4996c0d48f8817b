package scraper

import "fmt"

// Year-index URL layouts used across cylaw.org courts.
const (
	patternYearFile   = "index_{year}" // /court/index_2024.html
	patternYearSubdir = "{year}/index" // /court/2024/index.html
)

// UpdatesPath is the cross-court recent-decisions page.
const UpdatesPath = "/updates.html"

// Court describes one court's index structure on cylaw.org. The rscc entry
// reuses YearStart/YearEnd for volume numbers: its indexes run index_1.html
// through index_5.html.
type Court struct {
	ID           string
	BaseIndexURL string
	YearPattern  string
	YearStart    int
	YearEnd      int
}

func (c Court) MainIndexURL(baseURL string) string {
	return baseURL + c.BaseIndexURL
}

func (c Court) YearIndexURL(baseURL string, year int) (string, error) {
	switch c.YearPattern {
	case patternYearFile:
		return fmt.Sprintf("%s%sindex_%d.html", baseURL, c.BaseIndexURL, year), nil
	case patternYearSubdir:
		return fmt.Sprintf("%s%s%d/index.html", baseURL, c.BaseIndexURL, year), nil
	}
	return "", fmt.Errorf("unknown year pattern %q for court %s", c.YearPattern, c.ID)
}

// Courts lists every court indexed on cylaw.org with the year ranges the
// site actually serves.
var Courts = []Court{
	{ID: "aad", BaseIndexURL: "/apofaseis/aad/", YearPattern: patternYearFile, YearStart: 1961, YearEnd: 2024},
	{ID: "supreme", BaseIndexURL: "/supreme/", YearPattern: patternYearFile, YearStart: 2023, YearEnd: 2026},
	{ID: "courtOfAppeal", BaseIndexURL: "/courtOfAppeal/", YearPattern: patternYearFile, YearStart: 2004, YearEnd: 2026},
	{ID: "supremeAdministrative", BaseIndexURL: "/supremeAdministrative/", YearPattern: patternYearFile, YearStart: 2023, YearEnd: 2026},
	{ID: "administrative", BaseIndexURL: "/administrative/", YearPattern: patternYearFile, YearStart: 2016, YearEnd: 2026},
	{ID: "administrativeIP", BaseIndexURL: "/administrativeIP/", YearPattern: patternYearFile, YearStart: 2018, YearEnd: 2026},
	{ID: "epa", BaseIndexURL: "/apofaseis/epa/", YearPattern: patternYearSubdir, YearStart: 2002, YearEnd: 2026},
	{ID: "aap", BaseIndexURL: "/apofaseis/aap/", YearPattern: patternYearSubdir, YearStart: 2004, YearEnd: 2026},
	{ID: "dioikitiko", BaseIndexURL: "/apofaseis/dioikitiko/", YearPattern: patternYearFile, YearStart: 2023, YearEnd: 2023},
	{ID: "areiospagos", BaseIndexURL: "/areiospagos/", YearPattern: patternYearFile, YearStart: 1968, YearEnd: 2026},
	{ID: "apofaseised", BaseIndexURL: "/apofaseised/", YearPattern: patternYearFile, YearStart: 2005, YearEnd: 2026},
	{ID: "jsc", BaseIndexURL: "/jsc/", YearPattern: patternYearFile, YearStart: 1964, YearEnd: 1988},
	{ID: "rscc", BaseIndexURL: "/rscc/", YearPattern: patternYearFile, YearStart: 1, YearEnd: 5},
	{ID: "administrativeCourtOfAppeal", BaseIndexURL: "/administrativeCourtOfAppeal/", YearPattern: patternYearFile, YearStart: 2025, YearEnd: 2026},
	{ID: "juvenileCourt", BaseIndexURL: "/juvenileCourt/", YearPattern: patternYearFile, YearStart: 2023, YearEnd: 2025},
}

func GetCourt(id string) (Court, error) {
	for _, c := range Courts {
		if c.ID == id {
			return c, nil
		}
	}
	return Court{}, fmt.Errorf("unknown court %q", id)
}
