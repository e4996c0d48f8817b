// Package courts maps corpus file paths to court identity metadata.
//
// Relative paths inside the parsed corpus encode the issuing court
// ("apofaseis/aad/meros_2/1995/..." or "apofaseised/pol/2024/..."), the
// subject-matter division for first-instance files, and the decision year.
// Every lookup here is pure string matching against fixed tables, so the
// same path always yields the same metadata.
package courts

import (
	"regexp"
	"strings"
)

// Court-level buckets for the Cypriot hierarchy plus the historical Greek
// and colonial-era archives.
const (
	LevelSupreme        = "supreme"
	LevelAppeal         = "appeal"
	LevelFirstInstance  = "first_instance"
	LevelAdministrative = "administrative"
	LevelForeign        = "foreign"
	LevelOther          = "other"
)

// FirstInstanceCourt is the district-court family whose paths carry a
// subcourt segment (apofaseised/pol/..., apofaseised/poin/...).
const FirstInstanceCourt = "apofaseised"

type pathPrefix struct {
	fragment string
	court    string
}

// pathToCourt resolves a path fragment to a court identifier by substring
// match. The table is ordered, most specific first: "supremeAdministrative"
// must be tried before "supreme" and "administrativeIP" before
// "administrative", or the longer names would never match. Keep it a slice.
var pathToCourt = []pathPrefix{
	{"apofaseis/aad", "aad"},
	{"apofaseis/epa", "epa"},
	{"apofaseis/aap", "aap"},
	{"apofaseis/dioikitiko", "dioikitiko"},
	{"courtOfAppeal", "courtOfAppeal"},
	{"administrativeCourtOfAppeal", "administrativeCourtOfAppeal"},
	{"supremeAdministrative", "supremeAdministrative"},
	{"supreme", "supreme"},
	{"administrativeIP", "administrativeIP"},
	{"administrative", "administrative"},
	{"juvenileCourt", "juvenileCourt"},
	{"areiospagos", "areiospagos"},
	{"clr", "clr"},
	{"jsc", "jsc"},
	{"rscc", "rscc"},
}

var courtLevel = map[string]string{
	"aad":                         LevelSupreme,
	"supreme":                     LevelSupreme,
	"supremeAdministrative":       LevelSupreme,
	"jsc":                         LevelSupreme,
	"rscc":                        LevelSupreme,
	"clr":                         LevelSupreme,
	"areiospagos":                 LevelForeign,
	"courtOfAppeal":               LevelAppeal,
	"administrativeCourtOfAppeal": LevelAppeal,
	"apofaseised":                 LevelFirstInstance,
	"juvenileCourt":               LevelFirstInstance,
	"administrative":              LevelAdministrative,
	"administrativeIP":            LevelAdministrative,
	"dioikitiko":                  LevelAdministrative,
	"epa":                         LevelOther,
	"aap":                         LevelOther,
}

// subcourtCodes are the district-court division segments: civil, criminal,
// family, rent control, labour.
var subcourtCodes = map[string]bool{
	"pol":   true,
	"poin":  true,
	"oik":   true,
	"enoik": true,
	"erg":   true,
}

// displayName holds the Greek court names used in chunk headers. English
// names stay for the colonial-era archives that were published in English.
var displayName = map[string]string{
	"aad":                         "Ανώτατο Δικαστήριο",
	"supreme":                     "Ανώτατο Δικαστήριο (νέο)",
	"supremeAdministrative":       "Ανώτατο Συνταγματικό Δικαστήριο",
	"areiospagos":                 "Άρειος Πάγος (Ελλάδα)",
	"courtOfAppeal":               "Εφετείο",
	"administrativeCourtOfAppeal": "Διοικητικό Εφετείο",
	"apofaseised":                 "Επαρχιακό Δικαστήριο",
	"administrative":              "Διοικητικό Δικαστήριο",
	"administrativeIP":            "Διοικητικό Δικαστήριο Διεθνούς Προστασίας",
	"juvenileCourt":               "Δικαστήριο Παίδων",
	"epa":                         "Επιτροπή Προστασίας Ανταγωνισμού",
	"aap":                         "Αναθεωρητική Αρχή Προσφορών",
	"jsc":                         "Supreme Court of Cyprus",
	"rscc":                        "Supreme Constitutional Court",
	"clr":                         "Cyprus Law Reports",
	"dioikitiko":                  "Διοικητικό Δικαστήριο",
}

type jurisdictionRule struct {
	segment string
	label   string
}

// jurisdictionFallback derives a jurisdiction label from the path when the
// document body carries no ΔΙΚΑΙΟΔΟΣΙΑ line. Subcourt codes cover the
// district courts; meros_N covers the old Supreme Court volume layout.
// Ordered slice for deterministic resolution.
var jurisdictionFallback = []jurisdictionRule{
	{"pol", "ΠΟΛΙΤΙΚΗ ΔΙΚΑΙΟΔΟΣΙΑ"},
	{"poin", "ΠΟΙΝΙΚΗ ΔΙΚΑΙΟΔΟΣΙΑ"},
	{"oik", "ΟΙΚΟΓΕΝΕΙΑΚΗ ΔΙΚΑΙΟΔΟΣΙΑ"},
	{"enoik", "ΔΙΚΑΙΟΔΟΣΙΑ ΕΝΟΙΚΙΟΣΤΑΣΙΟΥ"},
	{"erg", "ΕΡΓΑΤΙΚΗ ΔΙΚΑΙΟΔΟΣΙΑ"},
	{"meros_1", "ΠΟΙΝΙΚΗ ΔΙΚΑΙΟΔΟΣΙΑ"},
	{"meros_2", "ΠΟΛΙΤΙΚΗ ΔΙΚΑΙΟΔΟΣΙΑ"},
	{"meros_3", "ΕΡΓΑΤΙΚΗ ΔΙΚΑΙΟΔΟΣΙΑ"},
	{"meros_4", "ΔΙΟΙΚΗΤΙΚΗ ΔΙΚΑΙΟΔΟΣΙΑ"},
}

var (
	yearDirRe  = regexp.MustCompile(`/(\d{4})/`)
	yearFileRe = regexp.MustCompile(`/(\d{4})_`)
)

// Detect returns the court identifier for a corpus-relative path. Unmatched
// paths fall back to their first segment, or "unknown" for empty input.
func Detect(relPath string) string {
	for _, p := range pathToCourt {
		if strings.Contains(relPath, p.fragment) {
			return p.court
		}
	}
	for _, seg := range strings.Split(relPath, "/") {
		if seg != "" {
			return seg
		}
	}
	return "unknown"
}

// Level buckets a court identifier into the hierarchy level used for
// filtering and ranking.
func Level(court string) string {
	if lvl, ok := courtLevel[court]; ok {
		return lvl
	}
	return LevelOther
}

// Subcourt returns the division code for district-court paths
// ("apofaseised/pol/2024/..." yields "pol") and "" for every other court.
func Subcourt(docID, court string) string {
	if court != FirstInstanceCourt {
		return ""
	}
	parts := strings.Split(docID, "/")
	if len(parts) >= 2 && subcourtCodes[parts[1]] {
		return parts[1]
	}
	return ""
}

// Year extracts the decision year from a path, preferring a year directory
// segment over a year-prefixed filename. Returns "" when neither appears.
func Year(relPath string) string {
	if m := yearDirRe.FindStringSubmatch(relPath); m != nil {
		return m[1]
	}
	if m := yearFileRe.FindStringSubmatch(relPath); m != nil {
		return m[1]
	}
	return ""
}

// DisplayName returns the human-readable court name, falling back to the
// identifier itself for courts missing from the table.
func DisplayName(court string) string {
	if name, ok := displayName[court]; ok {
		return name
	}
	return court
}

// JurisdictionFromPath maps a path segment to a jurisdiction label, or ""
// when no known segment appears in the doc ID.
func JurisdictionFromPath(docID string) string {
	for _, r := range jurisdictionFallback {
		if strings.Contains(docID, "/"+r.segment+"/") {
			return r.label
		}
	}
	return ""
}
