package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCourtMainIndex(t *testing.T) {
	html := `<html><body>
		<a href="/supreme/index_2024.html">2024</a>
		<a href="/supreme/index_2023.html">2023</a>
		<a href="/supreme/index_2024.html">2024 again</a>
		<a href="/apofaseis/epa/2019/index.html">2019</a>
		<a href="/supreme/about.html">About the court</a>
		<a href="https://www.cylaw.org/index.html">Home</a>
	</body></html>`

	urls, err := ParseCourtMainIndex(html)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/supreme/index_2024.html",
		"/supreme/index_2023.html",
		"/apofaseis/epa/2019/index.html",
	}, urls)
}

func TestParseCourtMainIndex_VolumeIndexes(t *testing.T) {
	html := `<html><body>
		<a href="/rscc/index_1.html">Volume 1</a>
		<a href="/apofaseised/index_pol_2005.html">2005</a>
	</body></html>`

	urls, err := ParseCourtMainIndex(html)
	require.NoError(t, err)
	assert.Equal(t, []string{"/rscc/index_1.html", "/apofaseised/index_pol_2005.html"}, urls)
}

func TestParseYearIndex(t *testing.T) {
	html := `<html><body>
		<a href="/cgi-bin/open.pl?file=/aad/meros_2/1995/case_7.md&amp;color=">
			Γεωργίου ν. Δημοκρατίας
		</a>
		<a href="/cgi-bin/open.pl?file=/aad/meros_2/1995/case_8.md&amp;color=">Ιωάννου ν. Αστυνομίας</a>
		<a href="/cgi-bin/open.pl?file=/aad/meros_2/1995/case_7.md&amp;color=">duplicate link</a>
		<a href="/aad/index_1994.html">previous year</a>
	</body></html>`

	entries, err := ParseYearIndex(html, "https://www.cylaw.org", "aad", "1995")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "/aad/meros_2/1995/case_7.md", entries[0].FilePath)
	assert.Equal(t, "https://www.cylaw.org/cgi-bin/open.pl?file=/aad/meros_2/1995/case_7.md&color=", entries[0].URL)
	assert.Equal(t, "Γεωργίου ν. Δημοκρατίας", entries[0].Title)
	assert.Equal(t, "aad", entries[0].Court)
	assert.Equal(t, "1995", entries[0].Year)

	assert.Equal(t, "/aad/meros_2/1995/case_8.md", entries[1].FilePath)
}

func TestParseYearIndex_Empty(t *testing.T) {
	entries, err := ParseYearIndex(`<html><body><p>no cases yet</p></body></html>`, "https://www.cylaw.org", "supreme", "2026")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParseUpdatesPage(t *testing.T) {
	html := `<html><body>
		<a href="/cgi-bin/open.pl?file=/courtOfAppeal/2024/pol_12.md&amp;color=">Εφετείο</a>
		<a href="/cgi-bin/open.pl?file=/administrative/2022/case_3.md&amp;color=">Διοικητικό</a>
		<a href="/cgi-bin/open.pl?file=/administrativeIP/2023/case_9.md&amp;color=">ΔΔΔΠ</a>
		<a href="/cgi-bin/open.pl?file=/apofaseis/aad/meros_1/2010/case_2.md&amp;color=">ΑΑΔ</a>
		<a href="/cgi-bin/open.pl?file=/elsewhere/undated.md&amp;color=">Άγνωστο</a>
	</body></html>`

	entries, err := ParseUpdatesPage(html, "https://www.cylaw.org")
	require.NoError(t, err)
	require.Len(t, entries, 5)

	assert.Equal(t, "courtOfAppeal", entries[0].Court)
	assert.Equal(t, "2024", entries[0].Year)
	assert.Equal(t, "administrative", entries[1].Court)
	assert.Equal(t, "administrativeIP", entries[2].Court)
	assert.Equal(t, "aad", entries[3].Court)
	assert.Equal(t, "2010", entries[3].Year)
	assert.Equal(t, "unknown", entries[4].Court)
	assert.Equal(t, "", entries[4].Year)
}

func TestDetectCourtFromPath(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/administrative/2022/case.md", "administrative"},
		{"/administrativeIP/2023/case.md", "administrativeIP"},
		{"/administrativeCourtOfAppeal/2025/case.md", "administrativeCourtOfAppeal"},
		{"/supreme/2024/case.md", "supreme"},
		{"/supremeAdministrative/2024/case.md", "supremeAdministrative"},
		{"/apofaseised/pol/2015/case.md", "apofaseised"},
		{"/unlisted/2020/case.md", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, detectCourtFromPath(tt.path))
		})
	}
}

func TestExtractFilePath(t *testing.T) {
	assert.Equal(t, "/jsc/1970/case.md", extractFilePath("/cgi-bin/open.pl?file=/jsc/1970/case.md&color=C"))
	assert.Equal(t, "", extractFilePath("/jsc/index_1970.html"))
}
