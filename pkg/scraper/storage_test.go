package scraper

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dikastis/cylaw/internal/models"
)

func TestSaveAndLoadCourtIndex(t *testing.T) {
	dir := t.TempDir()
	entries := []models.CaseEntry{
		{URL: "https://www.cylaw.org/cgi-bin/open.pl?file=/jsc/1970/case_1.md", FilePath: "/jsc/1970/case_1.md", Title: "Case One", Court: "jsc", Year: "1970"},
		{URL: "https://www.cylaw.org/cgi-bin/open.pl?file=/jsc/1970/case_2.md", FilePath: "/jsc/1970/case_2.md", Title: "Case Two", Court: "jsc", Year: "1970"},
		{URL: "https://www.cylaw.org/cgi-bin/open.pl?file=/jsc/1971/case_1.md", FilePath: "/jsc/1971/case_1.md", Title: "Case Three", Court: "jsc", Year: "1971"},
		{URL: "https://www.cylaw.org/cgi-bin/open.pl?file=/jsc/undated.md", FilePath: "/jsc/undated.md", Title: "Undated", Court: "jsc"},
	}

	path, err := SaveCourtIndex("jsc", entries, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "jsc.json"), path)

	index, err := LoadCourtIndex("jsc", dir)
	require.NoError(t, err)
	require.NotNil(t, index)

	assert.Equal(t, "jsc", index.Court)
	assert.Equal(t, 4, index.Total)
	assert.Len(t, index.ByYear["1970"], 2)
	assert.Len(t, index.ByYear["1971"], 1)
	assert.Len(t, index.ByYear["unknown"], 1)
	assert.Equal(t, "Case One", index.ByYear["1970"][0].Title)

	_, err = time.Parse(time.RFC3339, index.ScrapedAt)
	assert.NoError(t, err)
}

func TestLoadCourtIndex_Missing(t *testing.T) {
	index, err := LoadCourtIndex("nosuchcourt", t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, index)
}

func TestLoadCourtIndex_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644))

	_, err := LoadCourtIndex("broken", dir)
	assert.Error(t, err)
}

func TestSaveUpdatesIndex(t *testing.T) {
	dir := t.TempDir()
	entries := []models.CaseEntry{
		{FilePath: "/supreme/2024/case_1.md", Title: "Recent", Court: "supreme", Year: "2024"},
	}

	path, err := SaveUpdatesIndex(entries, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "updates.json"), path)

	index, err := LoadCourtIndex("updates", dir)
	require.NoError(t, err)
	require.NotNil(t, index)
	assert.Equal(t, "updates.html", index.Source)
	assert.Equal(t, "", index.Court)
	assert.Equal(t, 1, index.Total)
}

func TestCollectEntries(t *testing.T) {
	dir := t.TempDir()

	_, err := SaveCourtIndex("aad", []models.CaseEntry{
		{FilePath: "/aad/1995/case_1.md", Title: "Old", Court: "aad", Year: "1995"},
		{FilePath: "/aad/2000/case_1.md", Title: "Newer", Court: "aad", Year: "2000"},
	}, dir)
	require.NoError(t, err)

	// updates.json overlaps with the aad index on one file path
	_, err = SaveUpdatesIndex([]models.CaseEntry{
		{FilePath: "/aad/2000/case_1.md", Title: "Newer", Court: "aad", Year: "2000"},
		{FilePath: "/supreme/2024/case_1.md", Title: "Recent", Court: "supreme", Year: "2024"},
	}, dir)
	require.NoError(t, err)

	entries, err := CollectEntries(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// aad.json sorts before updates.json, newest year first within a file
	assert.Equal(t, "/aad/2000/case_1.md", entries[0].FilePath)
	assert.Equal(t, "/aad/1995/case_1.md", entries[1].FilePath)
	assert.Equal(t, "/supreme/2024/case_1.md", entries[2].FilePath)
}

func TestCollectEntries_EmptyDir(t *testing.T) {
	entries, err := CollectEntries(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
