package extract_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dikastis/cylaw/pkg/extract"
)

func writeInputFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func caseHTML(title, body string) string {
	return "<html><head><title>" + title + "</title></head><body><p>" +
		body + " " + strings.Repeat("Κείμενο της απόφασης. ", 10) +
		"</p></body></html>"
}

func TestExtractor_Run(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()

	writeInputFile(t, inputDir, "supreme/2024/case_1.html", caseHTML("Υπόθεση 1/2024", "Η απόφαση."))
	writeInputFile(t, inputDir, "supreme/2024/notes.txt", strings.Repeat("x", 200))
	writeInputFile(t, inputDir, "aad/tiny.html", "<html></html>")
	writeInputFile(t, inputDir, "jsc/1970/volume.pdf", strings.Repeat("%PDF", 50))

	e := extract.New(extract.Config{
		InputDir:  inputDir,
		OutputDir: outputDir,
		Workers:   2,
	})

	files, err := e.CollectFiles()
	require.NoError(t, err)
	// .txt excluded by extension, tiny.html by size
	require.Len(t, files, 2)

	var seen int64
	stats := e.Run(context.Background(), files, func() { atomic.AddInt64(&seen, 1) })

	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Skipped) // the PDF
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, int64(2), atomic.LoadInt64(&seen))
	assert.Equal(t, 1, stats.FilesByCourt["supreme"])
	assert.Greater(t, stats.WordsByCourt["supreme"], 0)

	out, err := os.ReadFile(filepath.Join(outputDir, "supreme", "2024", "case_1.md"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "# Υπόθεση 1/2024"))
	assert.Contains(t, string(out), "Η απόφαση.")

	// A second run skips everything already converted
	stats = e.Run(context.Background(), files, nil)
	assert.Equal(t, 0, stats.Processed)
	assert.Equal(t, 2, stats.Skipped)
}

func TestExtractor_CourtFilter(t *testing.T) {
	inputDir := t.TempDir()

	writeInputFile(t, inputDir, "supreme/2024/case_1.html", caseHTML("Υπόθεση 1/2024", "Κείμενο."))
	writeInputFile(t, inputDir, "areiospagos/2020/case_2.html", caseHTML("Υπόθεση 2/2020", "Κείμενο."))

	e := extract.New(extract.Config{
		InputDir:  inputDir,
		OutputDir: t.TempDir(),
		Court:     "areiospagos",
	})

	files, err := e.CollectFiles()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Contains(t, files[0], "areiospagos")
}

func TestExtractor_Limit(t *testing.T) {
	inputDir := t.TempDir()
	writeInputFile(t, inputDir, "supreme/2024/case_1.html", caseHTML("Υπόθεση 1", "Α."))
	writeInputFile(t, inputDir, "supreme/2024/case_2.html", caseHTML("Υπόθεση 2", "Β."))
	writeInputFile(t, inputDir, "supreme/2024/case_3.html", caseHTML("Υπόθεση 3", "Γ."))

	e := extract.New(extract.Config{
		InputDir:  inputDir,
		OutputDir: t.TempDir(),
		Limit:     2,
	})

	files, err := e.CollectFiles()
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestExtractor_EmptyDocumentFails(t *testing.T) {
	inputDir := t.TempDir()
	writeInputFile(t, inputDir, "supreme/2024/empty.html",
		`<html><body><script>`+strings.Repeat("trackVisit(); ", 20)+`</script></body></html>`)

	e := extract.New(extract.Config{
		InputDir:  inputDir,
		OutputDir: t.TempDir(),
		Workers:   1,
	})

	files, err := e.CollectFiles()
	require.NoError(t, err)
	require.Len(t, files, 1)

	stats := e.Run(context.Background(), files, nil)
	assert.Equal(t, 1, stats.Failed)
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, "empty or too short", stats.Errors[0].Message)
}
