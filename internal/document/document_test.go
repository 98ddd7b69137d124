package document

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCleanStripsNonASCII(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Temp 38.5C, caf", Clean("Temp 38.5°C, café"))
	require.Equal(t, "Severity: moderate ", Clean("Severity: moderate 🤕"))
	require.Equal(t, "plain\ntext", Clean("plain\ntext"))
}

func TestLinesSplitsCleanedTextOnNewlines(t *testing.T) {
	t.Parallel()

	got := Lines("**Reported Symptoms:** headache\n\n**Duration:** 3 días\nnext")
	require.Equal(t, []string{"**Reported Symptoms:** headache", "", "**Duration:** 3 das", "next"}, got)
	require.Equal(t, []string{""}, Lines(""))
}

func TestFilename(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "patient_summary_20240101000000.pdf", Filename(at))
	require.Equal(t, "patient_summary_20261018143005.pdf", Filename(time.Date(2026, 10, 18, 14, 30, 5, 0, time.Local)))
}

func TestBuildPassesCleanLinesToRenderer(t *testing.T) {
	t.Parallel()

	var got []string
	r := RenderFunc(func(lines []string) ([]byte, error) {
		got = lines
		return []byte("%PDF-fake"), nil
	})

	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	doc, err := Build(r, "Summary – patient\nno fever", now)
	require.NoError(t, err)
	require.Equal(t, []string{"Summary  patient", "no fever"}, got)
	require.Equal(t, "patient_summary_20250304050607.pdf", doc.Filename)
	require.Equal(t, []byte("%PDF-fake"), doc.Data)
	require.Equal(t, now, doc.CreatedAt)
}

func TestBuildWrapsRendererError(t *testing.T) {
	t.Parallel()

	_, err := Build(RenderFunc(func([]string) ([]byte, error) {
		return nil, errors.New("disk full")
	}), "x", time.Now())
	require.Error(t, err)
	require.Contains(t, err.Error(), "render document: disk full")
}

func TestPDFRenderRoundTripsText(t *testing.T) {
	t.Parallel()

	lines := Lines("Date: 2026-10-18\nReported Symptoms: headache for three days\n\nSeverity: moderate")
	data, err := PDF{Title: "Patient summary"}.Render(lines)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "%PDF-"))

	text, err := ExtractText(data)
	require.NoError(t, err)
	for _, line := range lines {
		if line == "" {
			continue
		}
		require.Contains(t, text, line)
	}
}

func TestPDFRenderPaginatesLongSummaries(t *testing.T) {
	t.Parallel()

	lines := make([]string, 0, 80)
	for i := 0; i < 80; i++ {
		lines = append(lines, "Observation line")
	}
	lines = append(lines, "Final line "+strings.Repeat("wrapped ", 40))

	data, err := PDF{}.Render(lines)
	require.NoError(t, err)

	text, err := ExtractText(data)
	require.NoError(t, err)
	require.Equal(t, 80, strings.Count(text, "Observation line"))
	require.Contains(t, text, "Final line")
}

func TestExtractTextRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := ExtractText([]byte("not a pdf"))
	require.Error(t, err)
}

func TestSaveWritesUnderFilename(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	doc := Document{Filename: "patient_summary_20240101120000.pdf", Data: []byte("%PDF-1.3")}

	path, err := Save(dir, doc)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, doc.Filename), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, doc.Data, data)

	_, err = Save(dir, Document{})
	require.Error(t, err)
}
