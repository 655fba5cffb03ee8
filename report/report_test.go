package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yashubustudio/bioscan/bioscan"
)

func sampleResult() bioscan.Result {
	return bioscan.Result{
		ID:        "job-1",
		Query:     "MKVLLPAAAAAA",
		Selection: bioscan.SelectAll(),
		Scores: []bioscan.Score{
			{Name: "Receptor ACE2", Score: 97.123},
			{Name: "Receptor CD4", Score: 12.5},
			{Name: "Receptor CCR5", Score: -3.456},
		},
		ModelID:     "composition",
		CompletedAt: time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC),
	}
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "97.12%", FormatPercent(97.123))
	assert.Equal(t, "100.00%", FormatPercent(100))
	assert.Equal(t, "-3.46%", FormatPercent(-3.456))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResult()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"RECEPTOR", "AFINIDADE"},
		{"Receptor ACE2", "97.12%"},
		{"Receptor CD4", "12.50%"},
		{"Receptor CCR5", "-3.46%"},
	}, records)
}

func TestWriteTableKeepsOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, sampleResult()))
	out := buf.String()

	assert.Contains(t, out, "RECEPTOR")
	ace := strings.Index(out, "Receptor ACE2")
	cd4 := strings.Index(out, "Receptor CD4")
	ccr5 := strings.Index(out, "Receptor CCR5")
	require.True(t, ace >= 0 && cd4 >= 0 && ccr5 >= 0)
	assert.Less(t, ace, cd4)
	assert.Less(t, cd4, ccr5)
	assert.Contains(t, out, "97.12%")
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, sampleResult()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestSaveFilePicksFormatFromExtension(t *testing.T) {
	dir := t.TempDir()
	res := sampleResult()

	csvPath := filepath.Join(dir, "out", "report.csv")
	require.NoError(t, SaveFile(csvPath, "", res))
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "RECEPTOR,AFINIDADE"))

	pdfPath := filepath.Join(dir, "report.PDF")
	require.NoError(t, SaveFile(pdfPath, "", res))
	assert.FileExists(t, pdfPath)
	assert.NoFileExists(t, pdfPath+".tmp")

	assert.Error(t, SaveFile(filepath.Join(dir, "report.docx"), "", res))
}

func TestSaveFileExplicitFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, SaveFile(path, FormatCSV, sampleResult()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "RECEPTOR,AFINIDADE"))

	assert.Error(t, SaveFile(path, Format("xml"), sampleResult()))
}

func TestWriteFileFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.csv")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

	err := WriteFile(path, func(w io.Writer) error {
		_, _ = io.WriteString(w, "RECEPTOR,")
		return errors.New("render failed")
	})
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
	assert.NoFileExists(t, path+".tmp")

	missing := filepath.Join(dir, "new.csv")
	require.Error(t, WriteFile(missing, func(io.Writer) error { return errors.New("render failed") }))
	assert.NoFileExists(t, missing)
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, filepath.Join("reports", "a.csv"), ResolvePath("reports", "a.csv"))
	assert.Equal(t, filepath.Join("x", "a.csv"), ResolvePath("reports", filepath.Join("x", "a.csv")))
	assert.Equal(t, "a.csv", ResolvePath("", "a.csv"))
}

func TestDefaultFileName(t *testing.T) {
	res := sampleResult()
	assert.Equal(t, "bioscan_20250102_150405.pdf", DefaultFileName(res, FormatPDF))
	assert.Equal(t, "bioscan_20250102_150405.txt", DefaultFileName(res, FormatTable))
}

func TestWriteUnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, Format("xml"), sampleResult()))
}
