// Package report renders analysis results as CSV, text tables and PDF documents.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"yashubustudio/bioscan/bioscan"
)

// Title heads every PDF report.
const Title = "BioScan AI - Relatório de Afinidade Molecular"

// Column headers shared by all formats.
const (
	ColumnReceptor = "RECEPTOR"
	ColumnAffinity = "AFINIDADE"
)

// FormatPercent renders a score with two decimals and a percent sign.
func FormatPercent(score float64) string {
	return fmt.Sprintf("%.2f%%", score)
}

// Rows converts scores into (name, formatted score) pairs in result order.
func Rows(scores []bioscan.Score) [][]string {
	rows := make([][]string, len(scores))
	for i, s := range scores {
		rows[i] = []string{s.Name, FormatPercent(s.Score)}
	}
	return rows
}

// WriteCSV writes a header row followed by one row per score.
func WriteCSV(w io.Writer, res bioscan.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColumnReceptor, ColumnAffinity}); err != nil {
		return err
	}
	if err := cw.WriteAll(Rows(res.Scores)); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteTable renders the scores as an aligned plain-text table.
func WriteTable(w io.Writer, res bioscan.Result) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment: tw.CellAlignment{
					PerColumn: []tw.Align{tw.AlignLeft, tw.AlignRight},
				},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
	table.Header(ColumnReceptor, ColumnAffinity)
	if err := table.Bulk(Rows(res.Scores)); err != nil {
		return fmt.Errorf("table rows: %w", err)
	}
	return table.Render()
}

// WritePDF renders the report as an A4 document with a RECEPTOR/AFINIDADE table.
func WritePDF(w io.Writer, res bioscan.Result) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(Title, true)
	pdf.SetCreator("BioScan AI", false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 15, tr(Title), "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	when := res.CompletedAt
	if when.IsZero() {
		when = time.Now()
	}
	meta := fmt.Sprintf("%s  |  %d resíduos  |  %s", when.Format("2006-01-02 15:04:05"), len(res.Query), res.Selection.String())
	if res.ModelID != "" {
		meta += "  |  " + res.ModelID
	}
	pdf.CellFormat(0, 6, tr(meta), "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Courier", "B", 12)
	pdf.CellFormat(140, 10, ColumnReceptor, "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 10, ColumnAffinity, "1", 1, "L", false, 0, "")
	pdf.SetFont("Courier", "", 12)
	for _, row := range Rows(res.Scores) {
		pdf.CellFormat(140, 10, " "+tr(row[0]), "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 10, " "+row[1], "1", 1, "L", false, 0, "")
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// Format names an export format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatPDF   Format = "pdf"
	FormatTable Format = "table"
)

// FormatFromPath picks a format from a file extension; unknown extensions are an error.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".pdf":
		return FormatPDF, nil
	case ".txt":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unsupported report extension %q", filepath.Ext(path))
	}
}

// Write renders res in the given format.
func Write(w io.Writer, format Format, res bioscan.Result) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, res)
	case FormatPDF:
		return WritePDF(w, res)
	case FormatTable:
		return WriteTable(w, res)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// SaveFile writes res to path in the given format. An empty format is taken
// from the file extension.
func SaveFile(path string, format Format, res bioscan.Result) error {
	if format == "" {
		f, err := FormatFromPath(path)
		if err != nil {
			return err
		}
		format = f
	}
	switch format {
	case FormatCSV, FormatPDF, FormatTable:
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
	return WriteFile(path, func(w io.Writer) error {
		return Write(w, format, res)
	})
}

// WriteFile renders into a temporary file next to path and renames it into
// place. A failed render leaves nothing at path.
func WriteFile(path string, render func(io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()
	if err := render(f); err != nil {
		return errors.Join(err, f.Close())
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}

// ResolvePath places a bare file name under dir. Paths with a directory
// component are returned unchanged.
func ResolvePath(dir, name string) string {
	if dir == "" || filepath.Base(name) != name {
		return name
	}
	return filepath.Join(dir, name)
}

// DefaultFileName returns a timestamped report file name such as bioscan_20250102_150405.pdf.
func DefaultFileName(res bioscan.Result, format Format) string {
	when := res.CompletedAt
	if when.IsZero() {
		when = time.Now()
	}
	ext := string(format)
	if format == FormatTable {
		ext = "txt"
	}
	return fmt.Sprintf("bioscan_%s.%s", when.Format("20060102_150405"), ext)
}
