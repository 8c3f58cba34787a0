package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/cleared-dev/posprep/internal/model"
)

// Format is an output file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// sheetName is the worksheet written by WriteXLSX.
const sheetName = "transactions"

// ParseFormat accepts "csv" or "xlsx" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// MarshalRecord converts record i to a CSV row. Nulls become empty cells.
func MarshalRecord(ds model.Dataset, i int) []string {
	cells := ds.Row(i)
	row := make([]string, len(cells))
	for j, c := range cells {
		if c.Valid {
			row[j] = c.V
		}
	}
	return row
}

// WriteCSV writes the header and every record.
func WriteCSV(w io.Writer, ds model.Dataset) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(ds.Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i := range ds.Records {
		if err := cw.Write(MarshalRecord(ds, i)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the dataset to a single-sheet workbook.
func WriteXLSX(w io.Writer, ds model.Dataset) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := make([]any, len(ds.Columns))
	for i, c := range ds.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i := range ds.Records {
		row := make([]any, len(ds.Columns))
		for j, c := range MarshalRecord(ds, i) {
			row[j] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// OutputPath returns <dir>/<base>.clean.<format> for a source file.
func OutputPath(dir, source string, format Format) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(dir, base+".clean."+string(format))
}

// WriteFile writes ds to path in the given format, creating parent dirs.
func WriteFile(path string, ds model.Dataset, format Format) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	switch format {
	case FormatXLSX:
		err = WriteXLSX(f, ds)
	default:
		err = WriteCSV(f, ds)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing %s: %w", path, cerr)
	}
	return err
}
