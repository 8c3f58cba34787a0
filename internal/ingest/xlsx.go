package ingest

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	"github.com/cleared-dev/posprep/internal/model"
)

// XLSXReader reads the first sheet of an Excel workbook.
type XLSXReader struct{}

// Format returns the file extension handled.
func (p *XLSXReader) Format() string { return "xlsx" }

// Read parses the first sheet. Cells follow the same rules as CSV fields.
func (p *XLSXReader) Read(r io.Reader, missing Sentinels) (model.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return model.Table{}, fmt.Errorf("opening workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return model.Table{}, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return model.Table{}, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	for _, row := range rows {
		for i, cell := range row {
			row[i] = strings.TrimLeftFunc(cell, unicode.IsSpace)
		}
	}
	return buildTable(rows, missing)
}
