package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/cleared-dev/posprep/internal/model"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// CSVReader reads UTF-8, comma-delimited sources with a header row.
type CSVReader struct{}

// Format returns the file extension handled.
func (p *CSVReader) Format() string { return "csv" }

// Read parses a CSV stream. Leading whitespace in fields is dropped and
// ragged rows are padded or truncated to the header width.
func (p *CSVReader) Read(r io.Reader, missing Sentinels) (model.Table, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = br.Discard(len(byteOrderMark))
	}

	cr := csv.NewReader(br)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return model.Table{}, fmt.Errorf("reading CSV: %w", err)
	}
	return buildTable(records, missing)
}
