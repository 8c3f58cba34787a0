package model

import (
	"database/sql"
	"slices"
	"strconv"
)

// Table is a raw tabular source: trimmed headers and nullable string cells.
// Every row has exactly len(Headers) cells.
type Table struct {
	Headers []string
	Rows    [][]sql.Null[string]
}

// Shape returns the row and column counts.
func (t Table) Shape() (rows, cols int) {
	return len(t.Rows), len(t.Headers)
}

// Dataset is an ordered collection of transactions sharing one schema.
type Dataset struct {
	Columns []string
	Records []Transaction
}

// Len returns the number of records.
func (d Dataset) Len() int { return len(d.Records) }

// Clone deep-copies the dataset so the result can be changed freely.
func (d Dataset) Clone() Dataset {
	out := Dataset{
		Columns: slices.Clone(d.Columns),
		Records: make([]Transaction, len(d.Records)),
	}
	for i, r := range d.Records {
		out.Records[i] = r.Clone()
	}
	return out
}

// NullDates counts records without a parsed transaction_date.
func (d Dataset) NullDates() int {
	n := 0
	for _, r := range d.Records {
		if !r.TransactionDate.Valid {
			n++
		}
	}
	return n
}

// Row renders record i as nullable strings in column order.
func (d Dataset) Row(i int) []sql.Null[string] {
	row := make([]sql.Null[string], len(d.Columns))
	for j, col := range d.Columns {
		row[j] = d.Records[i].Value(col)
	}
	return row
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
