// Package normalize canonicalizes column names and casts raw cells into
// typed transaction fields. Malformed values become nulls; only a broken
// schema is an error.
package normalize

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cleared-dev/posprep/internal/diag"
	"github.com/cleared-dev/posprep/internal/model"
)

// ErrSchemaViolation marks a source whose columns cannot be mapped.
var ErrSchemaViolation = errors.New("schema violation")

// SchemaError lists what is wrong with the header row.
type SchemaError struct {
	Missing    []string
	Duplicated []string
}

func (e *SchemaError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing columns: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Duplicated) > 0 {
		parts = append(parts, "duplicate columns: "+strings.Join(e.Duplicated, ", "))
	}
	return fmt.Sprintf("%s: %s", ErrSchemaViolation, strings.Join(parts, "; "))
}

func (e *SchemaError) Unwrap() error { return ErrSchemaViolation }

// CanonicalHeader trims, lowercases and replaces each space with an underscore.
// Tabs and other whitespace inside the name are kept as-is.
func CanonicalHeader(h string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
}

// CanonicalHeaders applies CanonicalHeader to every name.
func CanonicalHeaders(hs []string) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = CanonicalHeader(h)
	}
	return out
}

// Normalize returns a typed Dataset for t. No rows are dropped.
func Normalize(t model.Table, c diag.Collector) (model.Dataset, error) {
	cols := CanonicalHeaders(t.Headers)
	if err := checkSchema(cols); err != nil {
		return model.Dataset{}, err
	}

	ds := model.Dataset{
		Columns: cols,
		Records: make([]model.Transaction, len(t.Rows)),
	}

	// A Caser keeps state between calls, so each run gets its own.
	titler := cases.Title(language.Und)
	for i, row := range t.Rows {
		ds.Records[i] = normalizeRow(titler, cols, row)
	}

	c.Info("normalization complete", diag.F("rows", len(ds.Records)), diag.F("null_dates", ds.NullDates()))
	return ds, nil
}

func checkSchema(cols []string) error {
	seen := make(map[string]int, len(cols))
	var dups []string
	for _, c := range cols {
		seen[c]++
		if seen[c] == 2 {
			dups = append(dups, c)
		}
	}

	var missing []string
	for _, k := range model.KnownColumns {
		if seen[k] == 0 {
			missing = append(missing, k)
		}
	}

	if len(missing) > 0 || len(dups) > 0 {
		return &SchemaError{Missing: missing, Duplicated: dups}
	}
	return nil
}

func normalizeRow(titler cases.Caser, cols []string, row []sql.Null[string]) model.Transaction {
	var tx model.Transaction
	for j, col := range cols {
		var cell sql.Null[string]
		if j < len(row) {
			cell = row[j]
		}
		switch col {
		case model.ColTransactionID:
			tx.TransactionID = cell
		case model.ColItem:
			tx.Item = text(titler, cell)
		case model.ColPaymentMethod:
			tx.PaymentMethod = text(titler, cell)
		case model.ColLocation:
			tx.Location = text(titler, cell)
		case model.ColQuantity:
			tx.Quantity = Int(cell)
		case model.ColPricePerUnit:
			tx.PricePerUnit = Decimal(cell)
		case model.ColTotalSpent:
			tx.TotalSpent = Decimal(cell)
		case model.ColTransactionDate:
			tx.TransactionDate = Date(cell)
		default:
			if tx.Extra == nil {
				tx.Extra = make(map[string]sql.Null[string])
			}
			tx.Extra[col] = cell
		}
	}
	return tx
}

// Text trims and title-cases a value. Nulls pass through.
func Text(cell sql.Null[string]) sql.Null[string] {
	return text(cases.Title(language.Und), cell)
}

func text(titler cases.Caser, cell sql.Null[string]) sql.Null[string] {
	if !cell.Valid {
		return cell
	}
	return model.Some(titler.String(strings.TrimSpace(cell.V)))
}

// dateLayout accepts zero-padded or single-digit month and day.
const dateLayout = "2006-1-2"

// Date parses year-month-day, e.g. 2024-03-01 or 2024-3-1. Anything else is null.
func Date(cell sql.Null[string]) sql.Null[time.Time] {
	if !cell.Valid {
		return sql.Null[time.Time]{}
	}
	d, err := time.Parse(dateLayout, cell.V)
	if err != nil {
		return sql.Null[time.Time]{}
	}
	return model.Some(d)
}

// Int parses an integral number such as "3", "3.0" or "3e0".
// Fractional, out-of-range or non-numeric text is null.
func Int(cell sql.Null[string]) sql.Null[int64] {
	if !cell.Valid {
		return sql.Null[int64]{}
	}
	s := strings.TrimSpace(cell.V)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return model.Some(n)
	}
	d, ok := parseDecimal(s)
	if !ok || !d.IsInteger() {
		return sql.Null[int64]{}
	}
	if d.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || d.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return sql.Null[int64]{}
	}
	return model.Some(d.IntPart())
}

// Decimal parses a number. Non-numeric text is null.
func Decimal(cell sql.Null[string]) decimal.NullDecimal {
	if !cell.Valid {
		return decimal.NullDecimal{}
	}
	d, ok := parseDecimal(strings.TrimSpace(cell.V))
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// Exponent bounds for numeric cells. Values outside them would expand to
// huge coefficients on comparison or formatting.
const (
	maxExponent = 18
	minExponent = -28
)

func parseDecimal(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if exp := d.Exponent(); exp > maxExponent || exp < minExponent {
		return decimal.Decimal{}, false
	}
	return d, true
}
