package model

import (
	"database/sql"
	"maps"
	"time"

	"github.com/shopspring/decimal"
)

// Canonical column names of a point-of-sale export.
const (
	ColTransactionID   = "transaction_id"
	ColItem            = "item"
	ColQuantity        = "quantity"
	ColPricePerUnit    = "price_per_unit"
	ColTotalSpent      = "total_spent"
	ColPaymentMethod   = "payment_method"
	ColLocation        = "location"
	ColTransactionDate = "transaction_date"
)

// DateFormat is the layout transaction_date is written in.
const DateFormat = "2006-01-02"

// KnownColumns lists the columns every source must provide.
var KnownColumns = []string{
	ColTransactionID,
	ColItem,
	ColQuantity,
	ColPricePerUnit,
	ColTotalSpent,
	ColPaymentMethod,
	ColLocation,
	ColTransactionDate,
}

// IsKnownColumn reports whether name is one of KnownColumns.
func IsKnownColumn(name string) bool {
	for _, c := range KnownColumns {
		if c == name {
			return true
		}
	}
	return false
}

// Transaction is one point-of-sale row after type casting.
// Every field is nullable; Valid=false means missing.
type Transaction struct {
	TransactionID   sql.Null[string]
	Item            sql.Null[string]
	Quantity        sql.Null[int64]
	PricePerUnit    decimal.NullDecimal
	TotalSpent      decimal.NullDecimal
	PaymentMethod   sql.Null[string]
	Location        sql.Null[string]
	TransactionDate sql.Null[time.Time]

	// Extra holds columns outside KnownColumns, keyed by canonical name.
	Extra map[string]sql.Null[string]
}

// Complete reports whether the five critical fields are all present.
func (t Transaction) Complete() bool {
	return t.TransactionID.Valid &&
		t.TransactionDate.Valid &&
		t.Quantity.Valid &&
		t.PricePerUnit.Valid &&
		t.TotalSpent.Valid
}

// Clone returns a copy that shares no mutable state with t.
func (t Transaction) Clone() Transaction {
	out := t
	if t.Extra != nil {
		out.Extra = maps.Clone(t.Extra)
	}
	return out
}

// Value returns the field called column as a nullable string, the way
// it would be written to a CSV cell.
func (t Transaction) Value(column string) sql.Null[string] {
	switch column {
	case ColTransactionID:
		return t.TransactionID
	case ColItem:
		return t.Item
	case ColPaymentMethod:
		return t.PaymentMethod
	case ColLocation:
		return t.Location
	case ColQuantity:
		if !t.Quantity.Valid {
			return sql.Null[string]{}
		}
		return Some(formatInt(t.Quantity.V))
	case ColPricePerUnit:
		return decimalString(t.PricePerUnit)
	case ColTotalSpent:
		return decimalString(t.TotalSpent)
	case ColTransactionDate:
		if !t.TransactionDate.Valid {
			return sql.Null[string]{}
		}
		return Some(t.TransactionDate.V.Format(DateFormat))
	}
	return t.Extra[column]
}

// Some wraps v as a present value.
func Some[T any](v T) sql.Null[T] {
	return sql.Null[T]{V: v, Valid: true}
}

func decimalString(d decimal.NullDecimal) sql.Null[string] {
	if !d.Valid {
		return sql.Null[string]{}
	}
	return Some(d.Decimal.String())
}
