package impute

import (
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/posprep/internal/diag"
	"github.com/cleared-dev/posprep/internal/model"
)

// UnknownLabel replaces missing categorical values.
const UnknownLabel = "Unknown"

// Report summarizes the completeness filter.
type Report struct {
	Before   int
	After    int
	Dropped  int
	Fraction float64 // Dropped / Before, 0 for an empty input
}

// Impute fills financial and categorical gaps, then drops rows that are
// still missing a critical field. ds is left untouched.
func Impute(ds model.Dataset, c diag.Collector) (model.Dataset, Report) {
	out := model.Dataset{
		Columns: append([]string(nil), ds.Columns...),
		Records: make([]model.Transaction, 0, len(ds.Records)),
	}

	for _, r := range ds.Records {
		tx := r.Clone()
		fillFinancials(&tx)
		fillCategoricals(&tx)
		if tx.Complete() {
			out.Records = append(out.Records, tx)
		}
	}

	rep := Report{Before: len(ds.Records), After: len(out.Records)}
	rep.Dropped = rep.Before - rep.After
	if rep.Before > 0 {
		rep.Fraction = float64(rep.Dropped) / float64(rep.Before)
	}

	fields := []diag.Field{
		diag.F("before", rep.Before),
		diag.F("after", rep.After),
		diag.F("dropped", rep.Dropped),
		diag.F("fraction", rep.Fraction),
	}
	if rep.Dropped > 0 {
		c.Warn("dropped incomplete rows", fields...)
	} else {
		c.Info("no incomplete rows dropped", fields...)
	}
	return out, rep
}

// fillFinancials derives total first, then price from the possibly new total.
func fillFinancials(tx *model.Transaction) {
	if !tx.TotalSpent.Valid {
		tx.TotalSpent = Total(tx.PricePerUnit, tx.Quantity.V, tx.Quantity.Valid)
	}
	if !tx.PricePerUnit.Valid {
		tx.PricePerUnit = Price(tx.TotalSpent, tx.Quantity.V, tx.Quantity.Valid)
	}
}

func fillCategoricals(tx *model.Transaction) {
	if !tx.PaymentMethod.Valid {
		tx.PaymentMethod = model.Some(UnknownLabel)
	}
	if !tx.Location.Valid {
		tx.Location = model.Some(UnknownLabel)
	}
}

// Total returns price * quantity, or null when either side is missing.
func Total(price decimal.NullDecimal, qty int64, qtyValid bool) decimal.NullDecimal {
	if !price.Valid || !qtyValid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(price.Decimal.Mul(decimal.NewFromInt(qty)))
}

// Price returns total / quantity, or null when either side is missing or
// quantity is zero.
func Price(total decimal.NullDecimal, qty int64, qtyValid bool) decimal.NullDecimal {
	if !total.Valid || !qtyValid || qty == 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(total.Decimal.Div(decimal.NewFromInt(qty)))
}
