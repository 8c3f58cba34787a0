package impute

import (
	"fmt"

	"github.com/cleared-dev/posprep/internal/model"
	"github.com/cleared-dev/posprep/internal/normalize"
)

// Invariant identifies a post-pipeline guarantee.
type Invariant int

const (
	// InvCanonicalColumns: every column name is canonical and unique.
	InvCanonicalColumns Invariant = iota + 1
	// InvCriticalFields: the five critical fields are present.
	InvCriticalFields
	// InvCategoricals: payment_method and location are present.
	InvCategoricals
)

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Invariant   Invariant
	Row         int // 0-based record index, -1 for dataset-level problems
	Description string
}

func (e ValidationError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("invariant %d: %s", e.Invariant, e.Description)
	}
	return fmt.Sprintf("invariant %d [row %d]: %s", e.Invariant, e.Row, e.Description)
}

// Validate checks an imputed dataset. An empty result means it is ready
// for downstream use.
func Validate(ds model.Dataset) []ValidationError {
	var errs []ValidationError

	seen := make(map[string]bool, len(ds.Columns))
	for _, c := range ds.Columns {
		if c != normalize.CanonicalHeader(c) {
			errs = append(errs, ValidationError{
				Invariant:   InvCanonicalColumns,
				Row:         -1,
				Description: fmt.Sprintf("column %q is not canonical", c),
			})
		}
		if seen[c] {
			errs = append(errs, ValidationError{
				Invariant:   InvCanonicalColumns,
				Row:         -1,
				Description: fmt.Sprintf("column %q appears more than once", c),
			})
		}
		seen[c] = true
	}

	for i, tx := range ds.Records {
		for _, name := range missingCritical(tx) {
			errs = append(errs, ValidationError{
				Invariant:   InvCriticalFields,
				Row:         i,
				Description: name + " is null",
			})
		}
		if !tx.PaymentMethod.Valid {
			errs = append(errs, ValidationError{
				Invariant:   InvCategoricals,
				Row:         i,
				Description: "payment_method is null",
			})
		}
		if !tx.Location.Valid {
			errs = append(errs, ValidationError{
				Invariant:   InvCategoricals,
				Row:         i,
				Description: "location is null",
			})
		}
	}

	return errs
}

func missingCritical(tx model.Transaction) []string {
	var names []string
	if !tx.TransactionID.Valid {
		names = append(names, model.ColTransactionID)
	}
	if !tx.TransactionDate.Valid {
		names = append(names, model.ColTransactionDate)
	}
	if !tx.Quantity.Valid {
		names = append(names, model.ColQuantity)
	}
	if !tx.PricePerUnit.Valid {
		names = append(names, model.ColPricePerUnit)
	}
	if !tx.TotalSpent.Valid {
		names = append(names, model.ColTotalSpent)
	}
	return names
}
