package impute

import (
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/posprep/internal/diag"
	"github.com/cleared-dev/posprep/internal/model"
)

func TestValidate_Clean(t *testing.T) {
	errs := Validate(dataset(txn("T1"), txn("T2")))
	assert.Empty(t, errs)
}

func TestValidate_NonCanonicalColumns(t *testing.T) {
	ds := dataset(txn("T1"))
	ds.Columns = append(ds.Columns, "Cashier Name", "item")

	errs := Validate(ds)
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.Equal(t, InvCanonicalColumns, e.Invariant)
		assert.Equal(t, -1, e.Row)
	}
	assert.Contains(t, errs[0].Error(), `"Cashier Name" is not canonical`)
	assert.Contains(t, errs[1].Error(), `"item" appears more than once`)
}

func TestValidate_CriticalFields(t *testing.T) {
	tx := txn("T1")
	tx.Quantity = sql.Null[int64]{}
	tx.TotalSpent = decimal.NullDecimal{}

	errs := Validate(dataset(txn("T0"), tx))
	require.Len(t, errs, 2)
	assert.Equal(t, InvCriticalFields, errs[0].Invariant)
	assert.Equal(t, 1, errs[0].Row)
	assert.Equal(t, "invariant 2 [row 1]: quantity is null", errs[0].Error())
	assert.Equal(t, "invariant 2 [row 1]: total_spent is null", errs[1].Error())
}

func TestValidate_Categoricals(t *testing.T) {
	tx := txn("T1")
	tx.PaymentMethod = sql.Null[string]{}
	tx.Location = sql.Null[string]{}

	errs := Validate(dataset(tx))
	require.Len(t, errs, 2)
	assert.Equal(t, InvCategoricals, errs[0].Invariant)
	assert.Contains(t, errs[0].Description, "payment_method")
	assert.Contains(t, errs[1].Description, "location")
}

func TestValidate_AfterImpute(t *testing.T) {
	tx := txn("T1")
	tx.PaymentMethod = sql.Null[string]{}
	before := Validate(dataset(tx))
	assert.NotEmpty(t, before)

	out, _ := Impute(dataset(tx), diag.Nop)
	assert.Empty(t, Validate(out))
	assert.Equal(t, model.Some(UnknownLabel), out.Records[0].PaymentMethod)
}
