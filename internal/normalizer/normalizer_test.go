package normalizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/branch-sales-aggregator/internal/types"
	"github.com/ginjaninja78/branch-sales-aggregator/internal/validation"
)

func validRaw() types.RawRow {
	return types.RawRow{
		Shop:         " Awaisia ",
		Receipt:      "R-1001",
		CustomerName: "Walk-in",
		ProductCode:  " P100 ",
		ProductName:  " Widget",
		RetailPrice:  "10.00",
		Quantity:     "3",
		SalesTax:     "30.00",
		Line:         2,
	}
}

func TestNormalize_TrimsAndParses(t *testing.T) {
	row, err := Normalize(validRaw())
	require.NoError(t, err)

	assert.Equal(t, "Awaisia", row.Shop)
	assert.Equal(t, "P100", row.ProductCode)
	assert.Equal(t, "Widget", row.ProductName)
	assert.Equal(t, 10.0, row.RetailPrice)
	assert.Equal(t, 3.0, row.Quantity)
	assert.Equal(t, 30.0, row.SalesTax)
	assert.Equal(t, 2, row.Line)
}

func TestNormalize_FormattedAmounts(t *testing.T) {
	raw := validRaw()
	raw.RetailPrice = "Rs. 1,250.00"
	raw.SalesTax = "(2,500.00)"
	raw.Quantity = "-2"

	row, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, 1250.0, row.RetailPrice)
	assert.Equal(t, -2.0, row.Quantity)
	assert.Equal(t, -2500.0, row.SalesTax)
}

func TestNormalize_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.RawRow)
		field  string
		reason string
	}{
		{
			name:   "quantity not a number",
			mutate: func(r *types.RawRow) { r.Quantity = "abc" },
			field:  types.ColumnQuantity,
			reason: validation.ReasonNotNumeric,
		},
		{
			name:   "empty sales",
			mutate: func(r *types.RawRow) { r.SalesTax = "" },
			field:  types.ColumnSalesTax,
			reason: validation.ReasonEmpty,
		},
		{
			name:   "empty retail price",
			mutate: func(r *types.RawRow) { r.RetailPrice = " " },
			field:  types.ColumnRetailPrice,
			reason: validation.ReasonEmpty,
		},
		{
			name:   "negative retail price",
			mutate: func(r *types.RawRow) { r.RetailPrice = "-1" },
			field:  types.ColumnRetailPrice,
			reason: validation.ReasonNegativePrice,
		},
		{
			name:   "blank product code",
			mutate: func(r *types.RawRow) { r.ProductCode = "   " },
			field:  types.ColumnProductCode,
			reason: validation.ReasonMissingProduct,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.mutate(&raw)

			_, err := Normalize(raw)
			var rowErr *validation.InvalidRowError
			require.True(t, errors.As(err, &rowErr))
			assert.Equal(t, tt.field, rowErr.Field)
			assert.Equal(t, tt.reason, rowErr.Reason)
			assert.Equal(t, 2, rowErr.Line)
		})
	}
}

func TestNormalize_ZeroPriceAccepted(t *testing.T) {
	raw := validRaw()
	raw.RetailPrice = "0"
	_, err := Normalize(raw)
	assert.NoError(t, err)
}

func TestIsSummaryRow(t *testing.T) {
	assert.True(t, IsSummaryRow(""))
	assert.True(t, IsSummaryRow("   "))
	assert.True(t, IsSummaryRow("Grand Total"))
	assert.True(t, IsSummaryRow("AWAISIA TOTAL BRANCH SALE"))
	assert.True(t, IsSummaryRow("Branch total"))

	assert.False(t, IsSummaryRow("AWAISIA"))
	assert.False(t, IsSummaryRow("Bahria Town"))
}
