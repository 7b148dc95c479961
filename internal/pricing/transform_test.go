package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reprice/internal/model"
)

func TestComputeNew_Scenario(t *testing.T) {
	newPrice, newCompare := ComputeNew(1500, model.Money(1790).Ptr(), 10)

	assert.Equal(t, model.Money(1690), newPrice)
	require.NotNil(t, newCompare)
	assert.Equal(t, model.Money(1990), *newCompare)
}

func TestComputeNew_NoCompareAt(t *testing.T) {
	newPrice, newCompare := ComputeNew(1500, nil, 10)

	assert.Equal(t, model.Money(1690), newPrice)
	assert.Nil(t, newCompare)
}

func TestComputeNew_CompareCollapsesOntoPrice(t *testing.T) {
	// 1700 and 1710 both round to 1700, so compare-at moves to the next point.
	newPrice, newCompare := ComputeNew(1700, model.Money(1710).Ptr(), 0)

	assert.Equal(t, model.Money(1700), newPrice)
	require.NotNil(t, newCompare)
	assert.Equal(t, model.Money(1790), *newCompare)
}

func TestComputeNew_CompareAlwaysAbovePrice(t *testing.T) {
	for _, pct := range []float64{-50, -25, -10, -3.5, 0, 2.5, 10, 33, 100} {
		for price := model.Money(50); price <= 5000; price += 173 {
			for _, off := range []model.Money{-200, -1, 0, 1, 10, 95, 400} {
				compare := price + off
				newPrice, newCompare := ComputeNew(price, &compare, pct)
				require.NotNil(t, newCompare)
				assert.Greater(t, int64(*newCompare), int64(newPrice),
					"price=%d compare=%d pct=%v", price, compare, pct)
			}
			_, none := ComputeNew(price, nil, pct)
			assert.Nil(t, none)
		}
	}
}

func TestComputeNew_Deterministic(t *testing.T) {
	a1, b1 := ComputeNew(2349, model.Money(2999).Ptr(), -7.5)
	a2, b2 := ComputeNew(2349, model.Money(2999).Ptr(), -7.5)
	assert.Equal(t, a1, a2)
	assert.Equal(t, *b1, *b2)
}

func TestPercentRows_PreservesOrder(t *testing.T) {
	variants := []model.Variant{
		{VariantID: 3, Price: 1000},
		{VariantID: 1, Price: 1500, CompareAtPrice: model.Money(1790).Ptr()},
		{VariantID: 2, Price: 0},
	}

	rows := PercentRows(variants, 10)

	require.Len(t, rows, 3)
	assert.Equal(t, int64(3), rows[0].VariantID)
	assert.Equal(t, model.Money(1100), rows[0].NewPrice)
	assert.Nil(t, rows[0].NewCompare)
	assert.Equal(t, int64(1), rows[1].VariantID)
	assert.Equal(t, model.Money(1990), *rows[1].NewCompare)
	assert.Equal(t, model.Money(0), rows[2].NewPrice)
}

func TestValidatePct(t *testing.T) {
	assert.NoError(t, ValidatePct(0))
	assert.NoError(t, ValidatePct(-99.9))
	assert.NoError(t, ValidatePct(250))

	for _, bad := range []float64{-100, -150, math.NaN(), math.Inf(1)} {
		err := ValidatePct(bad)
		require.Error(t, err, "pct=%v", bad)
		assert.True(t, model.IsValidation(err))
	}
}
