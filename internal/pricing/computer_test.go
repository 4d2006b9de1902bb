package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePercent(t *testing.T) {
	snap := Snapshot{Price: 1000, Discount: 20, DiscountPrice: 800}

	p, err := Compute(snap, ChangeRule{Type: "percent", Value: 10})
	require.NoError(t, err)
	assert.Equal(t, 1100.0, p.NewPrice)
	assert.Equal(t, 20, p.NewDiscount)
	assert.Equal(t, 880.0, p.NewDiscountPrice)

	p, err = Compute(snap, ChangeRule{Type: "percent", Value: -15})
	require.NoError(t, err)
	assert.Equal(t, 850.0, p.NewPrice)
}

func TestComputeFixedDelta(t *testing.T) {
	p, err := Compute(Snapshot{Price: 500}, ChangeRule{Type: "fixed_delta", Value: 49.6})
	require.NoError(t, err)
	assert.Equal(t, 550.0, p.NewPrice, "prices round to whole rubles")
}

func TestComputeTargetPrice(t *testing.T) {
	p, err := Compute(Snapshot{Price: 500, Discount: 10}, ChangeRule{Type: "target_price", Value: 777})
	require.NoError(t, err)
	assert.Equal(t, 777.0, p.NewPrice)
	assert.Equal(t, 699.0, p.NewDiscountPrice)
}

func TestComputeFormula(t *testing.T) {
	snap := Snapshot{Price: 1000, Discount: 20, DiscountPrice: 800}

	p, err := Compute(snap, ChangeRule{Type: "formula", Formula: "max(price * 0.9, discount_price + 50)"})
	require.NoError(t, err)
	assert.Equal(t, 900.0, p.NewPrice)

	_, err = Compute(snap, ChangeRule{Type: "formula", Formula: "price * unknown_var"})
	var ferr *FormulaError
	require.ErrorAs(t, err, &ferr)
}

func TestComputeDiscountOverride(t *testing.T) {
	newDiscount := 30
	p, err := Compute(Snapshot{Price: 1000, Discount: 20}, ChangeRule{Type: "percent", Value: 0, NewDiscount: &newDiscount})
	require.NoError(t, err)
	assert.Equal(t, 30, p.NewDiscount)
	assert.Equal(t, 700.0, p.NewDiscountPrice)
}

func TestComputeNonPositivePrice(t *testing.T) {
	tests := []struct {
		name string
		rule ChangeRule
	}{
		{"percent wipes out price", ChangeRule{Type: "percent", Value: -100}},
		{"delta below zero", ChangeRule{Type: "fixed_delta", Value: -600}},
		{"target zero", ChangeRule{Type: "target_price", Value: 0}},
		{"rounds down to zero", ChangeRule{Type: "target_price", Value: 0.4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(Snapshot{Price: 500}, tt.rule)
			var perr *InvalidPriceError
			require.ErrorAs(t, err, &perr)
		})
	}
}

func TestComputeUnknownType(t *testing.T) {
	_, err := Compute(Snapshot{Price: 500}, ChangeRule{Type: "bogus"})
	assert.Error(t, err)
}
