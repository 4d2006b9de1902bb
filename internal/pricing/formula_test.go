package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalFormula(t *testing.T, formula string, vars map[string]float64) float64 {
	t.Helper()
	expr, err := ParseFormula(formula)
	require.NoError(t, err)
	v, err := expr.Eval(vars)
	require.NoError(t, err)
	return v
}

func TestParseFormulaEval(t *testing.T) {
	vars := map[string]float64{
		"price":          1000,
		"discount":       20,
		"discount_price": 800,
	}

	tests := []struct {
		formula  string
		expected float64
	}{
		{"price * 1.1", 1100},
		{"price + 50", 1050},
		{"price - 50", 950},
		{"price / 2", 500},
		{"price * (1 + discount / 100)", 1200},
		{"discount_price + 10", 810},
		{"min(price, 900)", 900},
		{"max(price * 0.5, 600)", 600},
		{"abs(-price)", 1000},
		{"round(price * 1.015)", 1015},
		{"-price + 1500", 500},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"min(max(price, 500), 1200)", 1000},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			assert.InDelta(t, tt.expected, evalFormula(t, tt.formula, vars), 0.001)
		})
	}
}

func TestParseFormulaErrors(t *testing.T) {
	tests := []struct {
		name    string
		formula string
	}{
		{"empty formula", ""},
		{"unknown identifier", "price * qty"},
		{"unknown function", "sqrt(price)"},
		{"missing closing paren", "(price + 1"},
		{"dangling operator", "price +"},
		{"trailing garbage", "price 1"},
		{"wrong arity", "min(price)"},
		{"attempted call syntax", "__import__(1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFormula(tt.formula)
			require.Error(t, err)
			var ferr *FormulaError
			assert.ErrorAs(t, err, &ferr)
		})
	}
}

func TestEvalDivisionByZero(t *testing.T) {
	expr, err := ParseFormula("price / discount")
	require.NoError(t, err)

	_, err = expr.Eval(map[string]float64{"price": 100, "discount": 0})
	require.Error(t, err)
	var ferr *FormulaError
	require.ErrorAs(t, err, &ferr)
	assert.Contains(t, ferr.Reason, "division by zero")
}
