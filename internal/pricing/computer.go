package pricing

import (
	"fmt"
	"math"
)

// Snapshot is a product's current pricing state at batch-build time.
type Snapshot struct {
	Price         float64
	Discount      int
	DiscountPrice float64
}

// Proposal is the computed outcome of applying a change rule to a snapshot.
type Proposal struct {
	NewPrice         float64
	NewDiscount      int
	NewDiscountPrice float64
}

// ChangeRule describes how to derive a new price from a snapshot.
type ChangeRule struct {
	Type    string // percent, fixed_delta, target_price, formula
	Value   float64
	Formula string
	// NewDiscount optionally replaces the product's discount as part of the
	// same rule. Nil keeps the current discount.
	NewDiscount *int
}

// InvalidPriceError indicates a change rule produced a non-positive price.
type InvalidPriceError struct {
	Price float64
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("computed price %.2f is not positive", e.Price)
}

// Compute applies a change rule to a snapshot and returns the proposed new
// price/discount pair. It is deterministic and has no side effects. Prices
// are rounded to whole rubles since the marketplace rejects fractional
// prices. A resulting price of zero or below is an *InvalidPriceError; a
// malformed or unsafe formula is a *FormulaError.
func Compute(snap Snapshot, rule ChangeRule) (Proposal, error) {
	var newPrice float64

	switch rule.Type {
	case "percent":
		newPrice = snap.Price * (1 + rule.Value/100)
	case "fixed_delta":
		newPrice = snap.Price + rule.Value
	case "target_price":
		newPrice = rule.Value
	case "formula":
		expr, err := ParseFormula(rule.Formula)
		if err != nil {
			return Proposal{}, err
		}
		newPrice, err = expr.Eval(map[string]float64{
			"price":          snap.Price,
			"discount":       float64(snap.Discount),
			"discount_price": snap.DiscountPrice,
		})
		if err != nil {
			return Proposal{}, err
		}
	default:
		return Proposal{}, fmt.Errorf("unknown change type %q", rule.Type)
	}

	newPrice = math.Round(newPrice)
	if newPrice <= 0 {
		return Proposal{}, &InvalidPriceError{Price: newPrice}
	}

	discount := snap.Discount
	if rule.NewDiscount != nil {
		discount = *rule.NewDiscount
	}

	return Proposal{
		NewPrice:         newPrice,
		NewDiscount:      discount,
		NewDiscountPrice: math.Round(newPrice * (1 - float64(discount)/100)),
	}, nil
}
