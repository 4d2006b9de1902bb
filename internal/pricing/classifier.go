// Package pricing contains the pure domain logic of the safe price change
// engine: risk classification, change computation and the restricted formula
// evaluator. Nothing in this package performs I/O.
package pricing

import "math"

// Safety tiers for a proposed price change.
const (
	SafetySafe      = "safe"
	SafetyWarning   = "warning"
	SafetyDangerous = "dangerous"
)

// Classify assigns a safety tier to a proposed price change based on the
// relative magnitude of the change. Boundary values are inclusive on the
// cheaper tier: a change of exactly safePct is still safe. A non-positive old
// price makes the relative change undefined and is always dangerous.
func Classify(oldPrice, newPrice, safePct, warnPct float64) string {
	if oldPrice <= 0 {
		return SafetyDangerous
	}

	pct := math.Abs(newPrice-oldPrice) / oldPrice * 100

	switch {
	case pct <= safePct:
		return SafetySafe
	case pct <= warnPct:
		return SafetyWarning
	default:
		return SafetyDangerous
	}
}

// ChangePercent returns the signed relative change in percent. When the old
// price is non-positive the percent is undefined; by convention it reports
// 100 for any increase from zero and 0 otherwise, matching how such items are
// surfaced (they classify dangerous regardless).
func ChangePercent(oldPrice, newPrice float64) float64 {
	if oldPrice > 0 {
		return (newPrice - oldPrice) / oldPrice * 100
	}
	if newPrice > 0 {
		return 100
	}
	return 0
}
