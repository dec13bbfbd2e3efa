package helpers

import "github.com/shopspring/decimal"

// RoundHalfUp rounds a value half-up to the given number of digits.
// All persisted numeric fields go through this so a re-run over identical
// inputs reproduces bit-identical output tables.
func RoundHalfUp(value float64, digits int) float64 {
	rounded, _ := decimal.NewFromFloat(value).Round(int32(digits)).Float64()
	return rounded
}

// RoundHalfUpString formats a value half-up to the given number of digits
// with a fixed digit count, for stable payloads and log lines.
func RoundHalfUpString(value float64, digits int) string {
	return decimal.NewFromFloat(value).StringFixed(int32(digits))
}
