package payouts

import "math"

// NormalizeCommissionRate converts a stored commission figure into a fraction in [0,1].
// Values above 1 are percentages.
func NormalizeCommissionRate(raw *float64) float64 {
	if raw == nil {
		return 0
	}
	value := *raw
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0
	}
	if value > 1 {
		value = value / 100
	}
	if value > 1 {
		return 1
	}
	return value
}
