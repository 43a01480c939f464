// Package scoring holds the deal-math derivations: MAO, spread and the
// score/color/label threshold tables. Everything here is a pure function so
// the cache can recompute optimistic numbers without touching the network.
package scoring

import "math"

const (
	arvFactor   = 0.70
	dealBuffer  = 5000
	maxScore    = 10
	worstSpread = 100
)

// MAO is the maximum allowable offer for a deal:
// ARV x 0.70 minus the rehab estimate minus a fixed closing buffer.
func MAO(arv, rehab float64) float64 {
	return math.Round(arv*arvFactor - rehab - dealBuffer)
}

// SpreadPercent is the percentage gap between listing price and MAO.
// A listing at or below zero yields the worst possible spread.
func SpreadPercent(listingPrice, mao float64) float64 {
	if listingPrice <= 0 {
		return worstSpread
	}
	return math.Round((listingPrice - mao) / listingPrice * 100)
}

// ScoreFromSpread maps spread to a 0-10 lead score. Lower spread means the
// listing sits closer to (or under) the MAO, which is a better deal.
func ScoreFromSpread(spread float64) int {
	switch {
	case spread <= 15:
		return 10
	case spread <= 25:
		return 8
	case spread <= 40:
		return 6
	case spread <= 60:
		return 4
	default:
		return 2
	}
}

// SpreadColor buckets spread into the severity palette used by callers.
func SpreadColor(spread float64) string {
	switch {
	case spread <= 15:
		return "green"
	case spread <= 25:
		return "lightgreen"
	case spread <= 40:
		return "yellow"
	case spread <= 60:
		return "orange"
	default:
		return "red"
	}
}

// ScoreColor maps a 0-10 score to the same palette.
func ScoreColor(score int) string {
	switch {
	case score >= 9:
		return "green"
	case score >= 7:
		return "lightgreen"
	case score >= 5:
		return "yellow"
	case score >= 3:
		return "orange"
	default:
		return "red"
	}
}

// ScoreLabel renders a score as a short deal-quality label.
func ScoreLabel(score int) string {
	switch {
	case score >= 9:
		return "Hot Deal"
	case score >= 7:
		return "Strong"
	case score >= 5:
		return "Workable"
	case score >= 3:
		return "Thin"
	default:
		return "Pass"
	}
}

// ClampScore keeps an externally supplied score inside the 0-10 range.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > maxScore {
		return maxScore
	}
	return score
}
