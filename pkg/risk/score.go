// Package risk scores a loan request from declared revenue.
package risk

// AnnualizationFactor turns a monthly revenue figure into a yearly one.
const AnnualizationFactor = 12

// Scores, best to worst.
const (
	ScoreExcellent = 98
	ScoreGood      = 90
	ScoreFair      = 80
	ScoreBase      = 70
)

// Score maps monthly revenue against the requested amount to a discrete
// score. Bands are strict: a ratio of exactly 5 scores ScoreGood.
// requestedAmount must be positive.
func Score(estimatedRevenue, requestedAmount float64) int {
	ratio := (estimatedRevenue * AnnualizationFactor) / requestedAmount
	switch {
	case ratio > 5:
		return ScoreExcellent
	case ratio > 3:
		return ScoreGood
	case ratio > 1.5:
		return ScoreFair
	default:
		return ScoreBase
	}
}
