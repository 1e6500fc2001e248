package risk

// Aggregate sums the scores of the raised flags and clamps the total to
// [0, MaxRiskScore].
func Aggregate(details map[Signal]FlagDetail) float64 {
	total := 0.0
	for _, s := range evaluationOrder {
		if d := details[s]; d.Raised {
			total += d.Score
		}
	}
	return clampScore(total)
}

func clampScore(score float64) float64 {
	if score > MaxRiskScore {
		return MaxRiskScore
	}
	if score < 0 || !finite(score) {
		return 0
	}
	return score
}

// Classify maps a score to its tier. The config must satisfy
// MediumRiskThreshold <= HighRiskThreshold, which Validate enforces.
func Classify(score float64, cfg Config) RiskLevel {
	switch {
	case score >= cfg.HighRiskThreshold:
		return RiskLevelHigh
	case score >= cfg.MediumRiskThreshold:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}
