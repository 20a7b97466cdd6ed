package model

// Risk level labels derived from stroke probability for display.
const (
	RiskHigh    = "High"
	RiskMedium  = "Medium"
	RiskLow     = "Low"
	RiskUnknown = "Unknown"
)

// Threshold policy, on the 0-100 probability scale. Documented here rather
// than buried in queries: >= 70 is High, >= 30 is Medium, below is Low.
const (
	HighRiskThreshold   = 70.0
	MediumRiskThreshold = 30.0
)

// RiskLevelFor derives the categorical risk label from a stroke probability
// percentage. Pure function; the only risk policy in the system.
func RiskLevelFor(probability float64) string {
	switch {
	case probability >= HighRiskThreshold:
		return RiskHigh
	case probability >= MediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// RecommendationFor maps a risk label to the advice text stored with a
// result.
func RecommendationFor(riskLevel string) string {
	switch riskLevel {
	case RiskHigh:
		return "Immediate medical attention recommended. Contact your healthcare provider."
	case RiskMedium:
		return "Schedule follow-up with doctor. Consider preventive measures."
	case RiskLow:
		return "Regular check-ups recommended. Maintain healthy lifestyle."
	default:
		return "Please consult with your healthcare provider."
	}
}
