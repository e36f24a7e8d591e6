package model

// RiskLevel classifies an FPD rate for display.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskWatch
	RiskHigh
)

// RiskThresholds are the rate boundaries, in percent, between risk levels.
type RiskThresholds struct {
	Watch float64
	High  float64
}

// DefaultRiskThresholds returns the stock boundaries.
func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{Watch: 8, High: 15}
}

// Classify returns the risk level for a rate.
func (t RiskThresholds) Classify(rate float64) RiskLevel {
	switch {
	case rate >= t.High:
		return RiskHigh
	case rate >= t.Watch:
		return RiskWatch
	}
	return RiskLow
}
