// Package service contains the inference-side business logic: risk
// stratification, prediction explanation, and the predictor that runs
// loaded model bundles against request payloads.
package service

import (
	"github.com/drug-risk-ml-server/internal/domain"
)

// RiskScorer maps a calibrated probability to a risk tier and a
// confidence band. It is a pure function of the probability and the
// configured thresholds.
type RiskScorer struct {
	cfg *domain.RiskConfig
}

// NewRiskScorer creates a scorer over the configured thresholds.
func NewRiskScorer(cfg *domain.RiskConfig) *RiskScorer {
	return &RiskScorer{cfg: cfg}
}

// RiskLevel assigns the tier. The threshold value itself belongs to
// the upper tier: probability 0.7 is HIGH, 0.4 is MODERATE.
func (s *RiskScorer) RiskLevel(probability float64) domain.RiskLevel {
	switch {
	case probability >= s.cfg.HighThreshold:
		return domain.RISK_HIGH
	case probability >= s.cfg.ModerateThreshold:
		return domain.RISK_MODERATE
	default:
		return domain.RISK_LOW
	}
}

// Confidence assigns the band. Probabilities near either extreme are
// decisive; probabilities near 0.5 are not. Band edges are inclusive:
// 0.8 and 0.2 are HIGH, 0.6 and 0.4 are MEDIUM.
func (s *RiskScorer) Confidence(probability float64) domain.ConfidenceBand {
	switch {
	case probability >= s.cfg.ConfidenceHighUpper || probability <= s.cfg.ConfidenceHighLower:
		return domain.CONFIDENCE_HIGH
	case probability >= s.cfg.ConfidenceMedUpper || probability <= s.cfg.ConfidenceMedLower:
		return domain.CONFIDENCE_MEDIUM
	default:
		return domain.CONFIDENCE_LOW
	}
}

// Score applies both mappings.
func (s *RiskScorer) Score(probability float64) (domain.RiskLevel, domain.ConfidenceBand) {
	return s.RiskLevel(probability), s.Confidence(probability)
}
