package service

import (
	"github.com/drug-risk-ml-server/internal/domain"
)

// Key factor thresholds. Each check is independent; every factor that
// matches is reported, in declaration order.
const (
	factorHighRiskVariants = 5
	factorPathogenicVars   = 2
	factorDrugInteractions = 10
)

var recommendationsByRisk = map[domain.RiskLevel][]string{
	domain.RISK_HIGH: {
		"Consider alternative medications",
		"Monitor closely for adverse reactions",
		"Start with lower dosage",
		"Consult with pharmacogenomics specialist",
	},
	domain.RISK_MODERATE: {
		"Standard dosing with monitoring",
		"Watch for early signs of adverse reactions",
		"Consider genetic testing for specific genes",
	},
	domain.RISK_LOW: {
		"Standard dosing protocol",
		"Routine monitoring",
		"Consider standard care guidelines",
	},
}

// Explainer produces the human-readable companion to a prediction.
type Explainer struct{}

// NewExplainer creates an explainer.
func NewExplainer() *Explainer {
	return &Explainer{}
}

// Explain builds key factors from independent threshold checks on the
// feature vector plus a catch-all on the overall risk level, and looks
// up the fixed recommendation list for the tier.
func (e *Explainer) Explain(vec *domain.FeatureVector, result *domain.PredictionResult) *domain.Explanation {
	var factors []string

	if vec.Values[domain.FeatHighRiskVariants] > factorHighRiskVariants {
		factors = append(factors, "High number of high-risk genetic variants")
	}
	if vec.Values[domain.FeatPathogenicVars] > factorPathogenicVars {
		factors = append(factors, "Multiple pathogenic variants detected")
	}
	if vec.Values[domain.FeatDrugInteractions] > factorDrugInteractions {
		factors = append(factors, "Significant drug-gene interactions")
	}
	switch result.RiskLevel {
	case domain.RISK_HIGH:
		factors = append(factors, "Overall high genetic risk profile")
	case domain.RISK_LOW:
		factors = append(factors, "Favorable genetic profile")
	}

	return &domain.Explanation{
		RiskScore:       result.Probability,
		RiskLevel:       result.RiskLevel,
		Confidence:      result.Confidence,
		KeyFactors:      factors,
		Recommendations: recommendationsByRisk[result.RiskLevel],
	}
}
