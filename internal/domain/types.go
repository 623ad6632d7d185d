// Package domain contains core business entities and types for
// pharmacogenomic drug-risk assessment: raw warehouse records, the
// feature-vector contract shared by training and inference, risk
// stratification enums, and the error taxonomy used across the
// pipeline.
package domain

// RiskLevel represents the discretized risk tier derived from a
// calibrated probability. Tier assignment happens at fixed clinical
// cutoffs, so boundary semantics matter: the cutoff value itself
// belongs to the upper tier.
type RiskLevel string

const (
	RISK_HIGH     RiskLevel = "HIGH"
	RISK_MODERATE RiskLevel = "MODERATE"
	RISK_LOW      RiskLevel = "LOW"
)

// ConfidenceBand represents how decisive the predicted probability is.
// Probabilities near 0 or 1 are high confidence; probabilities near
// 0.5 are low confidence.
type ConfidenceBand string

const (
	CONFIDENCE_HIGH   ConfidenceBand = "HIGH"
	CONFIDENCE_MEDIUM ConfidenceBand = "MEDIUM"
	CONFIDENCE_LOW    ConfidenceBand = "LOW"
)

// ModelMode selects which servable artifact answers an inference
// request.
type ModelMode string

const (
	MODE_ENSEMBLE ModelMode = "ensemble"
	MODE_SINGLE   ModelMode = "single_model"
	MODE_BOTH     ModelMode = "both"
	MODE_DEFAULT  ModelMode = "default"
)

// PipelineState tracks the ensemble build lifecycle. Transitions are
// strictly sequential; skipping a state is a programming error and is
// rejected.
type PipelineState string

const (
	STATE_UNFITTED          PipelineState = "UNFITTED"
	STATE_CANDIDATES_SCORED PipelineState = "CANDIDATES_SCORED"
	STATE_ENSEMBLE_BUILT    PipelineState = "ENSEMBLE_BUILT"
	STATE_TRAINED           PipelineState = "TRAINED"
	STATE_EVALUATED         PipelineState = "EVALUATED"
	STATE_PERSISTED         PipelineState = "PERSISTED"
)

// IsValid validates the risk level. Only validated tiers may reach
// clinical consumers.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RISK_HIGH, RISK_MODERATE, RISK_LOW:
		return true
	default:
		return false
	}
}

// String returns the string representation of the risk level.
func (r RiskLevel) String() string {
	return string(r)
}

// IsValid validates the confidence band.
func (c ConfidenceBand) IsValid() bool {
	switch c {
	case CONFIDENCE_HIGH, CONFIDENCE_MEDIUM, CONFIDENCE_LOW:
		return true
	default:
		return false
	}
}

// String returns the string representation of the confidence band.
func (c ConfidenceBand) String() string {
	return string(c)
}

// IsValid validates the model mode. MODE_DEFAULT is accepted at the
// boundary and resolved to MODE_ENSEMBLE before inference.
func (m ModelMode) IsValid() bool {
	switch m {
	case MODE_ENSEMBLE, MODE_SINGLE, MODE_BOTH, MODE_DEFAULT:
		return true
	default:
		return false
	}
}

// Resolve maps the default mode to its concrete inference path.
func (m ModelMode) Resolve() ModelMode {
	if m == MODE_DEFAULT || m == "" {
		return MODE_ENSEMBLE
	}
	return m
}

// String returns the string representation of the model mode.
func (m ModelMode) String() string {
	return string(m)
}

// next returns the state that must follow s in the build lifecycle.
func (s PipelineState) next() PipelineState {
	switch s {
	case STATE_UNFITTED:
		return STATE_CANDIDATES_SCORED
	case STATE_CANDIDATES_SCORED:
		return STATE_ENSEMBLE_BUILT
	case STATE_ENSEMBLE_BUILT:
		return STATE_TRAINED
	case STATE_TRAINED:
		return STATE_EVALUATED
	case STATE_EVALUATED:
		return STATE_PERSISTED
	default:
		return ""
	}
}

// CanTransitionTo reports whether moving from s to target respects the
// sequential lifecycle.
func (s PipelineState) CanTransitionTo(target PipelineState) bool {
	return s.next() == target && target != ""
}
