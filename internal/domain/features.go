package domain

// FeatureKind describes the semantic role of a feature column so the
// schema is a typed declaration rather than string-prefix branching.
type FeatureKind string

const (
	FeatureNumeric    FeatureKind = "numeric"
	FeatureRatio      FeatureKind = "ratio"
	FeatureNormalized FeatureKind = "normalized"
	FeatureIndicator  FeatureKind = "indicator"
)

// FeatureSpec declares one column of the feature schema: its manifest
// name, semantic kind, and the value substituted when an input does
// not carry it.
type FeatureSpec struct {
	Name    string      `json:"name"`
	Kind    FeatureKind `json:"kind"`
	Default float64     `json:"default"`
}

// Canonical feature column names. The ordered manifest persisted with
// a trained bundle is built from these plus the dynamically derived
// drug indicator columns.
const (
	FeatVariantCount      = "variant_count"
	FeatHighRiskVariants  = "high_risk_variants"
	FeatRiskScore         = "risk_score"
	FeatDrugRiskRatio     = "drug_risk_ratio"
	FeatVariantDensity    = "variant_density"
	FeatUniqueGenes       = "unique_genes"
	FeatHighImpactVars    = "high_impact_variants"
	FeatPathogenicVars    = "pathogenic_variants"
	FeatDrugInteractions  = "drug_interactions"
	FeatHighSigInteract   = "high_significance_interactions"
	FeatVariantCountNorm  = "variant_count_norm"
	FeatHighRiskRatio     = "high_risk_ratio"
	FeatRiskScoreSquared  = "risk_score_squared"
	FeatInteractionDens   = "interaction_density"
)

// FeatureVector is a named numeric encoding of one patient-drug
// observation. Values are unordered until materialized against a
// manifest; Defaulted lists the names that were filled with their
// schema default rather than supplied, so audit can distinguish a
// silent zero-fill from a genuine zero.
type FeatureVector struct {
	Values    map[string]float64
	Defaulted []string
}

// NewFeatureVector creates an empty feature vector.
func NewFeatureVector() *FeatureVector {
	return &FeatureVector{Values: make(map[string]float64)}
}

// Set records a supplied feature value.
func (v *FeatureVector) Set(name string, value float64) {
	v.Values[name] = value
}

// SetDefault records a defaulted feature value and remembers that it
// was not supplied.
func (v *FeatureVector) SetDefault(name string, value float64) {
	v.Values[name] = value
	v.Defaulted = append(v.Defaulted, name)
}

// Materialize projects the vector onto an ordered manifest. Any name
// absent from the vector becomes 0; this is the inference-side half of
// the manifest contract.
func (v *FeatureVector) Materialize(manifest []string) []float64 {
	row := make([]float64, len(manifest))
	for i, name := range manifest {
		row[i] = v.Values[name]
	}
	return row
}

// FeaturePayload is the inference request feature block. Pointer
// fields distinguish "absent" from "zero" so absent fields can take
// their documented defaults and be reported as defaulted.
type FeaturePayload struct {
	VariantCount        *float64 `json:"variant_count,omitempty"`
	HighRiskVariants    *float64 `json:"high_risk_variants,omitempty"`
	RiskScore           *float64 `json:"risk_score,omitempty"`
	DrugRiskRatio       *float64 `json:"drug_risk_ratio,omitempty"`
	VariantDensity      *float64 `json:"variant_density,omitempty"`
	UniqueGenes         *float64 `json:"unique_genes,omitempty"`
	HighImpactVariants  *float64 `json:"high_impact_variants,omitempty"`
	PathogenicVariants  *float64 `json:"pathogenic_variants,omitempty"`
	DrugInteractions    *float64 `json:"drug_interactions,omitempty"`
	HighSigInteractions *float64 `json:"high_significance_interactions,omitempty"`
}

// payloadField binds one payload pointer to its column name, default,
// and valid range.
type payloadField struct {
	name     string
	value    *float64
	fallback float64
	min      float64
	max      float64
}

func (p *FeaturePayload) fields() []payloadField {
	const unbounded = -1
	return []payloadField{
		{FeatVariantCount, p.VariantCount, 0, 0, unbounded},
		{FeatHighRiskVariants, p.HighRiskVariants, 0, 0, unbounded},
		{FeatRiskScore, p.RiskScore, 0.5, 0, 1},
		{FeatDrugRiskRatio, p.DrugRiskRatio, 0, 0, unbounded},
		{FeatVariantDensity, p.VariantDensity, 0, 0, unbounded},
		{FeatUniqueGenes, p.UniqueGenes, 0, 0, unbounded},
		{FeatHighImpactVars, p.HighImpactVariants, 0, 0, unbounded},
		{FeatPathogenicVars, p.PathogenicVariants, 0, 0, unbounded},
		{FeatDrugInteractions, p.DrugInteractions, 0, 0, unbounded},
		{FeatHighSigInteract, p.HighSigInteractions, 0, 0, unbounded},
	}
}

// Validate rejects out-of-range values. Absent fields are valid; they
// default during ToVector.
func (p *FeaturePayload) Validate() error {
	for _, f := range p.fields() {
		if f.value == nil {
			continue
		}
		v := *f.value
		if v < f.min {
			return NewValidationError(f.name, "must be non-negative", v)
		}
		if f.max >= 0 && v > f.max {
			return NewValidationError(f.name, "must not exceed 1.0", v)
		}
	}
	return nil
}

// ToVector resolves the payload into a feature vector, applying the
// documented defaults for absent fields and recording them.
func (p *FeaturePayload) ToVector() *FeatureVector {
	vec := NewFeatureVector()
	for _, f := range p.fields() {
		if f.value != nil {
			vec.Set(f.name, *f.value)
		} else {
			vec.SetDefault(f.name, f.fallback)
		}
	}
	return vec
}
