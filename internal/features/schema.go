// Package features builds the feature schema shared by training and
// inference: base numeric columns, derived columns, and drug identity
// indicators. The ordered column manifest persisted with a trained
// bundle is produced here, and inference rows are materialized against
// that manifest.
package features

import (
	"regexp"
	"strings"

	"github.com/drug-risk-ml-server/internal/domain"
)

const drugColumnPrefix = "drug_"

var drugNameSanitizer = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeDrugName canonicalizes a drug name for vocabulary lookups.
// Case and surrounding whitespace never distinguish drugs.
func NormalizeDrugName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// DrugColumn derives the indicator column name for a drug. The same
// derivation runs at training and inference time, so a request's drug
// name always maps back onto the column the encoder produced.
func DrugColumn(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	snake := drugNameSanitizer.ReplaceAllString(lowered, "_")
	return drugColumnPrefix + strings.Trim(snake, "_")
}

// baseSpecs returns the ten directly supplied feature columns, in
// manifest order.
func baseSpecs() []domain.FeatureSpec {
	return []domain.FeatureSpec{
		{Name: domain.FeatVariantCount, Kind: domain.FeatureNumeric, Default: 0},
		{Name: domain.FeatHighRiskVariants, Kind: domain.FeatureNumeric, Default: 0},
		{Name: domain.FeatRiskScore, Kind: domain.FeatureNumeric, Default: 0.5},
		{Name: domain.FeatDrugRiskRatio, Kind: domain.FeatureRatio, Default: 0},
		{Name: domain.FeatVariantDensity, Kind: domain.FeatureNormalized, Default: 0},
		{Name: domain.FeatUniqueGenes, Kind: domain.FeatureNumeric, Default: 0},
		{Name: domain.FeatHighImpactVars, Kind: domain.FeatureNumeric, Default: 0},
		{Name: domain.FeatPathogenicVars, Kind: domain.FeatureNumeric, Default: 0},
		{Name: domain.FeatDrugInteractions, Kind: domain.FeatureNumeric, Default: 0},
		{Name: domain.FeatHighSigInteract, Kind: domain.FeatureNumeric, Default: 0},
	}
}

// derivedSpecs returns the columns computed from the base columns.
func derivedSpecs() []domain.FeatureSpec {
	return []domain.FeatureSpec{
		{Name: domain.FeatVariantCountNorm, Kind: domain.FeatureNormalized, Default: 0},
		{Name: domain.FeatHighRiskRatio, Kind: domain.FeatureRatio, Default: 0},
		{Name: domain.FeatRiskScoreSquared, Kind: domain.FeatureNumeric, Default: 0},
		{Name: domain.FeatInteractionDens, Kind: domain.FeatureNormalized, Default: 0},
	}
}

// Schema is the full ordered feature schema for one trained bundle:
// base columns, derived columns, then one indicator column per
// vocabulary drug.
type Schema struct {
	Specs           []domain.FeatureSpec
	DrugVocabulary  []string
	MaxVariantCount float64
}

// NewSchema builds a schema for the given drug vocabulary. The
// vocabulary order is preserved so the manifest is deterministic.
// maxVariantCount is the corpus-wide maximum captured at training
// time; it drives the variant_count_norm column.
func NewSchema(drugVocabulary []string, maxVariantCount float64) *Schema {
	if maxVariantCount < 1 {
		maxVariantCount = 1
	}

	specs := append(baseSpecs(), derivedSpecs()...)
	for _, drug := range drugVocabulary {
		specs = append(specs, domain.FeatureSpec{
			Name:    DrugColumn(drug),
			Kind:    domain.FeatureIndicator,
			Default: 0,
		})
	}

	return &Schema{
		Specs:           specs,
		DrugVocabulary:  drugVocabulary,
		MaxVariantCount: maxVariantCount,
	}
}

// Columns returns the ordered column manifest.
func (s *Schema) Columns() []string {
	cols := make([]string, len(s.Specs))
	for i, spec := range s.Specs {
		cols[i] = spec.Name
	}
	return cols
}

// AddDerived computes the derived columns onto a vector that already
// carries the base columns. The formulas match training exactly; a
// drift here would silently skew every prediction.
func (s *Schema) AddDerived(vec *domain.FeatureVector) {
	variantCount := vec.Values[domain.FeatVariantCount]
	highRisk := vec.Values[domain.FeatHighRiskVariants]
	riskScore := vec.Values[domain.FeatRiskScore]
	interactions := vec.Values[domain.FeatDrugInteractions]

	denom := variantCount
	if denom < 1 {
		denom = 1
	}

	vec.Set(domain.FeatVariantCountNorm, variantCount/s.MaxVariantCount)
	vec.Set(domain.FeatHighRiskRatio, highRisk/denom)
	vec.Set(domain.FeatRiskScoreSquared, riskScore*riskScore)
	vec.Set(domain.FeatInteractionDens, interactions/denom)
}

// EncodeDrug sets the indicator column for the given drug if it is in
// the vocabulary. Out-of-vocabulary drugs leave all indicators zero;
// that is the documented behavior, not an error.
func (s *Schema) EncodeDrug(vec *domain.FeatureVector, drugName string) {
	normalized := NormalizeDrugName(drugName)
	for _, drug := range s.DrugVocabulary {
		if NormalizeDrugName(drug) == normalized {
			vec.Set(DrugColumn(drug), 1)
			return
		}
	}
}

// Row materializes an inference payload into an ordered feature row:
// payload values with defaults applied, derived columns computed, and
// the drug indicator set. Returns the row and the names of defaulted
// payload fields.
func (s *Schema) Row(payload *domain.FeaturePayload, drugName string) ([]float64, []string) {
	vec := payload.ToVector()
	s.AddDerived(vec)
	s.EncodeDrug(vec, drugName)
	return vec.Materialize(s.Columns()), vec.Defaulted
}
