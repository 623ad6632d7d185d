package features

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/drug-risk-ml-server/internal/domain"
)

// Engineer turns raw warehouse records into a training corpus: a
// feature matrix, binary labels, and the schema the matrix was built
// against.
type Engineer struct {
	topDrugs int
	log      *logrus.Logger
}

// NewEngineer creates a feature engineer. topDrugs caps the drug
// identity vocabulary at the N most frequent drugs in the corpus.
func NewEngineer(topDrugs int, logger *logrus.Logger) *Engineer {
	if topDrugs <= 0 {
		topDrugs = 10
	}
	return &Engineer{
		topDrugs: topDrugs,
		log:      logger,
	}
}

// Corpus is the engineered training set. Rows align with Labels; the
// schema records the column manifest and the corpus constants that
// inference must reuse.
type Corpus struct {
	Matrix [][]float64
	Labels []int
	Schema *Schema
}

// variantAggregate holds per-patient counts rolled up from variant rows.
type variantAggregate struct {
	genes        map[string]struct{}
	highImpact   float64
	pathogenic   float64
	interactions float64
	highSig      float64
}

// geneInteraction holds per-gene counts from the interaction reference
// table: distinct drugs and high-significance rows.
type geneInteraction struct {
	drugs   map[string]struct{}
	highSig float64
}

// BuildCorpus engineers the full training corpus. Prescriptions drive
// the rows; variant and interaction data enrich them and default to 0
// when a patient has no matching rows.
func (e *Engineer) BuildCorpus(
	prescriptions []domain.PrescriptionRecord,
	variants []domain.VariantRecord,
	interactions []domain.InteractionRecord,
) (*Corpus, error) {
	if len(prescriptions) == 0 {
		return nil, domain.NewPipelineError(domain.ErrKindDataUnavailable, "build_corpus",
			nil, "no labeled prescription records available")
	}
	for i, rec := range prescriptions {
		if rec.UploadID == "" || rec.DrugName == "" {
			return nil, domain.NewPipelineError(domain.ErrKindInvalidInput, "build_corpus",
				nil, fmt.Sprintf("prescription row %d is missing upload_id or drug_name", i))
		}
	}

	aggregates := e.aggregateVariants(variants, interactions)
	vocabulary := e.drugVocabulary(prescriptions)
	maxVariantCount := maxVariantCount(prescriptions)
	schema := NewSchema(vocabulary, maxVariantCount)
	columns := schema.Columns()

	matrix := make([][]float64, 0, len(prescriptions))
	for _, rec := range prescriptions {
		vec := domain.NewFeatureVector()
		variantCount := float64(rec.VariantCount)
		highRisk := float64(rec.HighRiskVariants)

		denom := variantCount
		if denom < 1 {
			denom = 1
		}

		vec.Set(domain.FeatVariantCount, variantCount)
		vec.Set(domain.FeatHighRiskVariants, highRisk)
		vec.Set(domain.FeatRiskScore, rec.RiskScore)
		vec.Set(domain.FeatDrugRiskRatio, highRisk/denom)
		vec.Set(domain.FeatVariantDensity, variantCount/1000)

		if agg, ok := aggregates[rec.UploadID]; ok {
			vec.Set(domain.FeatUniqueGenes, float64(len(agg.genes)))
			vec.Set(domain.FeatHighImpactVars, agg.highImpact)
			vec.Set(domain.FeatPathogenicVars, agg.pathogenic)
			vec.Set(domain.FeatDrugInteractions, agg.interactions)
			vec.Set(domain.FeatHighSigInteract, agg.highSig)
		} else {
			vec.Set(domain.FeatUniqueGenes, 0)
			vec.Set(domain.FeatHighImpactVars, 0)
			vec.Set(domain.FeatPathogenicVars, 0)
			vec.Set(domain.FeatDrugInteractions, 0)
			vec.Set(domain.FeatHighSigInteract, 0)
		}

		schema.AddDerived(vec)
		schema.EncodeDrug(vec, rec.DrugName)
		matrix = append(matrix, vec.Materialize(columns))
	}

	labels := buildLabels(prescriptions)

	e.log.WithFields(logrus.Fields{
		"rows":              len(matrix),
		"columns":           len(columns),
		"drug_vocabulary":   len(vocabulary),
		"max_variant_count": maxVariantCount,
	}).Info("Training corpus engineered")

	return &Corpus{
		Matrix: matrix,
		Labels: labels,
		Schema: schema,
	}, nil
}

// aggregateVariants groups variant rows per patient and folds in the
// per-gene interaction reference counts for each variant's gene.
func (e *Engineer) aggregateVariants(
	variants []domain.VariantRecord,
	interactions []domain.InteractionRecord,
) map[string]*variantAggregate {
	byGene := make(map[string]*geneInteraction)
	for _, rec := range interactions {
		gi, ok := byGene[rec.Gene]
		if !ok {
			gi = &geneInteraction{drugs: make(map[string]struct{})}
			byGene[rec.Gene] = gi
		}
		if rec.Drugs != "" {
			gi.drugs[rec.Drugs] = struct{}{}
		}
		if rec.Significance == domain.InteractionSigHigh {
			gi.highSig++
		}
	}

	aggregates := make(map[string]*variantAggregate)
	for _, rec := range variants {
		agg, ok := aggregates[rec.UploadID]
		if !ok {
			agg = &variantAggregate{genes: make(map[string]struct{})}
			aggregates[rec.UploadID] = agg
		}
		agg.genes[rec.Gene] = struct{}{}
		if rec.Impact == domain.ImpactHigh {
			agg.highImpact++
		}
		if rec.ClinicalSignificance == domain.SignificancePathogenic {
			agg.pathogenic++
		}
		if gi, ok := byGene[rec.Gene]; ok {
			agg.interactions += float64(len(gi.drugs))
			agg.highSig += gi.highSig
		}
	}
	return aggregates
}

// drugVocabulary returns the top-N most frequent normalized drug
// names, most frequent first; frequency ties break alphabetically so
// the vocabulary is deterministic across runs.
func (e *Engineer) drugVocabulary(prescriptions []domain.PrescriptionRecord) []string {
	counts := make(map[string]int)
	for _, rec := range prescriptions {
		counts[NormalizeDrugName(rec.DrugName)]++
	}

	drugs := make([]string, 0, len(counts))
	for drug := range counts {
		drugs = append(drugs, drug)
	}
	sort.Slice(drugs, func(i, j int) bool {
		if counts[drugs[i]] != counts[drugs[j]] {
			return counts[drugs[i]] > counts[drugs[j]]
		}
		return drugs[i] < drugs[j]
	})

	if len(drugs) > e.topDrugs {
		drugs = drugs[:e.topDrugs]
	}
	return drugs
}

func maxVariantCount(prescriptions []domain.PrescriptionRecord) float64 {
	max := 0.0
	for _, rec := range prescriptions {
		if v := float64(rec.VariantCount); v > max {
			max = v
		}
	}
	return max
}

// buildLabels binarizes clinical outcomes. When every row carries the
// same outcome the binary target is degenerate, so labeling falls back
// to splitting on the 0.6 quantile of risk_score.
func buildLabels(prescriptions []domain.PrescriptionRecord) []int {
	labels := make([]int, len(prescriptions))

	degenerate := true
	for i := 1; i < len(prescriptions); i++ {
		if prescriptions[i].ClinicalOutcome != prescriptions[0].ClinicalOutcome {
			degenerate = false
			break
		}
	}

	if degenerate && len(prescriptions) > 1 {
		threshold := riskScoreQuantile(prescriptions, 0.6)
		for i, rec := range prescriptions {
			if rec.RiskScore > threshold {
				labels[i] = 1
			}
		}
		return labels
	}

	for i, rec := range prescriptions {
		if rec.ClinicalOutcome == domain.OutcomeHighRisk {
			labels[i] = 1
		}
	}
	return labels
}

// riskScoreQuantile computes the q-quantile of risk scores using
// linear interpolation between order statistics.
func riskScoreQuantile(prescriptions []domain.PrescriptionRecord, q float64) float64 {
	scores := make([]float64, len(prescriptions))
	for i, rec := range prescriptions {
		scores[i] = rec.RiskScore
	}
	sort.Float64s(scores)

	pos := q * float64(len(scores)-1)
	lower := int(pos)
	if lower >= len(scores)-1 {
		return scores[len(scores)-1]
	}
	frac := pos - float64(lower)
	return scores[lower] + frac*(scores[lower+1]-scores[lower])
}
