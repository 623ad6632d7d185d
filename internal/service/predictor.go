package service

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/drug-risk-ml-server/internal/artifacts"
	"github.com/drug-risk-ml-server/internal/domain"
	"github.com/drug-risk-ml-server/internal/features"
	"github.com/drug-risk-ml-server/internal/ml"
)

// Predictor serves predictions from one loaded artifact bundle. The
// bundle is immutable after construction; a new training run is served
// by constructing a new Predictor, never by mutating this one.
type Predictor struct {
	ensemble  *ml.Ensemble
	single    ml.Classifier
	scaler    *features.Scaler
	schema    *features.Schema
	scorer    *RiskScorer
	explainer *Explainer
	metadata  domain.BundleMetadata
	log       *logrus.Logger
}

// NewPredictor builds a predictor from a loaded bundle.
func NewPredictor(bundle *artifacts.Bundle, riskCfg *domain.RiskConfig, logger *logrus.Logger) (*Predictor, error) {
	if bundle == nil || len(bundle.Members) == 0 || bundle.Single == nil || bundle.Scaler == nil {
		return nil, domain.ErrBundleNotLoaded
	}

	schema := features.NewSchema(bundle.Metadata.DrugVocabulary, bundle.Metadata.MaxVariantCount)

	return &Predictor{
		ensemble:  ml.Restore(bundle.Members, logger),
		single:    bundle.Single,
		scaler:    bundle.Scaler,
		schema:    schema,
		scorer:    NewRiskScorer(riskCfg),
		explainer: NewExplainer(),
		metadata:  bundle.Metadata,
		log:       logger,
	}, nil
}

// Metadata returns the loaded bundle's metadata.
func (p *Predictor) Metadata() domain.BundleMetadata {
	return p.metadata
}

// row validates and materializes the payload into a scaled feature
// row, returning the names of defaulted fields alongside.
func (p *Predictor) row(payload *domain.FeaturePayload, drugName string) ([]float64, []string, error) {
	if err := payload.Validate(); err != nil {
		return nil, nil, err
	}
	raw, defaulted := p.schema.Row(payload, drugName)
	return p.scaler.TransformRow(raw), defaulted, nil
}

func (p *Predictor) resultFrom(probability float64, modelType string) *domain.PredictionResult {
	riskLevel, confidence := p.scorer.Score(probability)
	prediction := 0
	if probability >= 0.5 {
		prediction = 1
	}
	return &domain.PredictionResult{
		Prediction:  prediction,
		Probability: probability,
		RiskLevel:   riskLevel,
		Confidence:  confidence,
		ModelType:   modelType,
	}
}

func (p *Predictor) predictEnsemble(row []float64) *domain.PredictionResult {
	return p.resultFrom(p.ensemble.PredictProba(row), "ensemble")
}

func (p *Predictor) predictSingle(row []float64) *domain.PredictionResult {
	result := p.resultFrom(p.single.PredictProba(row), p.single.Name())
	if reporter, ok := p.single.(ml.ImportanceReporter); ok {
		result.FeatureImportance = reporter.FeatureImportances()
	}
	return result
}

// Predict runs one inference path. Mode "both" is not valid here; use
// PredictBoth. Returns the result and the defaulted feature names.
func (p *Predictor) Predict(payload *domain.FeaturePayload, drugName string, mode domain.ModelMode) (*domain.PredictionResult, []string, error) {
	row, defaulted, err := p.row(payload, drugName)
	if err != nil {
		return nil, nil, err
	}

	switch mode.Resolve() {
	case domain.MODE_ENSEMBLE:
		return p.predictEnsemble(row), defaulted, nil
	case domain.MODE_SINGLE:
		return p.predictSingle(row), defaulted, nil
	default:
		return nil, nil, domain.ErrInvalidMode
	}
}

// PredictBoth runs both servable models on the same row and reports
// whether their hard predictions agree plus the absolute probability
// difference. The diagnostics never alter either prediction.
func (p *Predictor) PredictBoth(payload *domain.FeaturePayload, drugName string) (*domain.CombinedPrediction, []string, error) {
	row, defaulted, err := p.row(payload, drugName)
	if err != nil {
		return nil, nil, err
	}

	ensemble := p.predictEnsemble(row)
	single := p.predictSingle(row)

	return &domain.CombinedPrediction{
		Ensemble:              ensemble,
		SingleModel:           single,
		Agreement:             ensemble.Prediction == single.Prediction,
		ProbabilityDifference: math.Abs(ensemble.Probability - single.Probability),
	}, defaulted, nil
}

// Explain produces the explanation for one inference path. Factors
// are checked against the supplied payload values after defaulting,
// not against the scaled row.
func (p *Predictor) Explain(payload *domain.FeaturePayload, drugName string, mode domain.ModelMode) (*domain.Explanation, error) {
	result, _, err := p.Predict(payload, drugName, mode)
	if err != nil {
		return nil, err
	}
	return p.explainer.Explain(payload.ToVector(), result), nil
}
