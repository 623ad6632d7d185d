package domain

import (
	"time"
)

// Raw warehouse records. These are read-only training inputs sourced
// from the external store; the pipeline never writes them back.

// PrescriptionRecord is one (patient, drug) observation from the
// PATIENT_PRESCRIPTIONS table. ClinicalOutcome is empty for rows that
// have not been labeled yet; training queries filter those out.
type PrescriptionRecord struct {
	UploadID         string    `json:"upload_id"`
	DrugName         string    `json:"drug_name"`
	VariantCount     int       `json:"variant_count"`
	HighRiskVariants int       `json:"high_risk_variants"`
	RiskScore        float64   `json:"risk_score"`
	ClinicalOutcome  string    `json:"clinical_outcome,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// VariantRecord is one annotated variant row; many rows exist per
// upload and are aggregated per patient during feature engineering.
type VariantRecord struct {
	UploadID             string `json:"upload_id"`
	Gene                 string `json:"gene"`
	Impact               string `json:"impact"`
	VariantType          string `json:"variant_type"`
	ClinicalSignificance string `json:"clinical_significance"`
	DrugInteractions     string `json:"drug_interactions"`
}

// InteractionRecord is one row of the variant-drug interaction
// reference table, joined to variants on gene.
type InteractionRecord struct {
	VariantID        string `json:"variant_id"`
	Gene             string `json:"gene"`
	Drugs            string `json:"drugs"`
	Significance     string `json:"significance"`
	ClinicalEvidence string `json:"clinical_evidence"`
}

// Impact and significance values recognized during aggregation.
const (
	ImpactHigh              = "HIGH"
	SignificancePathogenic  = "Pathogenic"
	InteractionSigHigh      = "High"
	OutcomeHighRisk         = "HIGH_RISK"
)

// PredictionResult is the outcome of a single inference path.
type PredictionResult struct {
	Prediction        int            `json:"prediction"`
	Probability       float64        `json:"probability"`
	RiskLevel         RiskLevel      `json:"risk_level"`
	Confidence        ConfidenceBand `json:"confidence"`
	ModelType         string         `json:"model_type"`
	FeatureImportance []float64      `json:"feature_importance,omitempty"`
}

// CombinedPrediction is returned for "both" mode. Agreement and the
// probability difference are auxiliary diagnostics; they never alter
// either individual prediction.
type CombinedPrediction struct {
	Ensemble              *PredictionResult `json:"ensemble"`
	SingleModel           *PredictionResult `json:"single_model"`
	Agreement             bool              `json:"agreement"`
	ProbabilityDifference float64           `json:"probability_difference"`
}

// Explanation is the human-readable companion to a prediction.
type Explanation struct {
	RiskScore       float64        `json:"risk_score"`
	RiskLevel       RiskLevel      `json:"risk_level"`
	Confidence      ConfidenceBand `json:"confidence"`
	KeyFactors      []string       `json:"key_factors"`
	Recommendations []string       `json:"recommendations"`
}

// ModelEvaluation holds held-out test metrics for one model.
type ModelEvaluation struct {
	Accuracy float64 `json:"accuracy"`
	ROCAUC   float64 `json:"roc_auc"`
}

// EvaluationResults maps model name ("ensemble" plus each candidate)
// to its held-out metrics. Candidates whose evaluation failed are
// absent.
type EvaluationResults map[string]ModelEvaluation

// BundleMetadata is the metadata document persisted next to the
// serialized models. It is the binding contract inference must honor:
// same column order, same defaulting rule for absent names.
type BundleMetadata struct {
	ModelType         string            `json:"model_type"`
	TrainingDate      time.Time         `json:"training_date"`
	FeatureColumns    []string          `json:"feature_columns"`
	IndividualModels  []string          `json:"individual_models"`
	SelectedModels    []string          `json:"selected_models"`
	EvaluationResults EvaluationResults `json:"evaluation_results"`
	MaxVariantCount   float64           `json:"max_variant_count"`
	DrugVocabulary    []string          `json:"drug_vocabulary"`
}

// StageResult is the small key-value payload handed back to the
// external DAG runner after a pipeline stage; mirrors the
// orchestrator's cross-task value passing without depending on it.
type StageResult map[string]string
