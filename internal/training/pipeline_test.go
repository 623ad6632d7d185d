package training

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drug-risk-ml-server/internal/artifacts"
	"github.com/drug-risk-ml-server/internal/domain"
)

type stubWarehouse struct {
	prescriptions []domain.PrescriptionRecord
	variants      []domain.VariantRecord
	interactions  []domain.InteractionRecord
	failFetch     bool
}

func (s *stubWarehouse) FetchPrescriptions(ctx context.Context) ([]domain.PrescriptionRecord, error) {
	if s.failFetch {
		return nil, errors.New("connection refused")
	}
	return s.prescriptions, nil
}

func (s *stubWarehouse) FetchVariants(ctx context.Context) ([]domain.VariantRecord, error) {
	return s.variants, nil
}

func (s *stubWarehouse) FetchInteractions(ctx context.Context) ([]domain.InteractionRecord, error) {
	return s.interactions, nil
}

func (s *stubWarehouse) Health(ctx context.Context) error { return nil }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func testModelConfig(dir string) *domain.ModelConfig {
	return &domain.ModelConfig{
		ArtifactDir:  dir,
		TopDrugs:     3,
		CVFolds:      2,
		EnsembleSize: 4,
		TestFraction: 0.2,
		RandomSeed:   42,
		CVWorkers:    2,
	}
}

// trainingWarehouse builds a linearly separable cohort: high-risk
// patients carry many high-risk variants and a HIGH_RISK outcome.
func trainingWarehouse(n int) *stubWarehouse {
	wh := &stubWarehouse{}
	drugs := []string{"Warfarin", "Clopidogrel", "Simvastatin"}

	for i := 0; i < n; i++ {
		uploadID := "upload-" + strconv.Itoa(i)
		highRisk := i%2 == 0

		rec := domain.PrescriptionRecord{
			UploadID:  uploadID,
			DrugName:  drugs[i%len(drugs)],
			CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
		}
		if highRisk {
			rec.VariantCount = 20 + i%5
			rec.HighRiskVariants = 8 + i%3
			rec.RiskScore = 0.75 + float64(i%5)*0.03
			rec.ClinicalOutcome = domain.OutcomeHighRisk
			wh.variants = append(wh.variants,
				domain.VariantRecord{UploadID: uploadID, Gene: "CYP2C9", Impact: domain.ImpactHigh, ClinicalSignificance: domain.SignificancePathogenic},
				domain.VariantRecord{UploadID: uploadID, Gene: "VKORC1", Impact: domain.ImpactHigh, ClinicalSignificance: domain.SignificancePathogenic},
			)
		} else {
			rec.VariantCount = 2 + i%3
			rec.HighRiskVariants = i % 2
			rec.RiskScore = 0.1 + float64(i%5)*0.03
			rec.ClinicalOutcome = "LOW_RISK"
			wh.variants = append(wh.variants,
				domain.VariantRecord{UploadID: uploadID, Gene: "TPMT", Impact: "LOW", ClinicalSignificance: "Benign"},
			)
		}
		wh.prescriptions = append(wh.prescriptions, rec)
	}

	wh.interactions = []domain.InteractionRecord{
		{VariantID: "rs1799853", Gene: "CYP2C9", Drugs: "warfarin;phenytoin", Significance: domain.InteractionSigHigh},
		{VariantID: "rs9923231", Gene: "VKORC1", Drugs: "warfarin", Significance: domain.InteractionSigHigh},
	}
	return wh
}

func TestPipelineRunProducesLoadableBundle(t *testing.T) {
	dir := t.TempDir() + "/models"
	store := artifacts.NewStore(dir, testLogger())
	pipeline := NewPipeline(trainingWarehouse(60), store, testModelConfig(dir), testLogger())

	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, result["run_id"])
	assert.Equal(t, "60", result["prescription_rows"])
	assert.Equal(t, "48", result["train_rows"])
	assert.Equal(t, "12", result["test_rows"])
	assert.Equal(t, dir, result["bundle_path"])

	auc, err := strconv.ParseFloat(result["ensemble_auc"], 64)
	require.NoError(t, err)
	assert.Greater(t, auc, 0.9, "separable cohort should be nearly perfectly ranked")

	bundle, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, bundle.Members, 4)
	assert.Equal(t, "ensemble", bundle.Metadata.ModelType)
	assert.Len(t, bundle.Metadata.IndividualModels, 6)
	assert.Len(t, bundle.Metadata.SelectedModels, 4)
	assert.ElementsMatch(t, []string{"CLOPIDOGREL", "SIMVASTATIN", "WARFARIN"}, bundle.Metadata.DrugVocabulary)
	assert.Contains(t, bundle.Metadata.EvaluationResults, "ensemble")
	require.NotNil(t, bundle.Single)
	assert.Equal(t, "xgb", bundle.Single.Name())
}

func TestPipelineRunWarehouseFailure(t *testing.T) {
	dir := t.TempDir() + "/models"
	store := artifacts.NewStore(dir, testLogger())
	pipeline := NewPipeline(&stubWarehouse{failFetch: true}, store, testModelConfig(dir), testLogger())

	_, err := pipeline.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindDataUnavailable, domain.ErrorKindOf(err))

	_, err = store.Load()
	assert.Error(t, err, "failed run must not leave a bundle behind")
}

func TestPipelineRunEmptyWarehouse(t *testing.T) {
	dir := t.TempDir() + "/models"
	store := artifacts.NewStore(dir, testLogger())
	pipeline := NewPipeline(&stubWarehouse{}, store, testModelConfig(dir), testLogger())

	_, err := pipeline.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindDataUnavailable, domain.ErrorKindOf(err))
}

func TestPipelineRunTooSmallToSplit(t *testing.T) {
	wh := trainingWarehouse(60)
	wh.prescriptions = wh.prescriptions[:3]

	dir := t.TempDir() + "/models"
	store := artifacts.NewStore(dir, testLogger())
	pipeline := NewPipeline(wh, store, testModelConfig(dir), testLogger())

	_, err := pipeline.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindDataUnavailable, domain.ErrorKindOf(err))
	assert.Contains(t, fmt.Sprintf("%v", err), "too small")
}
