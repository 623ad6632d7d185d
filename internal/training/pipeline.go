// Package training orchestrates a full model build: fetch warehouse
// records, engineer features, score the candidate bank, assemble the
// soft voting ensemble, evaluate on the held-out split, and persist
// the artifact bundle. A run either completes and writes a fresh
// bundle or fails without touching the previous one.
package training

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/drug-risk-ml-server/internal/artifacts"
	"github.com/drug-risk-ml-server/internal/domain"
	"github.com/drug-risk-ml-server/internal/features"
	"github.com/drug-risk-ml-server/internal/ml"
)

// Pipeline runs complete training cycles.
type Pipeline struct {
	warehouse domain.WarehouseStore
	store     *artifacts.Store
	cfg       *domain.ModelConfig
	log       *logrus.Logger
}

// NewPipeline creates a training pipeline.
func NewPipeline(warehouse domain.WarehouseStore, store *artifacts.Store, cfg *domain.ModelConfig, logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		warehouse: warehouse,
		store:     store,
		cfg:       cfg,
		log:       logger,
	}
}

// Run executes one training cycle and returns a small key-value
// summary for the calling orchestrator.
func (p *Pipeline) Run(ctx context.Context) (domain.StageResult, error) {
	runID := uuid.New().String()
	started := time.Now()

	log := p.log.WithField("run_id", runID)
	log.Info("Training run started")

	prescriptions, err := p.warehouse.FetchPrescriptions(ctx)
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrKindDataUnavailable, "fetch_prescriptions", err, "")
	}
	variants, err := p.warehouse.FetchVariants(ctx)
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrKindDataUnavailable, "fetch_variants", err, "")
	}
	interactions, err := p.warehouse.FetchInteractions(ctx)
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrKindDataUnavailable, "fetch_interactions", err, "")
	}

	engineer := features.NewEngineer(p.cfg.TopDrugs, p.log)
	corpus, err := engineer.BuildCorpus(prescriptions, variants, interactions)
	if err != nil {
		return nil, err
	}

	trainX, testX, trainY, testY := ml.TrainTestSplit(
		corpus.Matrix, corpus.Labels, p.cfg.TestFraction, p.cfg.RandomSeed)
	if len(trainX) == 0 || len(testX) == 0 {
		return nil, domain.NewPipelineError(domain.ErrKindDataUnavailable, "train_test_split",
			nil, fmt.Sprintf("corpus of %d rows is too small to split", len(corpus.Matrix)))
	}

	scaler := features.NewScaler()
	trainScaled, err := scaler.FitTransform(trainX)
	if err != nil {
		return nil, err
	}
	testScaled, err := scaler.Transform(testX)
	if err != nil {
		return nil, err
	}

	ensemble := ml.NewEnsemble(p.cfg.EnsembleSize, p.log)
	bank := ml.NewBank(ml.DefaultCandidates(p.cfg.RandomSeed),
		p.cfg.CVFolds, p.cfg.CVWorkers, p.cfg.RandomSeed, p.log)

	if err := ensemble.ScoreCandidates(bank, trainScaled, trainY); err != nil {
		return nil, err
	}
	if err := ensemble.Build(); err != nil {
		return nil, err
	}
	if err := ensemble.Train(); err != nil {
		return nil, err
	}

	results, err := ensemble.Evaluate(testScaled, testY)
	if err != nil {
		return nil, err
	}

	single := ensemble.CandidateByName("xgb")
	if single == nil {
		// The boosted-tree candidate failed; serve the best surviving
		// member as the single model instead.
		single = ensemble.SelectedModels()[0]
		log.WithField("fallback", single.Name()).
			Warn("Boosted-tree candidate unavailable, falling back for single model")
	}

	bundle := &artifacts.Bundle{
		Members: ensemble.SelectedScores(),
		Single:  single,
		Scaler:  scaler,
		Metadata: domain.BundleMetadata{
			ModelType:         "ensemble",
			TrainingDate:      started.UTC(),
			FeatureColumns:    corpus.Schema.Columns(),
			IndividualModels:  ensemble.CandidateNames(),
			SelectedModels:    ensemble.SelectedNames(),
			EvaluationResults: results,
			MaxVariantCount:   corpus.Schema.MaxVariantCount,
			DrugVocabulary:    corpus.Schema.DrugVocabulary,
		},
	}
	if err := p.store.Save(bundle); err != nil {
		return nil, err
	}
	if err := ensemble.MarkPersisted(); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"duration":     time.Since(started),
		"ensemble_auc": results["ensemble"].ROCAUC,
	}).Info("Training run completed")

	return domain.StageResult{
		"run_id":            runID,
		"prescription_rows": strconv.Itoa(len(prescriptions)),
		"train_rows":        strconv.Itoa(len(trainX)),
		"test_rows":         strconv.Itoa(len(testX)),
		"feature_columns":   strconv.Itoa(len(corpus.Schema.Columns())),
		"selected_models":   strings.Join(ensemble.SelectedNames(), ","),
		"ensemble_auc":      strconv.FormatFloat(results["ensemble"].ROCAUC, 'f', 4, 64),
		"bundle_path":       p.store.Dir(),
	}, nil
}
