package ml

import (
	"github.com/sirupsen/logrus"

	"github.com/drug-risk-ml-server/internal/domain"
)

// Candidate pairs a model name with a factory producing fresh
// untrained instances, so cross-validation folds never share state.
type Candidate struct {
	ModelName string
	Build     func() Classifier
}

// CandidateScore is a candidate's fitted model and its mean
// cross-validated AUC. A candidate that failed to fit carries score 0
// and a nil model.
type CandidateScore struct {
	ModelName string
	Model     Classifier
	Score     float64
	Failed    bool
}

// DefaultCandidates returns the six-member candidate bank, in the
// canonical declaration order used for tie-breaking.
func DefaultCandidates(seed int64) []Candidate {
	return []Candidate{
		{ModelName: "xgb", Build: func() Classifier { return NewBoostedTrees(seed) }},
		{ModelName: "rf", Build: func() Classifier { return NewRandomForest(seed) }},
		{ModelName: "gb", Build: func() Classifier { return NewGradientBoosting(seed) }},
		{ModelName: "lr", Build: func() Classifier { return NewLogisticRegression(seed) }},
		{ModelName: "svm", Build: func() Classifier { return NewKernelSVM(seed) }},
		{ModelName: "mlp", Build: func() Classifier { return NewMLP(seed) }},
	}
}

// Bank fits and scores the candidate classifiers.
type Bank struct {
	candidates []Candidate
	cvFolds    int
	cvWorkers  int
	seed       int64
	log        *logrus.Logger
}

// NewBank creates a candidate bank over the given candidates.
func NewBank(candidates []Candidate, cvFolds, cvWorkers int, seed int64, logger *logrus.Logger) *Bank {
	if cvFolds < 2 {
		cvFolds = 5
	}
	if cvWorkers < 1 {
		cvWorkers = 1
	}
	return &Bank{
		candidates: candidates,
		cvFolds:    cvFolds,
		cvWorkers:  cvWorkers,
		seed:       seed,
		log:        logger,
	}
}

// FitAndScore fits every candidate on the full training split and
// scores it by cross-validated AUC on that same split. A candidate
// that errors during fit or cross-validation is recorded with score 0
// and the bank continues; only an entirely failed bank is an error.
func (b *Bank) FitAndScore(X [][]float64, y []int) ([]CandidateScore, error) {
	if len(b.candidates) == 0 {
		return nil, domain.ErrNoCandidates
	}

	scores := make([]CandidateScore, 0, len(b.candidates))
	anyFitted := false

	for _, cand := range b.candidates {
		entry := CandidateScore{ModelName: cand.ModelName}

		model := cand.Build()
		if err := model.Fit(X, y); err != nil {
			b.log.WithError(err).WithField("model", cand.ModelName).
				Warn("Candidate fit failed, assigning worst score")
			entry.Failed = true
			scores = append(scores, entry)
			continue
		}

		auc, err := CrossValidateAUC(cand.Build, X, y, b.cvFolds, b.cvWorkers, b.seed)
		if err != nil {
			b.log.WithError(err).WithField("model", cand.ModelName).
				Warn("Candidate cross-validation failed, assigning worst score")
			entry.Failed = true
			scores = append(scores, entry)
			continue
		}

		entry.Model = model
		entry.Score = auc
		scores = append(scores, entry)
		anyFitted = true

		b.log.WithFields(logrus.Fields{
			"model":  cand.ModelName,
			"cv_auc": auc,
		}).Info("Candidate scored")
	}

	if !anyFitted {
		return nil, domain.NewPipelineError(domain.ErrKindCandidateFit, "bank_fit",
			domain.ErrNoCandidates, "every candidate failed to fit")
	}
	return scores, nil
}
