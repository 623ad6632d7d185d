package ml

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/drug-risk-ml-server/internal/domain"
)

// Ensemble is a soft voting combiner over the top-K scored candidates.
// Its build lifecycle is a strict state machine; every method names
// the state it requires and the one it advances to.
type Ensemble struct {
	state      domain.PipelineState
	size       int
	candidates []CandidateScore
	selected   []CandidateScore
	log        *logrus.Logger
}

// NewEnsemble creates an unfitted ensemble that will select the top
// size candidates.
func NewEnsemble(size int, logger *logrus.Logger) *Ensemble {
	if size < 1 {
		size = 4
	}
	return &Ensemble{
		state: domain.STATE_UNFITTED,
		size:  size,
		log:   logger,
	}
}

// State returns the current lifecycle state.
func (e *Ensemble) State() domain.PipelineState {
	return e.state
}

func (e *Ensemble) advance(target domain.PipelineState) error {
	if !e.state.CanTransitionTo(target) {
		return fmt.Errorf("cannot move from %s to %s: %w", e.state, target, domain.ErrInvalidTransition)
	}
	e.state = target
	return nil
}

// ScoreCandidates runs the bank and records the scored candidates.
// UNFITTED -> CANDIDATES_SCORED.
func (e *Ensemble) ScoreCandidates(bank *Bank, X [][]float64, y []int) error {
	if err := e.advance(domain.STATE_CANDIDATES_SCORED); err != nil {
		return err
	}

	scores, err := bank.FitAndScore(X, y)
	if err != nil {
		e.state = domain.STATE_UNFITTED
		return err
	}
	e.candidates = scores
	return nil
}

// Build selects the top-K candidates by cross-validated score.
// Ties break by input order, so identical scores always produce the
// same selection. CANDIDATES_SCORED -> ENSEMBLE_BUILT.
func (e *Ensemble) Build() error {
	if err := e.advance(domain.STATE_ENSEMBLE_BUILT); err != nil {
		return err
	}

	usable := make([]CandidateScore, 0, len(e.candidates))
	for _, c := range e.candidates {
		if !c.Failed {
			usable = append(usable, c)
		}
	}
	if len(usable) == 0 {
		e.state = domain.STATE_CANDIDATES_SCORED
		return domain.ErrNoCandidates
	}

	sort.SliceStable(usable, func(a, b int) bool {
		return usable[a].Score > usable[b].Score
	})

	k := e.size
	if k > len(usable) {
		k = len(usable)
	}
	e.selected = usable[:k]

	names := make([]string, len(e.selected))
	for i, c := range e.selected {
		names[i] = c.ModelName
	}
	e.log.WithField("selected", names).Info("Ensemble members selected")
	return nil
}

// Train finalizes the voting ensemble. The members were already fitted
// on the full training split when the bank scored them, so this
// transition validates them rather than refitting.
// ENSEMBLE_BUILT -> TRAINED.
func (e *Ensemble) Train() error {
	if err := e.advance(domain.STATE_TRAINED); err != nil {
		return err
	}
	for _, c := range e.selected {
		if c.Model == nil {
			e.state = domain.STATE_ENSEMBLE_BUILT
			return domain.ErrNoCandidates
		}
	}
	return nil
}

// Evaluate computes held-out accuracy and AUC for the ensemble and
// every individual candidate. A candidate that failed earlier is
// skipped rather than failing the evaluation.
// TRAINED -> EVALUATED.
func (e *Ensemble) Evaluate(testX [][]float64, testY []int) (domain.EvaluationResults, error) {
	if err := e.advance(domain.STATE_EVALUATED); err != nil {
		return nil, err
	}

	results := make(domain.EvaluationResults)

	probs := make([]float64, len(testX))
	for i, row := range testX {
		probs[i] = e.PredictProba(row)
	}
	results["ensemble"] = domain.ModelEvaluation{
		Accuracy: Accuracy(testY, HardPredictions(probs)),
		ROCAUC:   ROCAUC(testY, probs),
	}

	for _, c := range e.candidates {
		if c.Failed || c.Model == nil {
			e.log.WithField("model", c.ModelName).Warn("Skipping evaluation of failed candidate")
			continue
		}
		mProbs := make([]float64, len(testX))
		for i, row := range testX {
			mProbs[i] = c.Model.PredictProba(row)
		}
		results[c.ModelName] = domain.ModelEvaluation{
			Accuracy: Accuracy(testY, HardPredictions(mProbs)),
			ROCAUC:   ROCAUC(testY, mProbs),
		}
	}

	return results, nil
}

// MarkPersisted records that the bundle was written.
// EVALUATED -> PERSISTED.
func (e *Ensemble) MarkPersisted() error {
	return e.advance(domain.STATE_PERSISTED)
}

// PredictProba returns the soft vote: the arithmetic mean of the
// selected members' class-1 probabilities.
func (e *Ensemble) PredictProba(x []float64) float64 {
	if len(e.selected) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, c := range e.selected {
		sum += c.Model.PredictProba(x)
	}
	return sum / float64(len(e.selected))
}

// SelectedNames returns the ensemble member names in selection order.
func (e *Ensemble) SelectedNames() []string {
	names := make([]string, len(e.selected))
	for i, c := range e.selected {
		names[i] = c.ModelName
	}
	return names
}

// CandidateNames returns every scored candidate name in input order.
func (e *Ensemble) CandidateNames() []string {
	names := make([]string, len(e.candidates))
	for i, c := range e.candidates {
		names[i] = c.ModelName
	}
	return names
}

// SelectedScores returns the scored members in selection order.
func (e *Ensemble) SelectedScores() []CandidateScore {
	out := make([]CandidateScore, len(e.selected))
	copy(out, e.selected)
	return out
}

// SelectedModels returns the fitted members in selection order.
func (e *Ensemble) SelectedModels() []Classifier {
	models := make([]Classifier, len(e.selected))
	for i, c := range e.selected {
		models[i] = c.Model
	}
	return models
}

// CandidateByName returns a fitted candidate model, or nil if the
// candidate is unknown or failed.
func (e *Ensemble) CandidateByName(name string) Classifier {
	for _, c := range e.candidates {
		if c.ModelName == name && !c.Failed {
			return c.Model
		}
	}
	return nil
}

// Restore rebuilds a servable ensemble from deserialized members. The
// restored ensemble is immediately usable for prediction but not for
// further lifecycle transitions.
func Restore(members []CandidateScore, logger *logrus.Logger) *Ensemble {
	return &Ensemble{
		state:    domain.STATE_PERSISTED,
		size:     len(members),
		selected: members,
		log:      logger,
	}
}
