package ml

import (
	"math/rand"

	"github.com/drug-risk-ml-server/internal/domain"
)

// LogisticRegression is a binary logistic model trained by full-batch
// gradient descent with L2 regularization.
type LogisticRegression struct {
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	LearningRate float64   `json:"learning_rate"`
	MaxIter      int       `json:"max_iter"`
	L2           float64   `json:"l2"`
	Seed         int64     `json:"seed"`
}

// NewLogisticRegression creates an untrained logistic model.
func NewLogisticRegression(seed int64) *LogisticRegression {
	return &LogisticRegression{
		LearningRate: 0.1,
		MaxIter:      1000,
		L2:           1e-4,
		Seed:         seed,
	}
}

func (m *LogisticRegression) Name() string { return "lr" }

// Fit trains the model. Inputs are expected to be standardized; the
// learning rate assumes roughly unit-scale features.
func (m *LogisticRegression) Fit(X [][]float64, y []int) error {
	if len(X) == 0 || len(X) != len(y) {
		return domain.NewPipelineError(domain.ErrKindCandidateFit, "lr_fit",
			nil, "training matrix and labels are empty or misaligned")
	}

	n := len(X)
	d := len(X[0])
	rng := rand.New(rand.NewSource(m.Seed))

	m.Weights = make([]float64, d)
	for j := range m.Weights {
		m.Weights[j] = rng.NormFloat64() * 0.01
	}
	m.Bias = 0

	grad := make([]float64, d)
	for iter := 0; iter < m.MaxIter; iter++ {
		for j := range grad {
			grad[j] = 0
		}
		gradBias := 0.0

		for i, row := range X {
			p := m.PredictProba(row)
			diff := p - float64(y[i])
			for j, v := range row {
				grad[j] += diff * v
			}
			gradBias += diff
		}

		scale := m.LearningRate / float64(n)
		for j := range m.Weights {
			m.Weights[j] -= scale*grad[j] + m.LearningRate*m.L2*m.Weights[j]
		}
		m.Bias -= scale * gradBias
	}

	return nil
}

func (m *LogisticRegression) PredictProba(x []float64) float64 {
	z := m.Bias
	for j, w := range m.Weights {
		if j < len(x) {
			z += w * x[j]
		}
	}
	return sigmoid(z)
}
