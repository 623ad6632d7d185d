package ml

import (
	"math"
	"math/rand"

	"github.com/drug-risk-ml-server/internal/domain"
)

// KernelSVM is an RBF-kernel classifier trained by stochastic
// subgradient descent on the hinge loss. The raw margin is squashed
// through a sigmoid to produce a probability estimate.
type KernelSVM struct {
	SupportX [][]float64 `json:"support_x"`
	Alphas   []float64   `json:"alphas"`
	Bias     float64     `json:"bias"`
	Gamma    float64     `json:"gamma"`
	C        float64     `json:"c"`
	Epochs   int         `json:"epochs"`
	Seed     int64       `json:"seed"`
}

// NewKernelSVM creates an untrained RBF SVM.
func NewKernelSVM(seed int64) *KernelSVM {
	return &KernelSVM{
		C:      1.0,
		Epochs: 50,
		Seed:   seed,
	}
}

func (m *KernelSVM) Name() string { return "svm" }

func (m *KernelSVM) rbf(a, b []float64) float64 {
	dist := 0.0
	for j := range a {
		d := a[j] - b[j]
		dist += d * d
	}
	return math.Exp(-m.Gamma * dist)
}

func (m *KernelSVM) Fit(X [][]float64, y []int) error {
	if len(X) == 0 || len(X) != len(y) {
		return domain.NewPipelineError(domain.ErrKindCandidateFit, "svm_fit",
			nil, "training matrix and labels are empty or misaligned")
	}

	n := len(X)
	d := len(X[0])
	// The scale heuristic for standardized inputs: 1 / n_features.
	m.Gamma = 1.0 / float64(d)

	m.SupportX = X
	m.Alphas = make([]float64, n)
	m.Bias = 0

	signs := make([]float64, n)
	for i, label := range y {
		if label == 1 {
			signs[i] = 1
		} else {
			signs[i] = -1
		}
	}

	// Precomputed kernel rows keep epochs O(n^2) instead of O(n^2 d).
	kernel := make([][]float64, n)
	for i := range kernel {
		kernel[i] = make([]float64, n)
		for j := range kernel[i] {
			kernel[i][j] = m.rbf(X[i], X[j])
		}
	}

	rng := rand.New(rand.NewSource(m.Seed))
	lr := 0.1

	for epoch := 0; epoch < m.Epochs; epoch++ {
		for _, i := range rng.Perm(n) {
			margin := m.Bias
			for j := range m.Alphas {
				margin += m.Alphas[j] * signs[j] * kernel[j][i]
			}
			if signs[i]*margin < 1 {
				m.Alphas[i] += lr * m.C
				m.Bias += lr * signs[i] * 0.01
			}
		}
	}

	// Fold label signs into the stored coefficients.
	for i := range m.Alphas {
		m.Alphas[i] *= signs[i]
	}
	return nil
}

func (m *KernelSVM) decision(x []float64) float64 {
	margin := m.Bias
	for i, alpha := range m.Alphas {
		if alpha != 0 {
			margin += alpha * m.rbf(m.SupportX[i], x)
		}
	}
	return margin
}

func (m *KernelSVM) PredictProba(x []float64) float64 {
	return sigmoid(m.decision(x))
}
