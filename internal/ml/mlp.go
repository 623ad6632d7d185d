package ml

import (
	"math"
	"math/rand"

	"github.com/drug-risk-ml-server/internal/domain"
)

// MLP is a feed-forward network with two ReLU hidden layers and a
// sigmoid output, trained by full-batch gradient descent on log loss.
type MLP struct {
	HiddenSizes  []int         `json:"hidden_sizes"`
	Weights      [][][]float64 `json:"weights"`
	Biases       [][]float64   `json:"biases"`
	LearningRate float64       `json:"learning_rate"`
	MaxIter      int           `json:"max_iter"`
	Seed         int64         `json:"seed"`
}

// NewMLP creates an untrained network with hidden layers (100, 50).
func NewMLP(seed int64) *MLP {
	return &MLP{
		HiddenSizes:  []int{100, 50},
		LearningRate: 0.05,
		MaxIter:      500,
		Seed:         seed,
	}
}

func (m *MLP) Name() string { return "mlp" }

func (m *MLP) Fit(X [][]float64, y []int) error {
	if len(X) == 0 || len(X) != len(y) {
		return domain.NewPipelineError(domain.ErrKindCandidateFit, "mlp_fit",
			nil, "training matrix and labels are empty or misaligned")
	}

	rng := rand.New(rand.NewSource(m.Seed))
	sizes := append([]int{len(X[0])}, m.HiddenSizes...)
	sizes = append(sizes, 1)

	m.Weights = make([][][]float64, len(sizes)-1)
	m.Biases = make([][]float64, len(sizes)-1)
	for l := 0; l < len(sizes)-1; l++ {
		// He initialization keeps ReLU activations in range.
		scale := math.Sqrt(2.0 / float64(sizes[l]))
		m.Weights[l] = make([][]float64, sizes[l+1])
		m.Biases[l] = make([]float64, sizes[l+1])
		for o := range m.Weights[l] {
			m.Weights[l][o] = make([]float64, sizes[l])
			for i := range m.Weights[l][o] {
				m.Weights[l][o][i] = rng.NormFloat64() * scale
			}
		}
	}

	n := float64(len(X))
	for iter := 0; iter < m.MaxIter; iter++ {
		gradW, gradB := m.zeroGradients()

		for i, row := range X {
			activations := m.forward(row)
			m.backward(row, activations, float64(y[i]), gradW, gradB)
		}

		for l := range m.Weights {
			for o := range m.Weights[l] {
				for i := range m.Weights[l][o] {
					m.Weights[l][o][i] -= m.LearningRate * gradW[l][o][i] / n
				}
				m.Biases[l][o] -= m.LearningRate * gradB[l][o] / n
			}
		}
	}
	return nil
}

func (m *MLP) zeroGradients() ([][][]float64, [][]float64) {
	gradW := make([][][]float64, len(m.Weights))
	gradB := make([][]float64, len(m.Biases))
	for l := range m.Weights {
		gradW[l] = make([][]float64, len(m.Weights[l]))
		gradB[l] = make([]float64, len(m.Biases[l]))
		for o := range m.Weights[l] {
			gradW[l][o] = make([]float64, len(m.Weights[l][o]))
		}
	}
	return gradW, gradB
}

// forward returns the activations of every layer, input included.
func (m *MLP) forward(x []float64) [][]float64 {
	activations := make([][]float64, len(m.Weights)+1)
	activations[0] = x

	for l := range m.Weights {
		out := make([]float64, len(m.Weights[l]))
		last := l == len(m.Weights)-1
		for o := range m.Weights[l] {
			z := m.Biases[l][o]
			for i, w := range m.Weights[l][o] {
				z += w * activations[l][i]
			}
			if last {
				out[o] = sigmoid(z)
			} else if z > 0 {
				out[o] = z
			}
		}
		activations[l+1] = out
	}
	return activations
}

// backward accumulates log-loss gradients for one sample. The output
// delta p-y is exact for sigmoid plus cross-entropy.
func (m *MLP) backward(x []float64, activations [][]float64, label float64, gradW [][][]float64, gradB [][]float64) {
	deltas := []float64{activations[len(activations)-1][0] - label}

	for l := len(m.Weights) - 1; l >= 0; l-- {
		for o, delta := range deltas {
			gradB[l][o] += delta
			for i := range m.Weights[l][o] {
				gradW[l][o][i] += delta * activations[l][i]
			}
		}

		if l == 0 {
			break
		}

		prev := make([]float64, len(activations[l]))
		for i := range prev {
			if activations[l][i] <= 0 {
				continue // dead ReLU unit
			}
			sum := 0.0
			for o, delta := range deltas {
				sum += delta * m.Weights[l][o][i]
			}
			prev[i] = sum
		}
		deltas = prev
	}
}

func (m *MLP) PredictProba(x []float64) float64 {
	if len(m.Weights) == 0 {
		return 0.5
	}
	activations := m.forward(x)
	return activations[len(activations)-1][0]
}
