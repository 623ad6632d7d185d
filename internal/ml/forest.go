package ml

import (
	"math"
	"math/rand"

	"github.com/drug-risk-ml-server/internal/domain"
)

// RandomForest averages bootstrap-trained regression trees over 0/1
// labels; the averaged leaf value is the class-1 probability.
type RandomForest struct {
	Trees    []*regressionTree `json:"trees"`
	NumTrees int               `json:"num_trees"`
	MaxDepth int               `json:"max_depth"`
	Seed     int64             `json:"seed"`
}

// NewRandomForest creates an untrained forest.
func NewRandomForest(seed int64) *RandomForest {
	return &RandomForest{
		NumTrees: 100,
		MaxDepth: 10,
		Seed:     seed,
	}
}

func (m *RandomForest) Name() string { return "rf" }

func (m *RandomForest) Fit(X [][]float64, y []int) error {
	if len(X) == 0 || len(X) != len(y) {
		return domain.NewPipelineError(domain.ErrKindCandidateFit, "rf_fit",
			nil, "training matrix and labels are empty or misaligned")
	}

	target := make([]float64, len(y))
	for i, label := range y {
		target[i] = float64(label)
	}

	d := len(X[0])
	maxFeatures := int(math.Ceil(math.Sqrt(float64(d))))
	rng := rand.New(rand.NewSource(m.Seed))

	m.Trees = make([]*regressionTree, m.NumTrees)
	for t := range m.Trees {
		tree := newRegressionTree(m.MaxDepth, 2, maxFeatures)
		tree.fit(X, target, bootstrapSample(rng, len(X)), rng)
		m.Trees[t] = tree
	}
	return nil
}

func (m *RandomForest) PredictProba(x []float64) float64 {
	if len(m.Trees) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, tree := range m.Trees {
		sum += tree.predict(x)
	}
	p := sum / float64(len(m.Trees))
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
