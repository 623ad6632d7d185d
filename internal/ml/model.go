// Package ml implements the candidate classifier bank and the soft
// voting ensemble built on top of it. The classifiers are small,
// deterministic implementations sharing one random seed; no external
// inference runtime is involved, so a trained bundle is just JSON.
package ml

import (
	"math"
	"math/rand"
)

// Classifier is a binary probabilistic classifier. PredictProba
// returns the class-1 probability for one feature row.
type Classifier interface {
	Name() string
	Fit(X [][]float64, y []int) error
	PredictProba(x []float64) float64
}

// ImportanceReporter is implemented by classifiers that can report
// per-feature importance scores, index-aligned with the feature row.
type ImportanceReporter interface {
	FeatureImportances() []float64
}

// Predict thresholds a classifier's probability at 0.5.
func Predict(c Classifier, x []float64) int {
	if c.PredictProba(x) >= 0.5 {
		return 1
	}
	return 0
}

func sigmoid(z float64) float64 {
	// Clamp to keep exp in range; the tails saturate anyway.
	if z > 30 {
		return 1
	}
	if z < -30 {
		return 0
	}
	return 1 / (1 + math.Exp(-z))
}

// classPrior returns the log-odds of the positive class, the standard
// initial estimate for additive models.
func classPrior(y []int) float64 {
	pos := 0
	for _, label := range y {
		if label == 1 {
			pos++
		}
	}
	p := float64(pos) / float64(len(y))
	const eps = 1e-6
	if p < eps {
		p = eps
	}
	if p > 1-eps {
		p = 1 - eps
	}
	return math.Log(p / (1 - p))
}

// bootstrapSample draws n indices with replacement.
func bootstrapSample(rng *rand.Rand, n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.Intn(n)
	}
	return idx
}
