package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 0.75, Accuracy([]int{1, 0, 1, 0}, []int{1, 0, 1, 1}))
	assert.Equal(t, 1.0, Accuracy([]int{1, 1}, []int{1, 1}))
	assert.Equal(t, 0.0, Accuracy(nil, nil))
}

func TestROCAUCPerfectRanking(t *testing.T) {
	yTrue := []int{0, 0, 1, 1}
	probs := []float64{0.1, 0.2, 0.8, 0.9}
	assert.InDelta(t, 1.0, ROCAUC(yTrue, probs), 1e-9)
}

func TestROCAUCInvertedRanking(t *testing.T) {
	yTrue := []int{1, 1, 0, 0}
	probs := []float64{0.1, 0.2, 0.8, 0.9}
	assert.InDelta(t, 0.0, ROCAUC(yTrue, probs), 1e-9)
}

func TestROCAUCTiedScores(t *testing.T) {
	// All scores equal: every ranking is equally likely, AUC 0.5.
	yTrue := []int{0, 1, 0, 1}
	probs := []float64{0.5, 0.5, 0.5, 0.5}
	assert.InDelta(t, 0.5, ROCAUC(yTrue, probs), 1e-9)
}

func TestROCAUCPartialOverlap(t *testing.T) {
	yTrue := []int{0, 1, 0, 1}
	probs := []float64{0.3, 0.2, 0.6, 0.9}
	// Pairs: (0.2 vs 0.3) wrong, (0.2 vs 0.6) wrong,
	// (0.9 vs 0.3) right, (0.9 vs 0.6) right -> 2/4.
	assert.InDelta(t, 0.5, ROCAUC(yTrue, probs), 1e-9)
}

func TestROCAUCDegenerateLabels(t *testing.T) {
	assert.Equal(t, 0.5, ROCAUC([]int{1, 1, 1}, []float64{0.1, 0.5, 0.9}))
	assert.Equal(t, 0.5, ROCAUC([]int{0, 0}, []float64{0.1, 0.9}))
}

func TestHardPredictions(t *testing.T) {
	assert.Equal(t, []int{0, 1, 1}, HardPredictions([]float64{0.49, 0.5, 0.99}))
}
