package ml

import (
	"math/rand"
	"sort"
)

// treeNode is one node of a regression tree. Leaves carry the fitted
// value; internal nodes split on Feature at Threshold.
type treeNode struct {
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      *treeNode `json:"left,omitempty"`
	Right     *treeNode `json:"right,omitempty"`
	Value     float64   `json:"value"`
	Leaf      bool      `json:"leaf"`
}

// regressionTree fits piecewise-constant values by recursive variance
// reduction. It is the shared building block for the random forest
// (regressing 0/1 labels) and the boosted models (regressing
// gradients).
type regressionTree struct {
	Root            *treeNode `json:"root"`
	MaxDepth        int       `json:"max_depth"`
	MinSamplesSplit int       `json:"min_samples_split"`
	MaxFeatures     int       `json:"max_features,omitempty"`
	Gains           []float64 `json:"gains,omitempty"`
}

func newRegressionTree(maxDepth, minSamplesSplit, maxFeatures int) *regressionTree {
	return &regressionTree{
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
		MaxFeatures:     maxFeatures,
	}
}

// fit builds the tree on the rows selected by idx. rng drives feature
// subsampling when MaxFeatures is set.
func (t *regressionTree) fit(X [][]float64, target []float64, idx []int, rng *rand.Rand) {
	t.Gains = make([]float64, len(X[0]))
	t.Root = t.build(X, target, idx, 0, rng)
}

func (t *regressionTree) build(X [][]float64, target []float64, idx []int, depth int, rng *rand.Rand) *treeNode {
	mean := meanAt(target, idx)

	if depth >= t.MaxDepth || len(idx) < t.MinSamplesSplit || pureAt(target, idx) {
		return &treeNode{Leaf: true, Value: mean}
	}

	feature, threshold, gain := t.bestSplit(X, target, idx, rng)
	if feature < 0 {
		return &treeNode{Leaf: true, Value: mean}
	}
	t.Gains[feature] += gain

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &treeNode{Leaf: true, Value: mean}
	}

	return &treeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      t.build(X, target, left, depth+1, rng),
		Right:     t.build(X, target, right, depth+1, rng),
		Value:     mean,
	}
}

// bestSplit scans candidate features for the split with the largest
// weighted variance reduction. Returns feature -1 when no split
// improves on the parent.
func (t *regressionTree) bestSplit(X [][]float64, target []float64, idx []int, rng *rand.Rand) (int, float64, float64) {
	d := len(X[0])
	features := make([]int, d)
	for j := range features {
		features[j] = j
	}
	if t.MaxFeatures > 0 && t.MaxFeatures < d {
		rng.Shuffle(d, func(a, b int) {
			features[a], features[b] = features[b], features[a]
		})
		features = features[:t.MaxFeatures]
	}

	parentSSE := sseAt(target, idx)
	bestFeature := -1
	bestThreshold := 0.0
	bestGain := 1e-12

	sorted := make([]int, len(idx))
	for _, f := range features {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool {
			return X[sorted[a]][f] < X[sorted[b]][f]
		})

		// Incremental sums allow an O(n) sweep over split points.
		var leftSum, leftSq float64
		rightSum, rightSq := sumsAt(target, idx)

		for k := 0; k < len(sorted)-1; k++ {
			v := target[sorted[k]]
			leftSum += v
			leftSq += v * v
			rightSum -= v
			rightSq -= v * v

			if X[sorted[k]][f] == X[sorted[k+1]][f] {
				continue
			}

			nl := float64(k + 1)
			nr := float64(len(sorted) - k - 1)
			sse := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			gain := parentSSE - sse
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (X[sorted[k]][f] + X[sorted[k+1]][f]) / 2
			}
		}
	}

	if bestFeature < 0 {
		return -1, 0, 0
	}
	return bestFeature, bestThreshold, bestGain
}

// predict walks the tree for one row.
func (t *regressionTree) predict(x []float64) float64 {
	node := t.Root
	for node != nil && !node.Leaf {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	if node == nil {
		return 0
	}
	return node.Value
}

func meanAt(values []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range idx {
		sum += values[i]
	}
	return sum / float64(len(idx))
}

func pureAt(values []float64, idx []int) bool {
	for _, i := range idx[1:] {
		if values[i] != values[idx[0]] {
			return false
		}
	}
	return true
}

func sumsAt(values []float64, idx []int) (sum, sq float64) {
	for _, i := range idx {
		sum += values[i]
		sq += values[i] * values[i]
	}
	return sum, sq
}

func sseAt(values []float64, idx []int) float64 {
	sum, sq := sumsAt(values, idx)
	n := float64(len(idx))
	return sq - sum*sum/n
}
