package ml

import "sort"

// Accuracy is the fraction of correct hard predictions.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// ROCAUC computes the area under the ROC curve from class-1
// probabilities, using the rank statistic with midrank handling for
// tied scores. A degenerate label set (single class) scores 0.5.
func ROCAUC(yTrue []int, probs []float64) float64 {
	n := len(yTrue)
	pos := 0
	for _, label := range yTrue {
		if label == 1 {
			pos++
		}
	}
	neg := n - pos
	if pos == 0 || neg == 0 {
		return 0.5
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return probs[order[a]] < probs[order[b]]
	})

	// Assign midranks to tied scores, then sum positive-class ranks.
	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && probs[order[j]] == probs[order[i]] {
			j++
		}
		mid := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			ranks[order[k]] = mid
		}
		i = j
	}

	rankSum := 0.0
	for i, label := range yTrue {
		if label == 1 {
			rankSum += ranks[i]
		}
	}

	return (rankSum - float64(pos)*float64(pos+1)/2) / (float64(pos) * float64(neg))
}

// HardPredictions thresholds a probability slice at 0.5.
func HardPredictions(probs []float64) []int {
	preds := make([]int, len(probs))
	for i, p := range probs {
		if p >= 0.5 {
			preds[i] = 1
		}
	}
	return preds
}
