package ml

import (
	"math/rand"
	"sync"
)

// stratifiedFolds assigns every row to one of k folds, keeping the
// class balance of each fold close to the corpus balance. Assignment
// is deterministic for a given seed.
func stratifiedFolds(y []int, k int, seed int64) []int {
	rng := rand.New(rand.NewSource(seed))

	byClass := map[int][]int{}
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}

	folds := make([]int, len(y))
	for _, class := range []int{0, 1} {
		idx := byClass[class]
		rng.Shuffle(len(idx), func(a, b int) {
			idx[a], idx[b] = idx[b], idx[a]
		})
		for pos, i := range idx {
			folds[i] = pos % k
		}
	}
	return folds
}

// CrossValidateAUC computes the mean k-fold ROC-AUC of a candidate.
// build must return a fresh untrained classifier; each fold trains its
// own instance. Folds run concurrently, bounded by workers.
func CrossValidateAUC(build func() Classifier, X [][]float64, y []int, k int, workers int, seed int64) (float64, error) {
	if k < 2 {
		k = 2
	}
	if workers < 1 {
		workers = 1
	}

	folds := stratifiedFolds(y, k, seed)

	var wg sync.WaitGroup
	var mu sync.Mutex
	semaphore := make(chan struct{}, workers)

	scores := make([]float64, 0, k)
	var firstErr error

	for fold := 0; fold < k; fold++ {
		wg.Add(1)
		go func(fold int) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			var trainX, testX [][]float64
			var trainY, testY []int
			for i, f := range folds {
				if f == fold {
					testX = append(testX, X[i])
					testY = append(testY, y[i])
				} else {
					trainX = append(trainX, X[i])
					trainY = append(trainY, y[i])
				}
			}
			if len(testX) == 0 || len(trainX) == 0 {
				return
			}

			model := build()
			if err := model.Fit(trainX, trainY); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}

			probs := make([]float64, len(testX))
			for i, row := range testX {
				probs[i] = model.PredictProba(row)
			}
			auc := ROCAUC(testY, probs)

			mu.Lock()
			scores = append(scores, auc)
			mu.Unlock()
		}(fold)
	}

	wg.Wait()

	if firstErr != nil {
		return 0, firstErr
	}
	if len(scores) == 0 {
		return 0.5, nil
	}

	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores)), nil
}

// TrainTestSplit splits rows into stratified train and test subsets.
// The split is deterministic for a given seed.
func TrainTestSplit(X [][]float64, y []int, testFraction float64, seed int64) (trainX, testX [][]float64, trainY, testY []int) {
	rng := rand.New(rand.NewSource(seed))

	byClass := map[int][]int{}
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}

	testSet := make(map[int]bool)
	for _, class := range []int{0, 1} {
		idx := byClass[class]
		rng.Shuffle(len(idx), func(a, b int) {
			idx[a], idx[b] = idx[b], idx[a]
		})
		take := int(testFraction * float64(len(idx)))
		for _, i := range idx[:take] {
			testSet[i] = true
		}
	}

	for i := range X {
		if testSet[i] {
			testX = append(testX, X[i])
			testY = append(testY, y[i])
		} else {
			trainX = append(trainX, X[i])
			trainY = append(trainY, y[i])
		}
	}
	return trainX, testX, trainY, testY
}
