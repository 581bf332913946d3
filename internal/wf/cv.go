package wf

// Fold is one train/test split over a time-ordered sample range.
type Fold struct {
	Train []int
	Test  []int
}

// PurgedKFold splits nSamples sequential indices into nSplits contiguous
// test blocks of near-equal size (remainder spread over the first blocks).
// The train set for each fold excludes an embargo-sized buffer on both sides
// of the test block, so temporal autocorrelation cannot leak test
// information into adjacent training samples. Every index appears in
// exactly one test block across the folds.
func PurgedKFold(nSamples, nSplits, embargo int) []Fold {
	if nSamples <= 0 || nSplits <= 0 {
		return nil
	}
	if nSplits > nSamples {
		nSplits = nSamples
	}
	if embargo < 0 {
		embargo = 0
	}

	folds := make([]Fold, 0, nSplits)
	base := nSamples / nSplits
	remainder := nSamples % nSplits
	start := 0
	for i := 0; i < nSplits; i++ {
		size := base
		if i < remainder {
			size++
		}
		stop := start + size

		test := make([]int, 0, size)
		for idx := start; idx < stop; idx++ {
			test = append(test, idx)
		}

		trainEnd := start - embargo
		trainResume := stop + embargo
		train := make([]int, 0, nSamples-size)
		for idx := 0; idx < trainEnd; idx++ {
			train = append(train, idx)
		}
		for idx := trainResume; idx < nSamples; idx++ {
			train = append(train, idx)
		}

		folds = append(folds, Fold{Train: train, Test: test})
		start = stop
	}
	return folds
}
