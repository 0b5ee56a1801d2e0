package timeseries

import "fmt"

// ChronoSplit is a chronological train/validation/test partition of a
// TrainingSet. Sequences are never shuffled across the boundaries, so
// every training date precedes every validation date, which precedes
// every test date.
type ChronoSplit struct {
	Train, Val, Test *TrainingSet
}

// SplitChronological partitions the set by the given fractions, keeping
// order. valFrac and testFrac must each be in (0, 1) and sum to less
// than 1; each partition must receive at least one sequence.
func SplitChronological(set *TrainingSet, valFrac, testFrac float64) (*ChronoSplit, error) {
	if valFrac <= 0 || testFrac <= 0 || valFrac+testFrac >= 1 {
		return nil, fmt.Errorf("invalid split fractions val=%v test=%v", valFrac, testFrac)
	}

	n := set.Len()
	nVal := int(float64(n) * valFrac)
	nTest := int(float64(n) * testFrac)
	nTrain := n - nVal - nTest
	if nTrain < 1 || nVal < 1 || nTest < 1 {
		return nil, fmt.Errorf("%w: %d sequences cannot be split %v/%v", ErrInsufficientData, n, valFrac, testFrac)
	}

	return &ChronoSplit{
		Train: slice(set, 0, nTrain),
		Val:   slice(set, nTrain, nTrain+nVal),
		Test:  slice(set, nTrain+nVal, n),
	}, nil
}

func slice(set *TrainingSet, from, to int) *TrainingSet {
	return &TrainingSet{
		Windows: set.Windows[from:to],
		Targets: set.Targets[from:to],
		Dates:   set.Dates[from:to],
	}
}
