package timeseries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitChronologicalNoLeakage(t *testing.T) {
	table := makeTable(50)
	e := fittedEngine(t, table, 20)

	set, err := e.TrainingSequences(table)
	require.NoError(t, err)
	require.Equal(t, 30, set.Len())

	split, err := SplitChronological(set, 0.1, 0.1)
	require.NoError(t, err)

	require.Equal(t, set.Len(), split.Train.Len()+split.Val.Len()+split.Test.Len())

	// Every training date precedes every validation date, which
	// precedes every test date.
	maxTrain := split.Train.Dates[split.Train.Len()-1]
	minVal := split.Val.Dates[0]
	maxVal := split.Val.Dates[split.Val.Len()-1]
	minTest := split.Test.Dates[0]
	assert.True(t, maxTrain.Before(minVal), "train bleeds into validation")
	assert.True(t, maxVal.Before(minTest), "validation bleeds into test")
}

func TestSplitChronologicalBadFractions(t *testing.T) {
	set := &TrainingSet{}

	for _, tc := range []struct{ val, test float64 }{
		{0, 0.1},
		{0.1, 0},
		{0.5, 0.5},
		{-0.1, 0.1},
	} {
		_, err := SplitChronological(set, tc.val, tc.test)
		assert.Error(t, err, "val=%v test=%v", tc.val, tc.test)
	}
}

func TestSplitChronologicalTooSmall(t *testing.T) {
	table := makeTable(6)
	e := fittedEngine(t, table, 4)
	set, err := e.TrainingSequences(table)
	require.NoError(t, err)

	// Two sequences cannot give every partition at least one.
	_, err = SplitChronological(set, 0.1, 0.1)
	assert.ErrorIs(t, err, ErrInsufficientData)
}
