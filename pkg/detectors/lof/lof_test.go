package lof

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clusterData(n, features int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	data := make([][]float64, n)
	for i := range data {
		data[i] = make([]float64, features)
		for j := range data[i] {
			data[i][j] = rng.NormFloat64()
		}
	}
	return data
}

func TestFitEmpty(t *testing.T) {
	err := New().Fit(nil)
	assert.Error(t, err)
}

func TestPredictRequiresTraining(t *testing.T) {
	_, err := New().Predict([][]float64{{1, 2}})
	assert.Error(t, err)
}

func TestInlierScoresNearOne(t *testing.T) {
	l := New(WithNeighbors(10))
	require.NoError(t, l.Fit(clusterData(300, 3, 1)))

	score, err := l.PredictOne([]float64{0.1, -0.1, 0.05})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 0.5)
}

func TestOutlierScoresHigher(t *testing.T) {
	l := New(WithNeighbors(10))
	require.NoError(t, l.Fit(clusterData(300, 3, 2)))

	inlier, err := l.PredictOne([]float64{0, 0, 0})
	require.NoError(t, err)

	outlier, err := l.PredictOne([]float64{15, 15, 15})
	require.NoError(t, err)

	assert.Greater(t, outlier, inlier*2)
}

func TestSmallTrainingSet(t *testing.T) {
	// k is clamped when the training set is smaller than the
	// configured neighbourhood.
	l := New(WithNeighbors(20))
	require.NoError(t, l.Fit([][]float64{{0, 0}, {1, 0}, {0, 1}}))

	_, err := l.PredictOne([]float64{0.5, 0.5})
	assert.NoError(t, err)
}

func TestSaveLoad(t *testing.T) {
	l := New(WithNeighbors(15))
	require.NoError(t, l.Fit(clusterData(200, 4, 3)))

	test := clusterData(20, 4, 4)
	original, err := l.Predict(test)
	require.NoError(t, err)

	blob, err := l.Save()
	require.NoError(t, err)

	loaded := New()
	require.NoError(t, loaded.Load(blob))

	restored, err := loaded.Predict(test)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}
