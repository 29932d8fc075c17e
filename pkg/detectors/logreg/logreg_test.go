package logreg

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separable builds two gaussian blobs around (0,0) and (4,4).
func separable(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	data := make([][]float64, n)
	labels := make([]int, n)
	for i := range data {
		offset := 0.0
		if i%2 == 1 {
			offset = 4
			labels[i] = 1
		}
		data[i] = []float64{offset + rng.NormFloat64()*0.5, offset + rng.NormFloat64()*0.5}
	}
	return data, labels
}

func TestFitValidation(t *testing.T) {
	m := New()

	assert.Error(t, m.FitLabeled(nil, nil))
	assert.Error(t, m.FitLabeled([][]float64{{1}}, []int{0, 1}))
	assert.Error(t, m.FitLabeled([][]float64{{1}, {2}}, []int{0, 0}), "single-class labels")
}

func TestSeparatesClasses(t *testing.T) {
	data, labels := separable(400, 1)

	m := New(WithEpochs(500), WithLearningRate(0.2))
	require.NoError(t, m.FitLabeled(data, labels))

	pNeg, err := m.PredictProbaOne([]float64{0, 0})
	require.NoError(t, err)
	pPos, err := m.PredictProbaOne([]float64{4, 4})
	require.NoError(t, err)

	assert.Less(t, pNeg, 0.2)
	assert.Greater(t, pPos, 0.8)
}

func TestProbaInRange(t *testing.T) {
	data, labels := separable(200, 2)
	m := New()
	require.NoError(t, m.FitLabeled(data, labels))

	probs, err := m.PredictProba(data)
	require.NoError(t, err)
	for _, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestPredictRequiresTraining(t *testing.T) {
	m := New()
	_, err := m.PredictProba([][]float64{{1, 2}})
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	data, labels := separable(200, 3)
	m := New()
	require.NoError(t, m.FitLabeled(data, labels))

	original, err := m.PredictProba(data[:20])
	require.NoError(t, err)

	blob, err := m.Save()
	require.NoError(t, err)

	loaded := New()
	require.NoError(t, loaded.Load(blob))

	restored, err := loaded.PredictProba(data[:20])
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}
