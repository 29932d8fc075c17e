// Package logreg implements binary logistic regression trained by gradient
// descent, one of the base classifiers behind the supervised and sequential
// detector adapters.
package logreg

import (
	"bytes"
	"encoding/gob"
	"errors"
	"math"
	"sync"
)

// Model is a binary logistic classifier over numeric feature rows.
type Model struct {
	mu sync.RWMutex

	epochs   int
	lr       float64
	l2       float64
	balanced bool

	Weights []float64
	Bias    float64
	trained bool
}

// Option configures a Model.
type Option func(*Model)

// WithEpochs sets the number of full gradient-descent passes.
func WithEpochs(n int) Option {
	return func(m *Model) { m.epochs = n }
}

// WithLearningRate sets the gradient step size.
func WithLearningRate(lr float64) Option {
	return func(m *Model) { m.lr = lr }
}

// WithL2 sets the L2 regularisation strength.
func WithL2(l2 float64) Option {
	return func(m *Model) { m.l2 = l2 }
}

// WithBalanced reweights classes inversely to their frequency, matching
// class_weight=balanced training on skewed anomaly labels.
func WithBalanced(b bool) Option {
	return func(m *Model) { m.balanced = b }
}

// New creates a Model with the given options.
func New(opts ...Option) *Model {
	m := &Model{
		epochs:   300,
		lr:       0.1,
		l2:       1e-4,
		balanced: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FitLabeled trains on samples with 0/1 labels (1 = anomalous).
func (m *Model) FitLabeled(data [][]float64, labels []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(data) == 0 {
		return errors.New("empty training data")
	}
	if len(data) != len(labels) {
		return errors.New("data and labels length mismatch")
	}

	n := len(data)
	nFeatures := len(data[0])

	var positives float64
	for _, y := range labels {
		if y == 1 {
			positives++
		}
	}
	if positives == 0 || positives == float64(n) {
		return errors.New("training labels must contain both classes")
	}

	// Per-class sample weights.
	wPos, wNeg := 1.0, 1.0
	if m.balanced {
		wPos = float64(n) / (2 * positives)
		wNeg = float64(n) / (2 * (float64(n) - positives))
	}

	m.Weights = make([]float64, nFeatures)
	m.Bias = 0

	grad := make([]float64, nFeatures)
	for epoch := 0; epoch < m.epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		var gradBias float64

		for i, row := range data {
			p := sigmoid(dot(m.Weights, row) + m.Bias)
			y := float64(labels[i])
			w := wNeg
			if labels[i] == 1 {
				w = wPos
			}
			err := w * (p - y)
			for j, x := range row {
				grad[j] += err * x
			}
			gradBias += err
		}

		scale := m.lr / float64(n)
		for j := range m.Weights {
			m.Weights[j] -= scale*grad[j] + m.lr*m.l2*m.Weights[j]
		}
		m.Bias -= scale * gradBias
	}

	m.trained = true
	return nil
}

// PredictProba returns the positive-class probability for each sample.
func (m *Model) PredictProba(data [][]float64) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return nil, errors.New("model not trained")
	}

	out := make([]float64, len(data))
	for i, row := range data {
		out[i] = sigmoid(dot(m.Weights, row) + m.Bias)
	}
	return out, nil
}

// PredictProbaOne returns the positive-class probability for one sample.
func (m *Model) PredictProbaOne(sample []float64) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return 0, errors.New("model not trained")
	}
	return sigmoid(dot(m.Weights, sample) + m.Bias), nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func dot(w, x []float64) float64 {
	var s float64
	for i := range w {
		s += w[i] * x[i]
	}
	return s
}

type model struct {
	Weights []float64
	Bias    float64
}

// Save serializes the trained model.
func (m *Model) Save() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return nil, errors.New("model not trained")
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(model{Weights: m.Weights, Bias: m.Bias}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load deserializes a trained model.
func (m *Model) Load(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stored model
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&stored); err != nil {
		return err
	}

	m.Weights = stored.Weights
	m.Bias = stored.Bias
	m.trained = true
	return nil
}
