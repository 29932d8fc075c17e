// Package bayes implements a gaussian naive Bayes classifier, the second
// base model behind the supervised detector adapter.
package bayes

import (
	"bytes"
	"encoding/gob"
	"errors"
	"math"
	"sync"
)

const varianceFloor = 1e-9

// Model is a two-class gaussian naive Bayes classifier.
type Model struct {
	mu sync.RWMutex

	// Per-class feature means and variances, indexed by class 0/1.
	Mean  [2][]float64
	Var   [2][]float64
	Prior [2]float64

	trained bool
}

// New creates an untrained Model.
func New() *Model {
	return &Model{}
}

// FitLabeled estimates per-class gaussians from samples with 0/1 labels.
func (m *Model) FitLabeled(data [][]float64, labels []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(data) == 0 {
		return errors.New("empty training data")
	}
	if len(data) != len(labels) {
		return errors.New("data and labels length mismatch")
	}

	nFeatures := len(data[0])
	var counts [2]float64
	for c := 0; c < 2; c++ {
		m.Mean[c] = make([]float64, nFeatures)
		m.Var[c] = make([]float64, nFeatures)
	}

	for i, row := range data {
		c := labels[i]
		if c != 0 && c != 1 {
			return errors.New("labels must be 0 or 1")
		}
		counts[c]++
		for j, v := range row {
			m.Mean[c][j] += v
		}
	}
	if counts[0] == 0 || counts[1] == 0 {
		return errors.New("training labels must contain both classes")
	}

	for c := 0; c < 2; c++ {
		for j := range m.Mean[c] {
			m.Mean[c][j] /= counts[c]
		}
	}

	for i, row := range data {
		c := labels[i]
		for j, v := range row {
			d := v - m.Mean[c][j]
			m.Var[c][j] += d * d
		}
	}
	for c := 0; c < 2; c++ {
		for j := range m.Var[c] {
			m.Var[c][j] = m.Var[c][j]/counts[c] + varianceFloor
		}
		m.Prior[c] = counts[c] / float64(len(data))
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
		out[i] = m.posterior(row)
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
	return m.posterior(sample), nil
}

// posterior computes P(class=1 | x) from log-likelihoods, normalised in log
// space to stay stable for extreme feature values.
func (m *Model) posterior(sample []float64) float64 {
	var logp [2]float64
	for c := 0; c < 2; c++ {
		logp[c] = math.Log(m.Prior[c])
		for j, v := range sample {
			d := v - m.Mean[c][j]
			logp[c] += -0.5*math.Log(2*math.Pi*m.Var[c][j]) - d*d/(2*m.Var[c][j])
		}
	}

	max := math.Max(logp[0], logp[1])
	p0 := math.Exp(logp[0] - max)
	p1 := math.Exp(logp[1] - max)
	return p1 / (p0 + p1)
}

type model struct {
	Mean  [2][]float64
	Var   [2][]float64
	Prior [2]float64
}

// Save serializes the trained model.
func (m *Model) Save() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return nil, errors.New("model not trained")
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(model{Mean: m.Mean, Var: m.Var, Prior: m.Prior}); err != nil {
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

	m.Mean = stored.Mean
	m.Var = stored.Var
	m.Prior = stored.Prior
	m.trained = true
	return nil
}
