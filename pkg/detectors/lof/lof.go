// Package lof implements the Local Outlier Factor algorithm in novelty mode:
// fitted on training rows, then scoring unseen samples against that fit.
// It is the density-based counterpart to the isolation forest in the
// unsupervised detector adapter.
package lof

import (
	"bytes"
	"encoding/gob"
	"errors"
	"math"
	"sort"
	"sync"
)

// LOF scores samples by how much sparser their neighbourhood is than their
// neighbours' neighbourhoods. Scores near 1 are inliers; larger values are
// increasingly anomalous.
type LOF struct {
	mu sync.RWMutex

	k int

	// Trained state.
	Data    [][]float64
	KDist   []float64 // k-distance of each training point
	LRD     []float64 // local reachability density of each training point
	trained bool
}

// Option configures a LOF detector.
type Option func(*LOF)

// WithNeighbors sets the neighbourhood size k.
func WithNeighbors(k int) Option {
	return func(l *LOF) {
		l.k = k
	}
}

// New creates a LOF detector with the given options.
func New(opts ...Option) *LOF {
	l := &LOF{k: 20}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type neighbor struct {
	idx  int
	dist float64
}

// Fit stores the training rows and precomputes each point's k-distance and
// local reachability density.
func (l *LOF) Fit(data [][]float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(data) == 0 {
		return errors.New("empty training data")
	}

	k := l.k
	if k >= len(data) {
		k = len(data) - 1
	}
	if k < 1 {
		k = 1
	}

	l.Data = make([][]float64, len(data))
	for i, row := range data {
		cp := make([]float64, len(row))
		copy(cp, row)
		l.Data[i] = cp
	}

	n := len(l.Data)
	neighborsOf := make([][]neighbor, n)
	l.KDist = make([]float64, n)

	for i := 0; i < n; i++ {
		nb := l.nearest(l.Data[i], k, i)
		neighborsOf[i] = nb
		l.KDist[i] = nb[len(nb)-1].dist
	}

	l.LRD = make([]float64, n)
	for i := 0; i < n; i++ {
		l.LRD[i] = localReachability(neighborsOf[i], l.KDist)
	}

	l.trained = true
	return nil
}

// Predict returns LOF scores for the given samples.
func (l *LOF) Predict(data [][]float64) ([]float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.trained {
		return nil, errors.New("model not trained")
	}

	scores := make([]float64, len(data))
	for i, sample := range data {
		scores[i] = l.score(sample)
	}
	return scores, nil
}

// PredictOne returns the LOF score for a single sample.
func (l *LOF) PredictOne(sample []float64) (float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.trained {
		return 0, errors.New("model not trained")
	}

	return l.score(sample), nil
}

func (l *LOF) score(sample []float64) float64 {
	k := l.k
	if k >= len(l.Data) {
		k = len(l.Data) - 1
	}
	if k < 1 {
		k = 1
	}

	nb := l.nearest(sample, k, -1)
	lrd := localReachability(nb, l.KDist)
	if lrd == 0 {
		return math.Inf(1)
	}

	var sum float64
	for _, o := range nb {
		sum += l.LRD[o.idx]
	}
	return sum / float64(len(nb)) / lrd
}

// nearest returns the k nearest training points to the sample, excluding
// the training index skip (or none when skip < 0).
func (l *LOF) nearest(sample []float64, k, skip int) []neighbor {
	candidates := make([]neighbor, 0, len(l.Data))
	for idx, row := range l.Data {
		if idx == skip {
			continue
		}
		candidates = append(candidates, neighbor{idx: idx, dist: euclidean(sample, row)})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// localReachability inverts the mean reachability distance of a point's
// neighbourhood. Coincident points get an effectively infinite density,
// capped so ratios stay finite.
func localReachability(nb []neighbor, kdist []float64) float64 {
	var sum float64
	for _, o := range nb {
		sum += math.Max(o.dist, kdist[o.idx])
	}
	mean := sum / float64(len(nb))
	if mean == 0 {
		return 1e10
	}
	return 1 / mean
}

func euclidean(a, b []float64) float64 {
	var ss float64
	for i := range a {
		d := a[i] - b[i]
		ss += d * d
	}
	return math.Sqrt(ss)
}

// lofModel mirrors the trained state for gob serialization.
type lofModel struct {
	K     int
	Data  [][]float64
	KDist []float64
	LRD   []float64
}

// Save serializes the trained model.
func (l *LOF) Save() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.trained {
		return nil, errors.New("model not trained")
	}

	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(lofModel{K: l.k, Data: l.Data, KDist: l.KDist, LRD: l.LRD})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load deserializes a trained model.
func (l *LOF) Load(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var m lofModel
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return err
	}

	l.k = m.K
	l.Data = m.Data
	l.KDist = m.KDist
	l.LRD = m.LRD
	l.trained = true
	return nil
}
