package detectors

import (
	"bytes"
	"encoding/gob"
	"errors"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler centres features to zero mean and unit variance, fitted
// once on training data and applied unchanged at scoring time.
type StandardScaler struct {
	Mean []float64
	Std  []float64
}

// Fit computes per-column mean and standard deviation.
func (s *StandardScaler) Fit(data [][]float64) error {
	if len(data) == 0 {
		return errors.New("empty training data")
	}

	nFeatures := len(data[0])
	s.Mean = make([]float64, nFeatures)
	s.Std = make([]float64, nFeatures)

	col := make([]float64, len(data))
	for j := 0; j < nFeatures; j++ {
		for i, row := range data {
			col[i] = row[j]
		}
		s.Mean[j] = stat.Mean(col, nil)
		s.Std[j] = stat.StdDev(col, nil)
		if s.Std[j] == 0 || s.Std[j] != s.Std[j] {
			// Constant column: pass through centred only.
			s.Std[j] = 1
		}
	}

	return nil
}

// Transform returns scaled copies of the rows.
func (s *StandardScaler) Transform(data [][]float64) ([][]float64, error) {
	if s.Mean == nil {
		return nil, errors.New("scaler not fitted")
	}

	out := make([][]float64, len(data))
	for i, row := range data {
		scaled, err := s.TransformOne(row)
		if err != nil {
			return nil, err
		}
		out[i] = scaled
	}
	return out, nil
}

// TransformOne scales a single sample.
func (s *StandardScaler) TransformOne(sample []float64) ([]float64, error) {
	if s.Mean == nil {
		return nil, errors.New("scaler not fitted")
	}
	if len(sample) != len(s.Mean) {
		return nil, errors.New("sample width does not match fitted scaler")
	}

	out := make([]float64, len(sample))
	for j, v := range sample {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out, nil
}

// Save serializes the fitted scaler.
func (s *StandardScaler) Save() ([]byte, error) {
	if s.Mean == nil {
		return nil, errors.New("scaler not fitted")
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load deserializes a fitted scaler.
func (s *StandardScaler) Load(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(s)
}
