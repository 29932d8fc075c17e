// Package ensemble fuses the supervised, unsupervised and sequential
// detector adapters into one anomaly score per position report.
package ensemble

import (
	"errors"
	"fmt"
	"math"

	"github.com/seawatch/aisguard/pkg/detectors"
	"github.com/seawatch/aisguard/pkg/detectors/bayes"
	"github.com/seawatch/aisguard/pkg/detectors/iforest"
	"github.com/seawatch/aisguard/pkg/detectors/lof"
	"github.com/seawatch/aisguard/pkg/detectors/logreg"
)

// ScoreRange records the raw score span seen on training data, used to
// calibrate detector outputs to [0, 1] at scoring time. Calibrating against
// the training span rather than each prediction batch keeps single-record
// live scoring well defined.
type ScoreRange struct {
	Min, Max float64
}

func rangeOf(scores []float64) ScoreRange {
	r := ScoreRange{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, s := range scores {
		r.Min = math.Min(r.Min, s)
		r.Max = math.Max(r.Max, s)
	}
	return r
}

// Normalize maps a raw score into [0, 1], clamping values outside the
// training span.
func (r ScoreRange) Normalize(v float64) float64 {
	if r.Max <= r.Min {
		return 0
	}
	n := (v - r.Min) / (r.Max - r.Min)
	return math.Max(0, math.Min(1, n))
}

// SupervisedAdapter averages the positive-class probabilities of two base
// classifiers trained on labeled feature rows.
type SupervisedAdapter struct {
	Scaler *detectors.StandardScaler
	LR     *logreg.Model
	NB     *bayes.Model
}

// TrainSupervised fits the scaler and both base classifiers.
func TrainSupervised(data [][]float64, labels []int) (*SupervisedAdapter, error) {
	a := &SupervisedAdapter{
		Scaler: &detectors.StandardScaler{},
		LR:     logreg.New(),
		NB:     bayes.New(),
	}

	if err := a.Scaler.Fit(data); err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	scaled, err := a.Scaler.Transform(data)
	if err != nil {
		return nil, err
	}

	if err := a.LR.FitLabeled(scaled, labels); err != nil {
		return nil, fmt.Errorf("fit logistic regression: %w", err)
	}
	if err := a.NB.FitLabeled(scaled, labels); err != nil {
		return nil, fmt.Errorf("fit naive bayes: %w", err)
	}

	return a, nil
}

// Score returns one [0, 1] anomaly score per feature row.
func (a *SupervisedAdapter) Score(data [][]float64) ([]float64, error) {
	scaled, err := a.Scaler.Transform(data)
	if err != nil {
		return nil, err
	}

	lr, err := a.LR.PredictProba(scaled)
	if err != nil {
		return nil, err
	}
	nb, err := a.NB.PredictProba(scaled)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(lr))
	for i := range out {
		out[i] = (lr[i] + nb[i]) / 2
	}
	return out, nil
}

// ScoreOne scores a single feature row.
func (a *SupervisedAdapter) ScoreOne(sample []float64) (float64, error) {
	scores, err := a.Score([][]float64{sample})
	if err != nil {
		return 0, err
	}
	return scores[0], nil
}

// UnsupervisedAdapter averages two outlier detectors, each min-max
// calibrated to [0, 1] against its training score span with 1 = most
// anomalous.
type UnsupervisedAdapter struct {
	Scaler *detectors.StandardScaler
	Forest *iforest.IsolationForest
	LOF    *lof.LOF

	ForestRange ScoreRange
	LOFRange    ScoreRange
}

// TrainUnsupervised fits the scaler and both outlier detectors without
// labels, recording each detector's training score span for calibration.
func TrainUnsupervised(data [][]float64, seed int64) (*UnsupervisedAdapter, error) {
	a := &UnsupervisedAdapter{
		Scaler: &detectors.StandardScaler{},
		Forest: iforest.New(iforest.WithSeed(seed)),
		LOF:    lof.New(),
	}

	if err := a.Scaler.Fit(data); err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	scaled, err := a.Scaler.Transform(data)
	if err != nil {
		return nil, err
	}

	if err := a.Forest.Fit(scaled); err != nil {
		return nil, fmt.Errorf("fit isolation forest: %w", err)
	}
	if err := a.LOF.Fit(scaled); err != nil {
		return nil, fmt.Errorf("fit lof: %w", err)
	}

	forestScores, err := a.Forest.Predict(scaled)
	if err != nil {
		return nil, err
	}
	lofScores, err := a.LOF.Predict(scaled)
	if err != nil {
		return nil, err
	}

	a.ForestRange = rangeOf(forestScores)
	a.LOFRange = rangeOf(lofScores)
	return a, nil
}

// Score returns one [0, 1] anomaly score per feature row.
func (a *UnsupervisedAdapter) Score(data [][]float64) ([]float64, error) {
	scaled, err := a.Scaler.Transform(data)
	if err != nil {
		return nil, err
	}

	forest, err := a.Forest.Predict(scaled)
	if err != nil {
		return nil, err
	}
	lofScores, err := a.LOF.Predict(scaled)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(forest))
	for i := range out {
		out[i] = (a.ForestRange.Normalize(forest[i]) + a.LOFRange.Normalize(lofScores[i])) / 2
	}
	return out, nil
}

// ScoreOne scores a single feature row.
func (a *UnsupervisedAdapter) ScoreOne(sample []float64) (float64, error) {
	scores, err := a.Score([][]float64{sample})
	if err != nil {
		return 0, err
	}
	return scores[0], nil
}

// SequentialAdapter classifies a fixed-length trailing window of feature
// rows by pooling per-feature mean, spread and latest value into one vector
// for a logistic classifier. Records with fewer than SeqLen trailing rows
// cannot be scored and yield NaN.
type SequentialAdapter struct {
	Scaler *detectors.StandardScaler
	LR     *logreg.Model
	SeqLen int
}

// DefaultSeqLen is the sequence window length in reports.
const DefaultSeqLen = 50

// TrainSequential fits the sequential classifier on per-vessel row runs.
// rowLabels carry one 0/1 label per row; a window's label is the maximum
// label inside it.
func TrainSequential(runs [][][]float64, rowLabels [][]int, seqLen int) (*SequentialAdapter, error) {
	if seqLen < 2 {
		return nil, errors.New("sequence length must be at least 2")
	}

	var pooled [][]float64
	var labels []int
	for r, rows := range runs {
		for i := seqLen - 1; i < len(rows); i++ {
			window := rows[i-seqLen+1 : i+1]
			pooled = append(pooled, poolWindow(window))

			label := 0
			for _, y := range rowLabels[r][i-seqLen+1 : i+1] {
				if y == 1 {
					label = 1
					break
				}
			}
			labels = append(labels, label)
		}
	}
	if len(pooled) == 0 {
		return nil, errors.New("no vessel has enough history for the sequence window")
	}

	a := &SequentialAdapter{
		Scaler: &detectors.StandardScaler{},
		LR:     logreg.New(),
		SeqLen: seqLen,
	}

	if err := a.Scaler.Fit(pooled); err != nil {
		return nil, err
	}
	scaled, err := a.Scaler.Transform(pooled)
	if err != nil {
		return nil, err
	}
	if err := a.LR.FitLabeled(scaled, labels); err != nil {
		return nil, fmt.Errorf("fit sequence classifier: %w", err)
	}

	return a, nil
}

// ScoreVessel scores the rows of one vessel in timestamp order. Entries
// before the first full window are NaN (insufficient history, not an
// error).
func (a *SequentialAdapter) ScoreVessel(rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i := range out {
		out[i] = math.NaN()
	}

	for i := a.SeqLen - 1; i < len(rows); i++ {
		score, err := a.ScoreWindow(rows[i-a.SeqLen+1 : i+1])
		if err != nil {
			return nil, err
		}
		out[i] = score
	}
	return out, nil
}

// ScoreWindow scores one full sequence window.
func (a *SequentialAdapter) ScoreWindow(window [][]float64) (float64, error) {
	if len(window) != a.SeqLen {
		return 0, fmt.Errorf("window length %d does not match sequence length %d", len(window), a.SeqLen)
	}

	scaled, err := a.Scaler.TransformOne(poolWindow(window))
	if err != nil {
		return 0, err
	}
	return a.LR.PredictProbaOne(scaled)
}

// poolWindow flattens a window into per-feature mean, standard deviation
// and final value.
func poolWindow(window [][]float64) []float64 {
	nFeatures := len(window[0])
	out := make([]float64, 3*nFeatures)

	for j := 0; j < nFeatures; j++ {
		var sum float64
		for _, row := range window {
			sum += row[j]
		}
		mean := sum / float64(len(window))

		var ss float64
		for _, row := range window {
			d := row[j] - mean
			ss += d * d
		}

		out[j] = mean
		out[nFeatures+j] = math.Sqrt(ss / float64(len(window)))
		out[2*nFeatures+j] = window[len(window)-1][j]
	}
	return out
}
