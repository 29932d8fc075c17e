package ensemble

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/seawatch/aisguard/pkg/features"
)

// TrainConfig controls bundle training.
type TrainConfig struct {
	// SeqLen is the sequential window length. Zero means DefaultSeqLen.
	SeqLen int
	// Seed drives the isolation forest subsampling.
	Seed int64
	// SkipSequential trains a supervised/unsupervised-only bundle.
	SkipSequential bool
}

// WeakLabels derives 0/1 training labels from the rule-based feature flags
// when no ground truth is available. A row is suspicious when it loiters,
// jumps position implausibly or follows a long transmission silence.
func WeakLabels(table *features.Table) []int {
	labels := make([]int, len(table.Rows))
	for i, row := range table.Rows {
		if row.Values["loitering"] == 1 ||
			row.Values["position_jump"] == 1 ||
			row.Values["disappeared"] == 1 {
			labels[i] = 1
		}
	}
	return labels
}

// Train fits all detector families on the feature table and returns a
// bundle ready for scoring. labels must carry one 0/1 entry per table row.
func Train(table *features.Table, labels []int, cfg TrainConfig, log *zap.Logger) (*DetectorBundle, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(table.Rows) == 0 {
		return nil, errors.New("no feature rows to train on")
	}
	if len(labels) != len(table.Rows) {
		return nil, fmt.Errorf("%d labels for %d rows", len(labels), len(table.Rows))
	}
	if cfg.SeqLen == 0 {
		cfg.SeqLen = DefaultSeqLen
	}

	matrix := table.Matrix(table.Columns)

	positives := 0
	for _, y := range labels {
		positives += y
	}
	log.Info("training detector bundle",
		zap.Int("rows", len(matrix)),
		zap.Int("columns", len(table.Columns)),
		zap.Int("positive_labels", positives))

	supervised, err := TrainSupervised(matrix, labels)
	if err != nil {
		return nil, fmt.Errorf("supervised adapter: %w", err)
	}

	unsupervised, err := TrainUnsupervised(matrix, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("unsupervised adapter: %w", err)
	}

	bundle := &DetectorBundle{
		Columns:      append([]string(nil), table.Columns...),
		Supervised:   supervised,
		Unsupervised: unsupervised,
	}

	if !cfg.SkipSequential {
		runs := table.VesselRuns()
		rowRuns := make([][][]float64, 0, len(runs))
		labelRuns := make([][]int, 0, len(runs))
		for _, run := range runs {
			rowRuns = append(rowRuns, matrix[run.Start:run.End])
			labelRuns = append(labelRuns, labels[run.Start:run.End])
		}

		sequential, err := TrainSequential(rowRuns, labelRuns, cfg.SeqLen)
		if err != nil {
			// Short histories are common on small datasets; the bundle
			// still works with the remaining two families.
			log.Warn("sequential adapter not trained", zap.Error(err))
		} else {
			bundle.Sequential = sequential
		}
	}

	return bundle, nil
}
