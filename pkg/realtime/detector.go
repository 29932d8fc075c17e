package realtime

import (
	"go.uber.org/zap"

	"github.com/seawatch/aisguard/pkg/ais"
	"github.com/seawatch/aisguard/pkg/ensemble"
	"github.com/seawatch/aisguard/pkg/features"
)

// Detector scores position reports one at a time, keeping a bounded
// trailing history per vessel so the causal feature extractors and the
// sequence window see the same context they would in batch mode.
//
// Process is meant to be called from a single goroutine; the alert log it
// feeds is safe for concurrent readers.
type Detector struct {
	engine  *ensemble.Engine
	alerts  *AlertManager
	cleaner *ais.Cleaner
	cfg     features.Config
	log     *zap.Logger

	historyLen int
	vessels    map[int64]*vesselState
}

type vesselState struct {
	track   []ais.PositionReport
	vectors [][]float64
}

// NewDetector builds a streaming detector around a trained engine.
func NewDetector(engine *ensemble.Engine, alerts *AlertManager, cfg features.Config, log *zap.Logger) *Detector {
	if log == nil {
		log = zap.NewNop()
	}

	// Keep enough history for the widest trailing window any scorer needs.
	historyLen := cfg.Behavior.Window + 1
	if w := cfg.Transmission.Window + 1; w > historyLen {
		historyLen = w
	}
	if seq := engine.Bundle().Sequential; seq != nil && seq.SeqLen > historyLen {
		historyLen = seq.SeqLen
	}

	return &Detector{
		engine:     engine,
		alerts:     alerts,
		cleaner:    ais.NewCleaner(log),
		cfg:        cfg,
		log:        log,
		historyLen: historyLen,
		vessels:    map[int64]*vesselState{},
	}
}

// Alerts returns the alert log the detector feeds.
func (d *Detector) Alerts() *AlertManager { return d.alerts }

// Process scores one position report. Invalid records are dropped and
// reported as ok=false; out-of-order records for a vessel are dropped too,
// since trailing-window features assume non-decreasing timestamps.
func (d *Detector) Process(report ais.PositionReport) (ensemble.Result, bool) {
	if len(d.cleaner.Clean([]ais.PositionReport{report})) == 0 {
		return ensemble.Result{}, false
	}

	state, ok := d.vessels[report.MMSI]
	if !ok {
		state = &vesselState{}
		d.vessels[report.MMSI] = state
	}
	if n := len(state.track); n > 0 && report.Timestamp.Before(state.track[n-1].Timestamp) {
		d.log.Warn("dropping out-of-order report",
			zap.Int64("mmsi", report.MMSI),
			zap.Time("timestamp", report.Timestamp))
		return ensemble.Result{}, false
	}

	state.track = append(state.track, report)
	i := len(state.track) - 1

	values := features.BehaviorAt(state.track, i, d.cfg.Behavior)
	for k, v := range features.TransmissionAt(state.track, i, d.cfg.Transmission) {
		values[k] = v
	}

	row := features.Row{Report: report, Values: values}
	table := features.Table{Rows: []features.Row{row}}
	vector := table.Matrix(d.engine.Bundle().Columns)[0]
	state.vectors = append(state.vectors, vector)

	if len(state.track) > d.historyLen {
		state.track = state.track[1:]
		state.vectors = state.vectors[1:]
	}

	result := d.engine.ScoreRecord(row, state.vectors)
	if result.IsAnomaly {
		d.alerts.Record(result)
	}
	return result, true
}

// ProcessBatch scores a slice of reports in order and returns the results
// of the records that could be scored.
func (d *Detector) ProcessBatch(reports []ais.PositionReport) []ensemble.Result {
	results := make([]ensemble.Result, 0, len(reports))
	for _, r := range reports {
		if res, ok := d.Process(r); ok {
			results = append(results, res)
		}
	}
	return results
}

// TrackedVessels reports how many vessels currently hold history.
func (d *Detector) TrackedVessels() int { return len(d.vessels) }
