// Package features turns per-vessel AIS trajectories into numeric feature
// rows for the anomaly detectors.
//
// Behavioral and transmission features are causal: the value at record i
// depends only on a bounded trailing window of records <= i, which is what
// allows the same code to serve both batch extraction and the streaming
// detector. Spatio-temporal enrichment is whole-track and cross-vessel and
// is therefore batch-only.
package features

import (
	"math"

	"go.uber.org/zap"

	"github.com/seawatch/aisguard/pkg/ais"
)

// Canonical feature column order. Detector input matrices are always built
// in this order so trained models and live scoring agree on layout.
var (
	BehaviorColumns = []string{
		"speed_mean", "speed_std", "speed_variance", "speed_max", "speed_min",
		"course_change", "turn_rate", "heading_deviation",
		"loitering", "fishing_speed", "fishing_speed_pct",
	}

	TransmissionColumns = []string{
		"time_gap", "ais_gap", "gap_count", "avg_gap_duration", "gap_std",
		"disappeared", "position_jump", "transmission_freq",
	}

	SpatioTemporalColumns = []string{
		"spatial_clusters", "cluster_time_ratio", "cluster_revisits",
		"night_activity_ratio", "hour_entropy", "weekend_activity_ratio", "time_regularity",
		"trajectory_length", "path_efficiency", "turning_points", "trajectory_entropy",
		"nearby_vessels", "min_vessel_distance", "avg_vessel_distance",
	}
)

// Row is one position report plus its derived feature values.
type Row struct {
	Report ais.PositionReport
	Values map[string]float64
}

// Table holds feature rows ordered by (MMSI, timestamp) with the column set
// that was actually computed.
type Table struct {
	Rows    []Row
	Columns []string
}

// VesselRun is a contiguous [Start, End) slice of table rows belonging to
// one vessel.
type VesselRun struct {
	MMSI       int64
	Start, End int
}

// VesselRuns returns the per-vessel row ranges. Rows are grouped because the
// extractor emits vessels in MMSI order.
func (t *Table) VesselRuns() []VesselRun {
	var runs []VesselRun
	for i := 0; i < len(t.Rows); {
		j := i
		for j < len(t.Rows) && t.Rows[j].Report.MMSI == t.Rows[i].Report.MMSI {
			j++
		}
		runs = append(runs, VesselRun{MMSI: t.Rows[i].Report.MMSI, Start: i, End: j})
		i = j
	}
	return runs
}

// Matrix materialises the rows as a dense matrix in the given column order.
// Columns a row does not carry are filled with the neutral default 0.
func (t *Table) Matrix(columns []string) [][]float64 {
	m := make([][]float64, len(t.Rows))
	for i, row := range t.Rows {
		vec := make([]float64, len(columns))
		for j, col := range columns {
			if v, ok := row.Values[col]; ok && isFinite(v) {
				vec[j] = v
			}
		}
		m[i] = vec
	}
	return m
}

// Config bundles the extractor parameters.
type Config struct {
	Behavior       BehaviorConfig
	Transmission   TransmissionConfig
	SpatioTemporal bool
}

// DefaultConfig returns the defaults used throughout the detection pipeline.
func DefaultConfig() Config {
	return Config{
		Behavior:     DefaultBehaviorConfig(),
		Transmission: DefaultTransmissionConfig(),
	}
}

// Extractor computes feature tables from cleaned position reports.
type Extractor struct {
	cfg Config
	log *zap.Logger
}

// NewExtractor creates an Extractor. A nil logger is replaced with a no-op.
func NewExtractor(cfg Config, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{cfg: cfg, log: log}
}

// Columns returns the column set this extractor produces.
func (e *Extractor) Columns() []string {
	cols := make([]string, 0, len(BehaviorColumns)+len(TransmissionColumns)+len(SpatioTemporalColumns))
	cols = append(cols, BehaviorColumns...)
	cols = append(cols, TransmissionColumns...)
	if e.cfg.SpatioTemporal {
		cols = append(cols, SpatioTemporalColumns...)
	}
	return cols
}

// Extract builds the feature table for a batch of reports. Reports are
// sorted and grouped per vessel; the output row order is (MMSI, timestamp)
// ascending, making repeated runs on the same input bit-identical.
func (e *Extractor) Extract(reports []ais.PositionReport) *Table {
	sorted := make([]ais.PositionReport, len(reports))
	copy(sorted, reports)
	ais.SortByVesselTime(sorted)

	order, tracks := ais.GroupByVessel(sorted)

	table := &Table{Columns: e.Columns()}
	for _, mmsi := range order {
		track := tracks[mmsi]
		for i := range track {
			values := BehaviorAt(track, i, e.cfg.Behavior)
			for k, v := range TransmissionAt(track, i, e.cfg.Transmission) {
				values[k] = v
			}
			table.Rows = append(table.Rows, Row{Report: track[i], Values: values})
		}
	}

	if e.cfg.SpatioTemporal {
		enrichSpatioTemporal(table, order, tracks)
	}

	e.impute(table)

	e.log.Debug("extracted features",
		zap.Int("rows", len(table.Rows)),
		zap.Int("vessels", len(order)),
		zap.Int("columns", len(table.Columns)),
	)

	return table
}

// impute replaces non-finite feature values with the vessel-group mean of
// the finite values in that column, or 0 when the column has no finite
// value for the vessel.
func (e *Extractor) impute(table *Table) {
	for _, run := range table.VesselRuns() {
		for _, col := range table.Columns {
			var sum float64
			var n int
			for i := run.Start; i < run.End; i++ {
				if v, ok := table.Rows[i].Values[col]; ok && isFinite(v) {
					sum += v
					n++
				}
			}
			fill := 0.0
			if n > 0 {
				fill = sum / float64(n)
			}
			for i := run.Start; i < run.End; i++ {
				v, ok := table.Rows[i].Values[col]
				if !ok || !isFinite(v) {
					table.Rows[i].Values[col] = fill
				}
			}
		}
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// meanFinite averages the finite entries of vals, NaN when none are finite.
func meanFinite(vals []float64) float64 {
	var sum float64
	var n int
	for _, v := range vals {
		if isFinite(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// stdFinite is the sample standard deviation of the finite entries of vals,
// NaN when fewer than two are finite. Matches rolling std semantics of the
// upstream feature definitions.
func stdFinite(vals []float64) float64 {
	mean := meanFinite(vals)
	if math.IsNaN(mean) {
		return math.NaN()
	}
	var ss float64
	var n int
	for _, v := range vals {
		if isFinite(v) {
			d := v - mean
			ss += d * d
			n++
		}
	}
	if n < 2 {
		return math.NaN()
	}
	return math.Sqrt(ss / float64(n-1))
}
