package ensemble

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/seawatch/aisguard/pkg/features"
)

// Weights distribute the ensemble vote across the three detector families.
type Weights struct {
	Supervised   float64
	Unsupervised float64
	Sequential   float64
}

// DefaultWeights returns the standard 0.4 / 0.3 / 0.3 split.
func DefaultWeights() Weights {
	return Weights{Supervised: 0.4, Unsupervised: 0.3, Sequential: 0.3}
}

// DefaultThreshold is the ensemble score above which a report is flagged.
const DefaultThreshold = 0.7

// RiskLevel grades a flagged report for the alerting layer.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

var riskNames = map[RiskLevel]string{
	RiskLow:      "LOW",
	RiskMedium:   "MEDIUM",
	RiskHigh:     "HIGH",
	RiskCritical: "CRITICAL",
}

func (r RiskLevel) String() string {
	if name, ok := riskNames[r]; ok {
		return name
	}
	return "UNKNOWN"
}

// MarshalJSON encodes the level as its name.
func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a level name.
func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for level, n := range riskNames {
		if n == name {
			*r = level
			return nil
		}
	}
	return fmt.Errorf("unknown risk level %q", name)
}

// RiskFor grades an ensemble score against the detection threshold.
func RiskFor(score, threshold float64) RiskLevel {
	switch {
	case score >= 0.85:
		return RiskCritical
	case score >= threshold:
		return RiskHigh
	case score >= 0.5:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ScoreTriple holds the per-family scores for one report. A family whose
// Has flag is false did not produce a score and is excluded from fusion.
type ScoreTriple struct {
	Supervised   float64 `json:"supervised_score"`
	Unsupervised float64 `json:"unsupervised_score"`
	Sequential   float64 `json:"sequential_score"`

	HasSupervised   bool `json:"-"`
	HasUnsupervised bool `json:"-"`
	HasSequential   bool `json:"has_sequential"`
}

// Fuse combines the available scores, renormalizing the weights over the
// detectors that actually produced one. ok is false when no detector
// scored the report.
func Fuse(t ScoreTriple, w Weights) (score float64, ok bool) {
	var sum, weight float64
	if t.HasSupervised {
		sum += w.Supervised * t.Supervised
		weight += w.Supervised
	}
	if t.HasUnsupervised {
		sum += w.Unsupervised * t.Unsupervised
		weight += w.Unsupervised
	}
	if t.HasSequential {
		sum += w.Sequential * t.Sequential
		weight += w.Sequential
	}
	if weight <= 0 {
		return 0, false
	}
	return sum / weight, true
}

// Result is the scored verdict for one position report.
type Result struct {
	MMSI      int64     `json:"mmsi"`
	Timestamp time.Time `json:"timestamp"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`

	Scores        ScoreTriple `json:"scores"`
	EnsembleScore float64     `json:"ensemble_score"`
	IsAnomaly     bool        `json:"is_anomaly"`
	Risk          RiskLevel   `json:"risk_level"`

	// Unscored marks reports no detector could score. Such reports are
	// never anomalies.
	Unscored bool `json:"unscored,omitempty"`
}

// Engine scores feature tables with a trained bundle.
type Engine struct {
	bundle    *DetectorBundle
	weights   Weights
	threshold float64
	log       *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithWeights overrides the default vote split.
func WithWeights(w Weights) EngineOption {
	return func(e *Engine) { e.weights = w }
}

// WithThreshold overrides the detection threshold.
func WithThreshold(t float64) EngineOption {
	return func(e *Engine) { e.threshold = t }
}

// WithLogger sets the engine logger.
func WithLogger(log *zap.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// NewEngine wraps a trained bundle. Thresholds outside the usable band are
// accepted but logged, since they collapse the risk grading.
func NewEngine(bundle *DetectorBundle, opts ...EngineOption) (*Engine, error) {
	if bundle == nil || bundle.Supervised == nil || bundle.Unsupervised == nil {
		return nil, errors.New("bundle is not trained")
	}

	e := &Engine{
		bundle:    bundle,
		weights:   DefaultWeights(),
		threshold: DefaultThreshold,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.threshold < 0.5 || e.threshold > 0.85 {
		e.log.Warn("detection threshold outside the graded risk band",
			zap.Float64("threshold", e.threshold))
	}
	return e, nil
}

// Threshold reports the configured detection threshold.
func (e *Engine) Threshold() float64 { return e.threshold }

// Bundle returns the trained bundle the engine scores with.
func (e *Engine) Bundle() *DetectorBundle { return e.bundle }

// Score runs all detector families over the table and fuses their votes
// into one Result per row. A family that fails is logged and dropped from
// the fusion for the whole batch rather than failing the call.
func (e *Engine) Score(table *features.Table) ([]Result, error) {
	if len(table.Rows) == 0 {
		return nil, nil
	}

	matrix := table.Matrix(e.bundle.Columns)

	sup, err := e.bundle.Supervised.Score(matrix)
	if err != nil {
		e.log.Error("supervised scoring failed", zap.Error(err))
		sup = nil
	}
	uns, err := e.bundle.Unsupervised.Score(matrix)
	if err != nil {
		e.log.Error("unsupervised scoring failed", zap.Error(err))
		uns = nil
	}

	seq := make([]float64, len(matrix))
	for i := range seq {
		seq[i] = math.NaN()
	}
	if e.bundle.Sequential != nil {
		for _, run := range table.VesselRuns() {
			scores, err := e.bundle.Sequential.ScoreVessel(matrix[run.Start:run.End])
			if err != nil {
				e.log.Error("sequential scoring failed",
					zap.Int64("mmsi", run.MMSI), zap.Error(err))
				continue
			}
			copy(seq[run.Start:run.End], scores)
		}
	}

	results := make([]Result, len(table.Rows))
	for i, row := range table.Rows {
		triple := ScoreTriple{}
		if sup != nil {
			triple.Supervised = sup[i]
			triple.HasSupervised = true
		}
		if uns != nil {
			triple.Unsupervised = uns[i]
			triple.HasUnsupervised = true
		}
		if !math.IsNaN(seq[i]) {
			triple.Sequential = seq[i]
			triple.HasSequential = true
		}

		results[i] = e.result(row, triple)
	}
	return results, nil
}

// ScoreRecord scores a single feature row for live detection. window holds
// the vessel's trailing feature vectors in timestamp order, ending with the
// vector for row itself; the sequential family joins the vote once the
// window covers a full sequence.
func (e *Engine) ScoreRecord(row features.Row, window [][]float64) Result {
	if len(window) == 0 {
		return e.result(row, ScoreTriple{})
	}
	current := window[len(window)-1]

	triple := ScoreTriple{}
	if s, err := e.bundle.Supervised.ScoreOne(current); err != nil {
		e.log.Error("supervised scoring failed",
			zap.Int64("mmsi", row.Report.MMSI), zap.Error(err))
	} else {
		triple.Supervised = s
		triple.HasSupervised = true
	}
	if s, err := e.bundle.Unsupervised.ScoreOne(current); err != nil {
		e.log.Error("unsupervised scoring failed",
			zap.Int64("mmsi", row.Report.MMSI), zap.Error(err))
	} else {
		triple.Unsupervised = s
		triple.HasUnsupervised = true
	}

	if seq := e.bundle.Sequential; seq != nil && len(window) >= seq.SeqLen {
		s, err := seq.ScoreWindow(window[len(window)-seq.SeqLen:])
		if err != nil {
			e.log.Error("sequential scoring failed",
				zap.Int64("mmsi", row.Report.MMSI), zap.Error(err))
		} else {
			triple.Sequential = s
			triple.HasSequential = true
		}
	}

	return e.result(row, triple)
}

func (e *Engine) result(row features.Row, triple ScoreTriple) Result {
	r := Result{
		MMSI:      row.Report.MMSI,
		Timestamp: row.Report.Timestamp,
		Lat:       row.Report.Lat,
		Lon:       row.Report.Lon,
		Scores:    triple,
	}

	score, ok := Fuse(triple, e.weights)
	if !ok {
		r.Unscored = true
		r.Risk = RiskLow
		return r
	}

	r.EnsembleScore = score
	r.IsAnomaly = score >= e.threshold
	r.Risk = RiskFor(score, e.threshold)
	return r
}
