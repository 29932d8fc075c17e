package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/seawatch/aisguard/pkg/ais"
	"github.com/seawatch/aisguard/pkg/ensemble"
)

// Source supplies each monitoring cycle with fresh position reports.
type Source interface {
	Fetch(ctx context.Context) ([]ais.PositionReport, error)
}

// DefaultInterval is the pause between monitoring cycles.
const DefaultInterval = 15 * time.Minute

// Monitor runs the periodic fetch, score and alert loop. Each cycle runs to
// completion before the next sleep; cancellation takes effect between
// cycles.
type Monitor struct {
	source   Source
	detector *Detector
	interval time.Duration
	log      *zap.Logger
	session  string
	hook     func(results []ensemble.Result)

	cycles    prometheus.Counter
	records   prometheus.Counter
	anomalies prometheus.Counter
	lastCycle prometheus.Gauge
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithInterval overrides the cycle interval.
func WithInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) { m.interval = d }
}

// WithMonitorLogger sets the monitor logger.
func WithMonitorLogger(log *zap.Logger) MonitorOption {
	return func(m *Monitor) { m.log = log }
}

// WithCycleHook installs a callback invoked with each cycle's scored
// results, after metrics are updated. Used to archive cycle output.
func WithCycleHook(hook func(results []ensemble.Result)) MonitorOption {
	return func(m *Monitor) { m.hook = hook }
}

// NewMonitor wires a source to a streaming detector and registers the loop
// metrics. reg may be nil to skip metric registration.
func NewMonitor(source Source, detector *Detector, reg prometheus.Registerer, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		source:   source,
		detector: detector,
		interval: DefaultInterval,
		log:      zap.NewNop(),
		session:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	m.cycles = factory.NewCounter(prometheus.CounterOpts{
		Name: "aisguard_monitor_cycles_total",
		Help: "Completed monitoring cycles.",
	})
	m.records = factory.NewCounter(prometheus.CounterOpts{
		Name: "aisguard_monitor_records_total",
		Help: "Position reports scored by the monitoring loop.",
	})
	m.anomalies = factory.NewCounter(prometheus.CounterOpts{
		Name: "aisguard_monitor_anomalies_total",
		Help: "Anomalous results produced by the monitoring loop.",
	})
	m.lastCycle = factory.NewGauge(prometheus.GaugeOpts{
		Name: "aisguard_monitor_last_cycle_timestamp_seconds",
		Help: "Unix time of the last completed cycle.",
	})

	return m
}

// Session returns the unique id of this monitoring run.
func (m *Monitor) Session() string { return m.session }

// Run executes cycles until ctx is cancelled. The first cycle starts
// immediately.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info("live monitoring started",
		zap.String("session", m.session),
		zap.Duration("interval", m.interval))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			m.log.Info("live monitoring stopped", zap.String("session", m.session))
			return ctx.Err()
		case <-ticker.C:
			m.runCycle(ctx)
		}
	}
}

// RunOnce executes a single cycle, used by the one-shot CLI mode and tests.
func (m *Monitor) RunOnce(ctx context.Context) {
	m.runCycle(ctx)
}

func (m *Monitor) runCycle(ctx context.Context) {
	start := time.Now()

	reports, err := m.source.Fetch(ctx)
	if err != nil {
		m.log.Error("fetch failed, skipping cycle", zap.Error(err))
		return
	}
	if len(reports) == 0 {
		m.log.Warn("no reports fetched this cycle")
		return
	}

	ais.SortByVesselTime(reports)

	anomalies := 0
	results := m.detector.ProcessBatch(reports)
	for _, r := range results {
		if r.IsAnomaly {
			anomalies++
		}
	}

	m.cycles.Inc()
	m.records.Add(float64(len(results)))
	m.anomalies.Add(float64(anomalies))
	m.lastCycle.SetToCurrentTime()

	if m.hook != nil && len(results) > 0 {
		m.hook(results)
	}

	m.log.Info("cycle complete",
		zap.Int("fetched", len(reports)),
		zap.Int("scored", len(results)),
		zap.Int("anomalies", anomalies),
		zap.Int("vessels_tracked", m.detector.TrackedVessels()),
		zap.Duration("elapsed", time.Since(start)))
}
