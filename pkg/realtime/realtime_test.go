package realtime

import (
	"context"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seawatch/aisguard/pkg/ais"
	"github.com/seawatch/aisguard/pkg/ensemble"
	"github.com/seawatch/aisguard/pkg/features"
)

var trackStart = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

// loiteringTrack dwells inside a few hundred meters at trawling speed.
func loiteringTrack(mmsi int64, n int) []ais.PositionReport {
	reports := make([]ais.PositionReport, n)
	for i := range reports {
		angle := float64(i) * 0.7
		reports[i] = ais.PositionReport{
			MMSI:       mmsi,
			Timestamp:  trackStart.Add(time.Duration(i) * 15 * time.Minute),
			Lat:        10 + 0.002*math.Sin(angle),
			Lon:        75 + 0.002*math.Cos(angle),
			SOG:        1.5,
			COG:        math.Mod(angle*57.3, 360),
			Heading:    math.Mod(angle*57.3, 360),
			HasHeading: true,
		}
	}
	return reports
}

// transitTrack steams north in a straight line at 12 knots.
func transitTrack(mmsi int64, n int) []ais.PositionReport {
	reports := make([]ais.PositionReport, n)
	for i := range reports {
		reports[i] = ais.PositionReport{
			MMSI:       mmsi,
			Timestamp:  trackStart.Add(time.Duration(i) * 15 * time.Minute),
			Lat:        10 + float64(i)*0.05,
			Lon:        75,
			SOG:        12,
			COG:        0,
			Heading:    0,
			HasHeading: true,
		}
	}
	return reports
}

// trainedEngine fits a small bundle on a mixed fleet of dwellers and
// transiters.
func trainedEngine(t *testing.T) *ensemble.Engine {
	t.Helper()

	var reports []ais.PositionReport
	for v := int64(0); v < 3; v++ {
		reports = append(reports, loiteringTrack(300000001+v, 40)...)
		reports = append(reports, transitTrack(400000001+v, 40)...)
	}

	cleaned := ais.NewCleaner(nil).Clean(reports)
	table := features.NewExtractor(features.DefaultConfig(), nil).Extract(cleaned)

	bundle, err := ensemble.Train(table, ensemble.WeakLabels(table),
		ensemble.TrainConfig{SeqLen: 10, Seed: 42}, nil)
	require.NoError(t, err)

	engine, err := ensemble.NewEngine(bundle)
	require.NoError(t, err)
	return engine
}

func TestDetectorSeparatesLoiteringFromTransit(t *testing.T) {
	engine := trainedEngine(t)
	detector := NewDetector(engine, NewAlertManager(), features.DefaultConfig(), nil)

	loiter := detector.ProcessBatch(loiteringTrack(500000001, 20))
	transit := detector.ProcessBatch(transitTrack(600000001, 20))
	require.Len(t, loiter, 20)
	require.Len(t, transit, 20)

	// Compare after both vessels have warm trailing windows.
	var loiterSum, transitSum float64
	for i := 12; i < 20; i++ {
		require.False(t, loiter[i].Unscored)
		require.False(t, transit[i].Unscored)
		loiterSum += loiter[i].EnsembleScore
		transitSum += transit[i].EnsembleScore
	}

	assert.Greater(t, loiterSum, transitSum,
		"dwelling vessel should score above the transiting control")
	assert.Equal(t, 2, detector.TrackedVessels())
}

func TestDetectorDropsInvalidAndOutOfOrder(t *testing.T) {
	engine := trainedEngine(t)
	detector := NewDetector(engine, NewAlertManager(), features.DefaultConfig(), nil)

	_, ok := detector.Process(ais.PositionReport{
		MMSI: 1, Timestamp: trackStart, Lat: 95, Lon: 10, SOG: 5, COG: 0,
	})
	assert.False(t, ok, "invalid latitude")

	track := transitTrack(700000001, 3)
	_, ok = detector.Process(track[1])
	require.True(t, ok)
	_, ok = detector.Process(track[0])
	assert.False(t, ok, "timestamp regression")
	_, ok = detector.Process(track[2])
	assert.True(t, ok)
}

func anomalousResult(mmsi int64, score float64) ensemble.Result {
	return ensemble.Result{
		MMSI:          mmsi,
		Timestamp:     trackStart,
		Lat:           10,
		Lon:           75,
		EnsembleScore: score,
		IsAnomaly:     true,
		Risk:          ensemble.RiskFor(score, ensemble.DefaultThreshold),
		Scores: ensemble.ScoreTriple{
			Supervised: score, HasSupervised: true,
			Unsupervised: score, HasUnsupervised: true,
		},
	}
}

func TestAlertLogAppendOnly(t *testing.T) {
	m := NewAlertManager()

	first, ok := m.Record(anomalousResult(100, 0.9))
	require.True(t, ok)
	second, ok := m.Record(anomalousResult(200, 0.75))
	require.True(t, ok)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.Greater(t, second.ID, first.ID, "ids are strictly increasing")

	// A normal result never retracts existing alerts.
	_, ok = m.Record(ensemble.Result{MMSI: 100, EnsembleScore: 0.1})
	assert.False(t, ok)
	_, ok = m.Record(ensemble.Result{Unscored: true, IsAnomaly: true})
	assert.False(t, ok)
	assert.Equal(t, 2, m.Count())

	third, ok := m.Record(anomalousResult(100, 0.95))
	require.True(t, ok)
	assert.Equal(t, int64(3), third.ID)
	assert.Equal(t, 3, m.Count())
}

func TestActiveAlertsWindow(t *testing.T) {
	clock := trackStart
	m := NewAlertManager(WithClock(func() time.Time { return clock }))

	m.Record(anomalousResult(100, 0.72))
	clock = clock.Add(30 * time.Hour)
	m.Record(anomalousResult(200, 0.9))
	clock = clock.Add(1 * time.Hour)
	m.Record(anomalousResult(300, 0.8))

	active := m.Active(24 * time.Hour)
	require.Len(t, active, 2, "first alert aged out")
	assert.Equal(t, int64(200), active[0].MMSI, "sorted by score descending")
	assert.Equal(t, int64(300), active[1].MMSI)

	assert.Len(t, m.Active(48*time.Hour), 3)
}

func TestVesselHistory(t *testing.T) {
	m := NewAlertManager()
	m.Record(anomalousResult(100, 0.9))
	m.Record(anomalousResult(200, 0.8))
	m.Record(anomalousResult(100, 0.72))

	history := m.VesselHistory(100)
	require.Len(t, history, 2)
	assert.Equal(t, int64(1), history[0].ID)
	assert.Equal(t, int64(3), history[1].ID)

	assert.Empty(t, m.VesselHistory(999))
}

func TestDailyReport(t *testing.T) {
	m := NewAlertManager()
	assert.Equal(t, "No anomalies detected today.", m.DailyReport())

	m.Record(anomalousResult(100, 0.9))
	m.Record(anomalousResult(200, 0.75))

	report := m.DailyReport()
	assert.Contains(t, report, "DAILY IUU FISHING DETECTION REPORT")
	assert.Contains(t, report, "Total Alerts: 2")
	assert.Contains(t, report, "CRITICAL: 1")
	assert.Contains(t, report, "HIGH: 1")
	assert.Contains(t, report, "MMSI: 100")
	assert.Contains(t, report, "1 CRITICAL alerts require immediate action")

	// Highest score listed first.
	assert.Less(t, strings.Index(report, "MMSI: 100"), strings.Index(report, "MMSI: 200"))
}

func TestRecommendedAction(t *testing.T) {
	tests := []struct {
		risk ensemble.RiskLevel
		want string
	}{
		{ensemble.RiskCritical, "Immediate investigation required. Deploy patrol vessel."},
		{ensemble.RiskHigh, "Priority monitoring. Verify vessel identity and activity."},
		{ensemble.RiskMedium, "Enhanced surveillance. Track vessel movements."},
		{ensemble.RiskLow, "Continue routine monitoring."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RecommendedAction(tt.risk))
	}
}

type staticSource struct {
	reports []ais.PositionReport
	err     error
	calls   atomic.Int32
}

func (s *staticSource) Fetch(context.Context) ([]ais.PositionReport, error) {
	s.calls.Add(1)
	return s.reports, s.err
}

func TestMonitorRunOnce(t *testing.T) {
	engine := trainedEngine(t)
	detector := NewDetector(engine, NewAlertManager(), features.DefaultConfig(), nil)

	var reports []ais.PositionReport
	reports = append(reports, loiteringTrack(500000001, 20)...)
	reports = append(reports, transitTrack(600000001, 20)...)
	source := &staticSource{reports: reports}

	monitor := NewMonitor(source, detector, nil, WithInterval(time.Minute))
	require.NotEmpty(t, monitor.Session())

	monitor.RunOnce(context.Background())
	assert.Equal(t, int32(1), source.calls.Load())
	assert.Equal(t, 2, detector.TrackedVessels())
}

func TestMonitorCycleHook(t *testing.T) {
	engine := trainedEngine(t)
	detector := NewDetector(engine, NewAlertManager(), features.DefaultConfig(), nil)
	source := &staticSource{reports: loiteringTrack(500000001, 20)}

	var archived []ensemble.Result
	monitor := NewMonitor(source, detector, nil,
		WithCycleHook(func(results []ensemble.Result) {
			archived = append(archived, results...)
		}))

	monitor.RunOnce(context.Background())
	require.Len(t, archived, 20)
	for _, r := range archived {
		assert.Equal(t, int64(500000001), r.MMSI)
	}
}

func TestMonitorRunStopsOnCancel(t *testing.T) {
	engine := trainedEngine(t)
	detector := NewDetector(engine, NewAlertManager(), features.DefaultConfig(), nil)
	source := &staticSource{}

	monitor := NewMonitor(source, detector, nil, WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- monitor.Run(ctx) }()

	// The first cycle runs immediately; cancellation lands between cycles.
	require.Eventually(t, func() bool { return source.calls.Load() >= 1 },
		2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}
