// Package realtime drives live anomaly detection: per-vessel streaming
// scoring, the append-only alert log and the periodic monitoring loop.
package realtime

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seawatch/aisguard/pkg/ensemble"
)

// Alert is one immutable entry in the audit trail. Alerts are never
// retracted, even when the vessel later looks normal again.
type Alert struct {
	ID        int64              `json:"alert_id"`
	CreatedAt time.Time          `json:"alert_time"`
	MMSI      int64              `json:"vessel_mmsi"`
	Lat       float64            `json:"lat"`
	Lon       float64            `json:"lon"`
	Risk      ensemble.RiskLevel `json:"risk_level"`
	Score     float64            `json:"anomaly_score"`
	Action    string             `json:"recommended_action"`
}

// RecommendedAction maps a risk level to the operator guidance attached to
// its alerts.
func RecommendedAction(risk ensemble.RiskLevel) string {
	switch risk {
	case ensemble.RiskCritical:
		return "Immediate investigation required. Deploy patrol vessel."
	case ensemble.RiskHigh:
		return "Priority monitoring. Verify vessel identity and activity."
	case ensemble.RiskMedium:
		return "Enhanced surveillance. Track vessel movements."
	case ensemble.RiskLow:
		return "Continue routine monitoring."
	default:
		return "Monitor vessel activity."
	}
}

// AlertManager owns the in-memory alert log. Appends come from a single
// detection loop while queries may arrive concurrently from the API, so
// every operation takes the lock.
type AlertManager struct {
	mu     sync.Mutex
	alerts []Alert
	nextID int64

	log *zap.Logger
	now func() time.Time
}

// ManagerOption configures an AlertManager.
type ManagerOption func(*AlertManager)

// WithManagerLogger sets the manager logger.
func WithManagerLogger(log *zap.Logger) ManagerOption {
	return func(m *AlertManager) { m.log = log }
}

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *AlertManager) { m.now = now }
}

// NewAlertManager creates an empty alert log.
func NewAlertManager(opts ...ManagerOption) *AlertManager {
	m := &AlertManager{
		nextID: 1,
		log:    zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Record appends an alert for an anomalous result and returns it. Normal
// and unscored results are ignored and return false.
func (m *AlertManager) Record(result ensemble.Result) (Alert, bool) {
	if result.Unscored || !result.IsAnomaly {
		return Alert{}, false
	}

	m.mu.Lock()
	alert := Alert{
		ID:        m.nextID,
		CreatedAt: m.now(),
		MMSI:      result.MMSI,
		Lat:       result.Lat,
		Lon:       result.Lon,
		Risk:      result.Risk,
		Score:     result.EnsembleScore,
		Action:    RecommendedAction(result.Risk),
	}
	m.nextID++
	m.alerts = append(m.alerts, alert)
	m.mu.Unlock()

	m.log.Warn("anomalous vessel detected",
		zap.Int64("alert_id", alert.ID),
		zap.Int64("mmsi", alert.MMSI),
		zap.String("risk", alert.Risk.String()),
		zap.Float64("score", alert.Score))

	return alert, true
}

// Count returns the total number of alerts ever recorded.
func (m *AlertManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

// All returns a snapshot of the full alert log in creation order.
func (m *AlertManager) All() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Alert(nil), m.alerts...)
}

// Active returns alerts created within the trailing window, highest score
// first.
func (m *AlertManager) Active(window time.Duration) []Alert {
	cutoff := m.now().Add(-window)

	m.mu.Lock()
	var active []Alert
	for _, a := range m.alerts {
		if !a.CreatedAt.Before(cutoff) {
			active = append(active, a)
		}
	}
	m.mu.Unlock()

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Score > active[j].Score
	})
	return active
}

// VesselHistory returns all alerts for one vessel in creation order.
func (m *AlertManager) VesselHistory(mmsi int64) []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	var history []Alert
	for _, a := range m.alerts {
		if a.MMSI == mmsi {
			history = append(history, a)
		}
	}
	return history
}

// topVesselCount bounds the per-report vessel ranking.
const topVesselCount = 10

// DailyReport renders a plain-text summary of the alert log: totals, a
// per-risk breakdown and the highest-scoring vessels.
func (m *AlertManager) DailyReport() string {
	alerts := m.All()
	if len(alerts) == 0 {
		return "No anomalies detected today."
	}

	counts := map[ensemble.RiskLevel]int{}
	for _, a := range alerts {
		counts[a.Risk]++
	}

	ranked := append([]Alert(nil), alerts...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if len(ranked) > topVesselCount {
		ranked = ranked[:topVesselCount]
	}

	var b strings.Builder
	line := strings.Repeat("=", 70)
	fmt.Fprintln(&b, line)
	fmt.Fprintln(&b, "DAILY IUU FISHING DETECTION REPORT")
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "Report Date: %s\n", m.now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Total Alerts: %d\n\n", len(alerts))

	fmt.Fprintln(&b, "RISK LEVEL BREAKDOWN:")
	for _, risk := range []ensemble.RiskLevel{
		ensemble.RiskCritical, ensemble.RiskHigh, ensemble.RiskMedium, ensemble.RiskLow,
	} {
		if n := counts[risk]; n > 0 {
			fmt.Fprintf(&b, "  %s: %d\n", risk, n)
		}
	}
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "TOP %d HIGH-RISK VESSELS:\n", topVesselCount)
	for i, a := range ranked {
		fmt.Fprintf(&b, "  %d. MMSI: %d - Score: %.4f - %s\n", i+1, a.MMSI, a.Score, a.Risk)
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "RECOMMENDATIONS:")
	if n := counts[ensemble.RiskCritical]; n > 0 {
		fmt.Fprintf(&b, "  - %d CRITICAL alerts require immediate action\n", n)
	}
	if n := counts[ensemble.RiskHigh]; n > 0 {
		fmt.Fprintf(&b, "  - %d HIGH priority vessels need investigation\n", n)
	}
	fmt.Fprintln(&b, "  - Continue monitoring all flagged vessels")
	fmt.Fprint(&b, "  - Update vessel registry with findings")

	return b.String()
}
