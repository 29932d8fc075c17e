package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seawatch/aisguard/pkg/ensemble"
	"github.com/seawatch/aisguard/pkg/realtime"
)

func anomalous(mmsi int64, score float64) ensemble.Result {
	return ensemble.Result{
		MMSI:          mmsi,
		Timestamp:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
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

type alertsResponse struct {
	Count  int              `json:"count"`
	Alerts []realtime.Alert `json:"alerts"`
}

func newTestServer(t *testing.T) (*realtime.AlertManager, *httptest.Server) {
	t.Helper()
	alerts := realtime.NewAlertManager()
	server := httptest.NewServer(NewServer(alerts, prometheus.NewRegistry(), nil).Router())
	t.Cleanup(server.Close)
	return alerts, server
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealthz(t *testing.T) {
	_, server := newTestServer(t)

	var body map[string]any
	resp := getJSON(t, server.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestListAlerts(t *testing.T) {
	alerts, server := newTestServer(t)
	alerts.Record(anomalous(100, 0.9))
	alerts.Record(anomalous(200, 0.75))

	var body alertsResponse
	resp := getJSON(t, server.URL+"/api/v1/alerts", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, body.Count)
	assert.Equal(t, int64(1), body.Alerts[0].ID)
	assert.Equal(t, ensemble.RiskCritical, body.Alerts[0].Risk)
}

func TestListAlertsEmpty(t *testing.T) {
	_, server := newTestServer(t)

	var body alertsResponse
	getJSON(t, server.URL+"/api/v1/alerts", &body)
	assert.Equal(t, 0, body.Count)
	assert.NotNil(t, body.Alerts)
}

func TestActiveAlertsWindowParam(t *testing.T) {
	alerts, server := newTestServer(t)
	alerts.Record(anomalous(100, 0.9))

	var body alertsResponse
	resp := getJSON(t, server.URL+"/api/v1/alerts/active?window_hours=1", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, body.Count)

	resp = getJSON(t, server.URL+"/api/v1/alerts/active?window_hours=-2", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = getJSON(t, server.URL+"/api/v1/alerts/active?window_hours=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVesselAlerts(t *testing.T) {
	alerts, server := newTestServer(t)
	alerts.Record(anomalous(100, 0.9))
	alerts.Record(anomalous(200, 0.8))
	alerts.Record(anomalous(100, 0.72))

	var body alertsResponse
	getJSON(t, server.URL+"/api/v1/vessels/100/alerts", &body)
	require.Equal(t, 2, body.Count)
	for _, a := range body.Alerts {
		assert.Equal(t, int64(100), a.MMSI)
	}

	resp := getJSON(t, server.URL+"/api/v1/vessels/not-a-number/alerts", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDailyReport(t *testing.T) {
	alerts, server := newTestServer(t)
	alerts.Record(anomalous(100, 0.9))

	resp, err := http.Get(server.URL + "/api/v1/report/daily")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	buf := make([]byte, 4096)
	n, _ := resp.Body.Read(buf)
	assert.Contains(t, string(buf[:n]), "DAILY IUU FISHING DETECTION REPORT")
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aisguard_test_total", Help: "test counter",
	})
	reg.MustRegister(counter)
	counter.Inc()

	server := httptest.NewServer(NewServer(realtime.NewAlertManager(), reg, nil).Router())
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	buf := make([]byte, 8192)
	n, _ := resp.Body.Read(buf)
	assert.Contains(t, string(buf[:n]), "aisguard_test_total")
}
