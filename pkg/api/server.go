// Package api exposes the alert log and daily reporting over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/seawatch/aisguard/pkg/realtime"
)

// defaultActiveWindowHours bounds the active-alert query when the caller
// does not pass one.
const defaultActiveWindowHours = 24

// Server serves alert queries. It only reads from the alert manager, which
// handles its own locking.
type Server struct {
	alerts  *realtime.AlertManager
	metrics prometheus.Gatherer
	log     *zap.Logger
}

// NewServer builds an API server over the alert log. gatherer may be nil
// to serve the default prometheus registry on /metrics.
func NewServer(alerts *realtime.AlertManager, gatherer prometheus.Gatherer, log *zap.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{alerts: alerts, metrics: gatherer, log: log}
}

// Router assembles the route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/alerts", s.handleAlerts)
		r.Get("/alerts/active", s.handleActiveAlerts)
		r.Get("/vessels/{mmsi}/alerts", s.handleVesselAlerts)
		r.Get("/report/daily", s.handleDailyReport)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"total_alerts": s.alerts.Count(),
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, _ *http.Request) {
	s.writeAlerts(w, s.alerts.All())
}

func (s *Server) handleActiveAlerts(w http.ResponseWriter, r *http.Request) {
	hours := float64(defaultActiveWindowHours)
	if raw := r.URL.Query().Get("window_hours"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "window_hours must be a positive number")
			return
		}
		hours = parsed
	}

	window := time.Duration(hours * float64(time.Hour))
	s.writeAlerts(w, s.alerts.Active(window))
}

func (s *Server) handleVesselAlerts(w http.ResponseWriter, r *http.Request) {
	mmsi, err := strconv.ParseInt(chi.URLParam(r, "mmsi"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "mmsi must be an integer")
		return
	}

	s.writeAlerts(w, s.alerts.VesselHistory(mmsi))
}

func (s *Server) handleDailyReport(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(s.alerts.DailyReport()))
}

func (s *Server) writeAlerts(w http.ResponseWriter, alerts []realtime.Alert) {
	if alerts == nil {
		alerts = []realtime.Alert{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
