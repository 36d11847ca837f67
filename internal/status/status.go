// Package status is the local HTTP surface: health and readiness probes,
// the current schedule and recommendations, history, and Prometheus metrics.
package status

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/verdegrid/irrigationd/internal/decision"
	"github.com/verdegrid/irrigationd/internal/recorder"
	"github.com/verdegrid/irrigationd/internal/scheduler"
)

// Server holds the handler dependencies. influx may be nil when persistence
// is disabled; mqtt may be nil when running with a cloud controller only.
type Server struct {
	model     *decision.Model
	scheduler *scheduler.Scheduler
	mqtt      mqtt.Client
	influx    *recorder.Influx
	registry  *prometheus.Registry
}

func NewServer(
	m *decision.Model,
	s *scheduler.Scheduler,
	mqttClient mqtt.Client,
	influx *recorder.Influx,
	registry *prometheus.Registry,
) *Server {
	return &Server{model: m, scheduler: s, mqtt: mqttClient, influx: influx, registry: registry}
}

// Mux builds the route table.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/schedule", s.handleSchedule)
	mux.HandleFunc("/schedule/upcoming", s.handleUpcoming)
	mux.HandleFunc("/recommendations", s.handleRecommendations)
	mux.HandleFunc("/zones", s.handleZones)
	mux.HandleFunc("/history/runs", s.handleRunHistory)
	mux.HandleFunc("/history/decisions", s.handleDecisionHistory)
	s.registerControl(mux)
	if s.registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	type health struct {
		Status          string   `json:"status"`
		MQTTConnected   *bool    `json:"mqtt_connected,omitempty"`
		InfluxOK        *bool    `json:"influx_ok,omitempty"`
		LastWriteErrorS *float64 `json:"last_write_error_age_sec,omitempty"`
	}
	st := health{Status: "ok"}
	if s.mqtt != nil {
		ok := s.mqtt.IsConnectionOpen()
		st.MQTTConnected = &ok
		if !ok {
			st.Status = "degraded"
		}
	}
	if s.influx != nil {
		age := s.influx.LastErrorAge()
		secs := age.Seconds()
		ok := age > 30*time.Second
		st.InfluxOK = &ok
		st.LastWriteErrorS = &secs
		if !ok && st.Status == "ok" {
			st.Status = "degraded"
		}
	}
	writeJSON(w, st)
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	ready := true
	if s.mqtt != nil && !s.mqtt.IsConnectionOpen() {
		ready = false
	}
	if s.influx != nil && s.influx.LastErrorAge() < 30*time.Second {
		ready = false
	}
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	writeJSON(w, map[string]bool{"ready": ready})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.model.Status())
}

func (s *Server) handleSchedule(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.scheduler.ScheduleInfo())
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 31 {
			days = n
		}
	}
	writeJSON(w, s.scheduler.UpcomingRuns(days))
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		writeJSON(w, s.model.AllRecommendations())
		return
	}
	recs := s.model.LastRecommendations()
	if len(recs) == 0 {
		recs = s.model.AllRecommendations()
	}
	writeJSON(w, recs)
}

func (s *Server) handleZones(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.model.Zones())
}

func (s *Server) handleRunHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.scheduler.RunHistory())
}

func (s *Server) handleDecisionHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.scheduler.DecisionHistory())
}
