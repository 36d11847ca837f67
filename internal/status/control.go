package status

import (
	"encoding/json"
	"log"
	"net/http"
)

// registerControl adds the on-demand operation endpoints. All are POST and
// return the result as JSON.
func (s *Server) registerControl(mux *http.ServeMux) {
	mux.HandleFunc("/control/run", s.handleRunNow)
	mux.HandleFunc("/control/stop", s.handleStop)
	mux.HandleFunc("/control/skip", s.handleSkip)
	mux.HandleFunc("/control/rain_delay", s.handleRainDelay)
	mux.HandleFunc("/control/recalculate", s.handleRecalculate)
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (s *Server) handleRunNow(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		ZoneID  string `json:"zone_id"`
		Minutes int    `json:"minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ZoneID == "" {
		http.Error(w, "zone_id required", http.StatusBadRequest)
		return
	}
	if err := s.scheduler.RunZoneNow(r.Context(), req.ZoneID, req.Minutes); err != nil {
		log.Printf("Manual run for zone %s failed: %v", req.ZoneID, err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]bool{"started": true})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		ZoneID string `json:"zone_id"` // empty stops everything
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	var err error
	if req.ZoneID != "" {
		err = s.scheduler.StopZone(r.Context(), req.ZoneID)
	} else {
		err = s.scheduler.StopAll(r.Context())
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]bool{"stopped": true})
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		ZoneID string `json:"zone_id"` // empty skips the whole next run
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.scheduler.SkipNext(req.ZoneID)
	writeJSON(w, map[string]bool{"skipped": true})
}

func (s *Server) handleRainDelay(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		Hours  int  `json:"hours"`
		Cancel bool `json:"cancel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	var err error
	if req.Cancel {
		err = s.scheduler.CancelRainDelay(r.Context())
	} else {
		if req.Hours <= 0 {
			http.Error(w, "hours must be positive", http.StatusBadRequest)
			return
		}
		err = s.scheduler.SetRainDelay(r.Context(), req.Hours)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, s.scheduler.ScheduleInfo())
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	writeJSON(w, s.scheduler.CalculateSchedule())
}
