package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/verdegrid/irrigationd/internal/actuator"
	"github.com/verdegrid/irrigationd/internal/decision"
	"github.com/verdegrid/irrigationd/internal/et"
	"github.com/verdegrid/irrigationd/internal/model"
	"github.com/verdegrid/irrigationd/internal/optimizer"
	"github.com/verdegrid/irrigationd/internal/scheduler"
	"github.com/verdegrid/irrigationd/internal/soil"
	"github.com/verdegrid/irrigationd/internal/weather"
	"github.com/verdegrid/irrigationd/pkg/timerq"
)

type stubController struct {
	mu    sync.Mutex
	runs  []actuator.ZoneRun
	stops int
}

func (c *stubController) RunZone(_ context.Context, zoneID string, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, actuator.ZoneRun{ZoneID: zoneID, Duration: d})
	return nil
}

func (c *stubController) RunZones(_ context.Context, runs []actuator.ZoneRun) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, runs...)
	return nil
}

func (c *stubController) StopZone(context.Context, string) error { return nil }

func (c *stubController) StopAll(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	return nil
}

func (c *stubController) SetRainDelay(context.Context, time.Duration) error { return nil }
func (c *stubController) CancelRainDelay(context.Context) error             { return nil }

func newTestServer(t *testing.T) (*Server, *stubController, func()) {
	t.Helper()
	front := model.ZoneConfig{ZoneID: "front", Name: "Front Lawn", Enabled: true}
	front.Normalize()
	zones := map[string]model.ZoneConfig{"front": front}

	calc := et.NewCalculator(40.0, -75.0, 100)
	wp := weather.NewProcessor()
	temp := 70.0
	wp.Update(model.WeatherSnapshot{Condition: "clear", TemperatureF: &temp})

	engine := decision.New(calc, wp, soil.NewAnalyzer(), soil.NewRainSensor(),
		optimizer.New(zones, model.DefaultMaxDailyRuntime, 0), zones, nil)

	ctrl := &stubController{}
	timers := timerq.New()
	sched := scheduler.New(scheduler.Config{
		WateringDays: []time.Weekday{time.Monday},
		Time:         "05:00",
	}, engine, ctrl, calc, timers, nil, nil)

	return NewServer(engine, sched, nil, nil, nil), ctrl, timers.Close
}

func get(t *testing.T, mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func post(t *testing.T, mux *http.ServeMux, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rr
}

func TestHealthzWithoutDeps(t *testing.T) {
	srv, _, done := newTestServer(t)
	defer done()
	rr := get(t, srv.Mux(), "/healthz")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("health = %v", body)
	}
	if _, present := body["mqtt_connected"]; present {
		t.Error("mqtt field should be omitted when no client is wired")
	}
}

func TestReadyzWithoutDeps(t *testing.T) {
	srv, _, done := newTestServer(t)
	defer done()
	if rr := get(t, srv.Mux(), "/readyz"); rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestScheduleEndpoint(t *testing.T) {
	srv, _, done := newTestServer(t)
	defer done()
	rr := get(t, srv.Mux(), "/schedule")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var info scheduler.Info
	if err := json.Unmarshal(rr.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Mode != scheduler.ModeStartAt {
		t.Errorf("mode = %q", info.Mode)
	}
}

func TestRecommendationsEndpoint(t *testing.T) {
	srv, _, done := newTestServer(t)
	defer done()
	rr := get(t, srv.Mux(), "/recommendations")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var recs map[string]model.WateringRecommendation
	if err := json.Unmarshal(rr.Body.Bytes(), &recs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := recs["front"]; !ok {
		t.Errorf("recommendations = %v", recs)
	}
}

func TestZonesEndpoint(t *testing.T) {
	srv, _, done := newTestServer(t)
	defer done()
	rr := get(t, srv.Mux(), "/zones")
	var zones map[string]model.ZoneConfig
	if err := json.Unmarshal(rr.Body.Bytes(), &zones); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if zones["front"].Name != "Front Lawn" {
		t.Errorf("zones = %v", zones)
	}
}

func TestControlRunValidation(t *testing.T) {
	srv, ctrl, done := newTestServer(t)
	defer done()
	mux := srv.Mux()

	if rr := post(t, mux, "/control/run", `{}`); rr.Code != http.StatusBadRequest {
		t.Errorf("missing zone_id: status = %d", rr.Code)
	}
	if rr := get(t, mux, "/control/run"); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: status = %d", rr.Code)
	}

	rr := post(t, mux, "/control/run", `{"zone_id":"front","minutes":5}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if len(ctrl.runs) != 1 || ctrl.runs[0].Duration != 5*time.Minute {
		t.Errorf("runs = %+v", ctrl.runs)
	}
}

func TestControlStop(t *testing.T) {
	srv, ctrl, done := newTestServer(t)
	defer done()
	rr := post(t, srv.Mux(), "/control/stop", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ctrl.stops != 1 {
		t.Errorf("stops = %d", ctrl.stops)
	}
}

func TestControlRainDelay(t *testing.T) {
	srv, _, done := newTestServer(t)
	defer done()
	mux := srv.Mux()

	if rr := post(t, mux, "/control/rain_delay", `{"hours":0}`); rr.Code != http.StatusBadRequest {
		t.Errorf("zero hours: status = %d", rr.Code)
	}

	rr := post(t, mux, "/control/rain_delay", `{"hours":24}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var info scheduler.Info
	if err := json.Unmarshal(rr.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.RainDelayUntil == nil {
		t.Error("rain delay should be set")
	}

	rr = post(t, mux, "/control/rain_delay", `{"cancel":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel status = %d", rr.Code)
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.RainDelayUntil != nil {
		t.Error("rain delay should be cleared")
	}
}

func TestControlSkip(t *testing.T) {
	srv, _, done := newTestServer(t)
	defer done()
	rr := post(t, srv.Mux(), "/control/skip", `{}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !srv.scheduler.ScheduleInfo().SkipNext {
		t.Error("skip flag not set")
	}
}
