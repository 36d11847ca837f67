package ingest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/verdegrid/irrigationd/internal/decision"
	"github.com/verdegrid/irrigationd/internal/et"
	"github.com/verdegrid/irrigationd/internal/model"
	"github.com/verdegrid/irrigationd/internal/optimizer"
	"github.com/verdegrid/irrigationd/internal/soil"
	"github.com/verdegrid/irrigationd/internal/weather"
	"github.com/verdegrid/irrigationd/pkg/dedup"
)

type fakeMsg struct {
	topic   string
	payload []byte
}

func (f fakeMsg) Duplicate() bool   { return false }
func (f fakeMsg) Qos() byte         { return 0 }
func (f fakeMsg) Retained() bool    { return false }
func (f fakeMsg) Topic() string     { return f.topic }
func (f fakeMsg) MessageID() uint16 { return 0 }
func (f fakeMsg) Payload() []byte   { return f.payload }
func (f fakeMsg) Ack()              {}

func newTestService(t *testing.T) (*Service, *decision.Model) {
	t.Helper()
	front := model.ZoneConfig{ZoneID: "front", Name: "Front Lawn", Enabled: true}
	front.Normalize()
	zones := map[string]model.ZoneConfig{"front": front}

	calc := et.NewCalculator(40.0, -75.0, 100)
	wp := weather.NewProcessor()
	temp := 70.0
	wp.Update(model.WeatherSnapshot{Condition: "clear", TemperatureF: &temp})

	m := decision.New(calc, wp, soil.NewAnalyzer(), soil.NewRainSensor(),
		optimizer.New(zones, model.DefaultMaxDailyRuntime, 0), zones, nil)
	return New(m, dedup.New(time.Minute, 100)), m
}

func TestMoistureMessageReachesEngine(t *testing.T) {
	s, m := newTestService(t)

	payload := []byte(`{"zone_id":"front","value_pct":85,"unit":"%","timestamp":"2026-06-01T12:00:00Z"}`)
	if err := s.handle("sensor/moisture/front", fakeMsg{topic: "sensor/moisture/front", payload: payload}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	rec := m.Recommendation("front")
	if rec.ShouldWater {
		t.Fatal("saturated zone should not water")
	}
	if rec.SkipReason != "Soil moisture high (85%)" {
		t.Errorf("skip reason = %q", rec.SkipReason)
	}
}

func TestMoistureZoneFallsBackToTopic(t *testing.T) {
	s, m := newTestService(t)

	payload := []byte(`{"value_pct":85,"unit":"%"}`)
	if err := s.handle("sensor/moisture/front", fakeMsg{topic: "sensor/moisture/front", payload: payload}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if rec := m.Recommendation("front"); !strings.HasPrefix(rec.SkipReason, "Soil moisture high") {
		t.Errorf("skip reason = %q, want moisture skip from topic-derived zone", rec.SkipReason)
	}
}

func TestRainMessageTripsSkip(t *testing.T) {
	s, m := newTestService(t)

	payload := []byte(`{"tripped":true,"external_rain_rate":0.6,"timestamp":"2026-06-01T12:00:00Z"}`)
	if err := s.handle(rainTopic, fakeMsg{topic: rainTopic, payload: payload}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	rec := m.Recommendation("front")
	if rec.ShouldWater {
		t.Fatal("rain should suppress watering")
	}
	if rec.SkipReason != "Heavy rain detected" {
		t.Errorf("skip reason = %q", rec.SkipReason)
	}
}

func TestRainDelayExpiryParsed(t *testing.T) {
	s, m := newTestService(t)

	expires := time.Now().Add(6 * time.Hour).UTC().Format(time.RFC3339)
	payload := []byte(fmt.Sprintf(`{"tripped":false,"rain_delay_expires":%q}`, expires))
	if err := s.handle(rainTopic, fakeMsg{topic: rainTopic, payload: payload}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	rec := m.Recommendation("front")
	if rec.ShouldWater {
		t.Fatal("rain delay should suppress watering")
	}
	if !strings.HasPrefix(rec.SkipReason, "Rain delay active") {
		t.Errorf("skip reason = %q", rec.SkipReason)
	}
}

func TestDuplicatePayloadDropped(t *testing.T) {
	s, _ := newTestService(t)

	bad := []byte(`{not json`)
	msg := fakeMsg{topic: rainTopic, payload: bad}
	if err := s.handle(rainTopic, msg); err == nil {
		t.Fatal("first delivery of a bad payload should error")
	}
	// Identical payload is deduplicated before decoding.
	if err := s.handle(rainTopic, msg); err != nil {
		t.Fatalf("duplicate should be dropped silently, got %v", err)
	}
}

func TestMalformedMoistureRejected(t *testing.T) {
	s, _ := newTestService(t)
	if err := s.handle("sensor/moisture/front", fakeMsg{topic: "sensor/moisture/front", payload: []byte("nope")}); err == nil {
		t.Fatal("expected decode error")
	}
}
