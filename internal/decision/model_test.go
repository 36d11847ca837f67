package decision

import (
	"strings"
	"testing"
	"time"

	"github.com/verdegrid/irrigationd/internal/et"
	"github.com/verdegrid/irrigationd/internal/model"
	"github.com/verdegrid/irrigationd/internal/optimizer"
	"github.com/verdegrid/irrigationd/internal/soil"
	"github.com/verdegrid/irrigationd/internal/weather"
)

func fp(v float64) *float64 { return &v }

func testZones() map[string]model.ZoneConfig {
	front := model.ZoneConfig{
		ZoneID: "front", Name: "Front Lawn",
		Vegetation: "cool_season_grass", SoilType: "loam",
		NozzleType: "fixed_spray", Enabled: true,
	}
	front.Normalize()
	beds := model.ZoneConfig{
		ZoneID: "beds", Name: "Flower Beds",
		Vegetation: "annuals", SoilType: "sandy_loam",
		NozzleType: "impact", Enabled: true,
	}
	beds.Normalize()
	return map[string]model.ZoneConfig{"front": front, "beds": beds}
}

func newTestModel(zones map[string]model.ZoneConfig, at time.Time) *Model {
	calc := et.NewCalculator(40.0, -75.0, 100)
	wp := weather.NewProcessor()
	sa := soil.NewAnalyzer()
	rs := soil.NewRainSensor()
	opt := optimizer.New(zones, 180, 240)

	m := New(calc, wp, sa, rs, opt, zones, nil)
	if !at.IsZero() {
		m.now = func() time.Time { return at }
	}
	return m
}

func july() time.Time {
	return time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
}

func TestRecommendationUnknownZone(t *testing.T) {
	m := newTestModel(testZones(), july())
	rec := m.Recommendation("nope")
	if rec.ShouldWater || rec.Priority != 99 || rec.SkipReason != "Zone not configured" {
		t.Fatalf("rec = %+v", rec)
	}
}

func TestRecommendationWeatherSkip(t *testing.T) {
	m := newTestModel(testZones(), july())
	m.UpdateWeather(model.WeatherSnapshot{
		Condition:             "rain",
		TemperatureF:          fp(60),
		PrecipitationLast24In: 0.6,
	})

	rec := m.Recommendation("front")
	if rec.ShouldWater {
		t.Fatal("should not water under weather skip")
	}
	if rec.SkipReason != "Heavy recent precipitation (0.6in)" {
		t.Fatalf("reason = %q", rec.SkipReason)
	}
	if rec.Confidence != 0.9 || rec.Priority != 99 {
		t.Fatalf("confidence=%v priority=%v", rec.Confidence, rec.Priority)
	}
	if rec.DurationMinutes != 0 || rec.WaterAmountInches != 0 {
		t.Fatalf("skip must zero duration and water: %+v", rec)
	}
}

func TestRecommendationRainDelaySkip(t *testing.T) {
	m := newTestModel(testZones(), july())
	m.UpdateWeather(model.WeatherSnapshot{Condition: "clear", TemperatureF: fp(70)})
	expires := time.Now().Add(24 * time.Hour)
	m.UpdateRainSensor(false, nil, &expires)

	rec := m.Recommendation("front")
	if rec.ShouldWater || !strings.Contains(rec.SkipReason, "Rain delay active") {
		t.Fatalf("rec = %+v", rec)
	}
}

func TestRecommendationHighMoistureSkip(t *testing.T) {
	m := newTestModel(testZones(), july())
	m.UpdateWeather(model.WeatherSnapshot{Condition: "clear", TemperatureF: fp(70)})
	m.UpdateMoisture("front", fp(85), time.Now())

	rec := m.Recommendation("front")
	if rec.ShouldWater || rec.SkipReason != "Soil moisture high (85%)" {
		t.Fatalf("rec = %+v", rec)
	}
}

func TestRecommendationETDeficitMethod(t *testing.T) {
	m := newTestModel(testZones(), july())
	m.UpdateWeather(model.WeatherSnapshot{Condition: "sunny", TemperatureF: fp(75)})

	// Push the front zone's water balance past RAW (0.51in for loam at 6in).
	m.Tracker("front").AddET(0.6)

	rec := m.Recommendation("front")
	if !rec.ShouldWater {
		t.Fatalf("should water with ET deficit: %+v", rec)
	}
	if rec.Factors.Method != "et_deficit" {
		t.Fatalf("method = %q, want et_deficit", rec.Factors.Method)
	}
	if rec.DurationMinutes < 1 || rec.WaterAmountInches <= 0 {
		t.Fatalf("duration=%d water=%v", rec.DurationMinutes, rec.WaterAmountInches)
	}
	if rec.Priority != 1 {
		t.Fatalf("single-zone prioritization should yield 1, got %d", rec.Priority)
	}
}

func TestRecommendationSoilMoistureMethod(t *testing.T) {
	m := newTestModel(testZones(), july())
	m.UpdateWeather(model.WeatherSnapshot{Condition: "clear", TemperatureF: fp(70)})
	// Loam dry threshold is 25; 18 needs water with real urgency.
	m.UpdateMoisture("front", fp(18), time.Now())

	rec := m.Recommendation("front")
	if !rec.ShouldWater || rec.Factors.Method != "soil_moisture" {
		t.Fatalf("rec = %+v", rec)
	}
}

func TestRecommendationScheduleFallbackDeclinesWhenFactorLow(t *testing.T) {
	// December seasonal 0.35 plus cloudy and recent moderate rain drives the
	// combined factor below the 0.3 floor; with no sensors the schedule
	// fallback declines to water.
	dec := time.Date(2025, 12, 10, 6, 0, 0, 0, time.UTC)
	m := newTestModel(testZones(), dec)
	m.UpdateWeather(model.WeatherSnapshot{
		Condition:             "cloudy",
		TemperatureF:          fp(45),
		PrecipitationLast24In: 0.3,
	})

	rec := m.Recommendation("front")
	if rec.ShouldWater || rec.SkipReason != "Water not needed" {
		t.Fatalf("rec = %+v", rec)
	}
	if rec.Factors.Method != "schedule" {
		t.Fatalf("method = %q, want schedule", rec.Factors.Method)
	}
}

func TestConfidenceScaling(t *testing.T) {
	m := newTestModel(testZones(), july())
	m.UpdateWeather(model.WeatherSnapshot{Condition: "sunny", TemperatureF: fp(75)})
	m.UpdateMoisture("front", fp(18), time.Now())

	// Sensor (+0.2), fresh weather (+0.15), ET accumulating (+0.15) on the
	// 0.5 base, capped at 0.95.
	rec := m.Recommendation("front")
	if rec.Factors.Confidence != 0.95 {
		t.Fatalf("confidence = %v, want 0.95", rec.Factors.Confidence)
	}
}

func TestAllRecommendationsCachesResults(t *testing.T) {
	m := newTestModel(testZones(), july())
	m.UpdateWeather(model.WeatherSnapshot{Condition: "sunny", TemperatureF: fp(75)})

	recs := m.AllRecommendations()
	if len(recs) != 2 {
		t.Fatalf("got %d recommendations", len(recs))
	}
	cached := m.LastRecommendations()
	if len(cached) != 2 {
		t.Fatalf("cache has %d entries", len(cached))
	}
	st := m.Status()
	if st.ZonesConfigured != 2 || st.LastCalculation == nil {
		t.Fatalf("status = %+v", st)
	}
}

func TestOptimizedScheduleOrdersZones(t *testing.T) {
	m := newTestModel(testZones(), july())
	m.UpdateWeather(model.WeatherSnapshot{Condition: "sunny", TemperatureF: fp(75)})

	// Both zones past RAW; beds (annuals, drier) should outrank front.
	m.Tracker("front").AddET(0.6)
	m.Tracker("beds").AddET(0.6)
	m.UpdateMoisture("front", fp(22), time.Now())
	m.UpdateMoisture("beds", fp(11), time.Now())

	schedule := m.OptimizedSchedule()
	if len(schedule) != 2 {
		t.Fatalf("schedule = %+v", schedule)
	}
	if schedule[0].ZoneID != "beds" {
		t.Fatalf("order = [%s %s], want beds first", schedule[0].ZoneID, schedule[1].ZoneID)
	}
	total := 0
	for _, e := range schedule {
		total += e.DurationMinutes
	}
	if total > 180 {
		t.Fatalf("total %d exceeds daily cap", total)
	}
}

func TestRecordIrrigationResetsAfterDeepWatering(t *testing.T) {
	m := newTestModel(testZones(), july())
	tr := m.Tracker("front")
	tr.AddET(0.6)

	// Enough applied water (after 80% efficiency) to clear the deficit.
	m.RecordIrrigation("front", 1.0)
	if tr.NeedsIrrigation() {
		t.Fatal("deficit should be cleared")
	}
	s := tr.Status()
	if s.CumulativeET != 0 {
		t.Fatalf("tracker not reset after deep watering: %+v", s)
	}
}

func TestRecommendedDurationUsesCache(t *testing.T) {
	m := newTestModel(testZones(), july())
	m.UpdateWeather(model.WeatherSnapshot{Condition: "sunny", TemperatureF: fp(75)})
	m.Tracker("front").AddET(0.6)

	m.AllRecommendations()
	d := m.RecommendedDuration("front")
	if d < 1 {
		t.Fatalf("duration = %d, want at least 1", d)
	}
}
