package soil

import (
	"math"
	"testing"
	"time"
)

func fp(v float64) *float64 { return &v }

func TestMoistureStatusBuckets(t *testing.T) {
	// Loam: FC 35, WP 15, dry threshold 25.
	a := NewAnalyzer()
	a.ConfigureZone("z1", "loam")

	cases := []struct {
		moisture float64
		want     string
	}{
		{40, "saturated"},
		{35, "saturated"},
		{30, "optimal"},
		{25, "optimal"},
		{20, "low"},
		{15, "low"},
		{10, "dry"},
	}
	for _, tc := range cases {
		a.UpdateMoisture("z1", fp(tc.moisture), time.Now())
		if got := a.MoistureStatus("z1"); got != tc.want {
			t.Errorf("moisture %v: status = %q, want %q", tc.moisture, got, tc.want)
		}
	}
}

func TestMoistureStatusUnknownWithoutSensor(t *testing.T) {
	a := NewAnalyzer()
	a.ConfigureZone("z1", "loam")
	if got := a.MoistureStatus("z1"); got != "unknown" {
		t.Fatalf("status = %q, want unknown", got)
	}
}

func TestNeedsWaterNoSensorDefaultsModerate(t *testing.T) {
	a := NewAnalyzer()
	a.ConfigureZone("z1", "loam")
	needs, urgency := a.NeedsWater("z1")
	if !needs || urgency != 0.5 {
		t.Fatalf("needs=%v urgency=%v, want true 0.5", needs, urgency)
	}
}

func TestNeedsWaterUrgencyMonotonic(t *testing.T) {
	// Drier readings must never be less urgent.
	a := NewAnalyzer()
	a.ConfigureZone("z1", "loam")

	prev := -1.0
	for _, m := range []float64{34, 30, 28, 24, 20, 16, 14, 5} {
		a.UpdateMoisture("z1", fp(m), time.Now())
		_, urgency := a.NeedsWater("z1")
		if urgency < prev {
			t.Fatalf("urgency dropped from %v to %v at moisture %v", prev, urgency, m)
		}
		prev = urgency
	}
}

func TestNeedsWaterBoundaries(t *testing.T) {
	a := NewAnalyzer()
	a.ConfigureZone("z1", "loam") // FC 35, WP 15, dry 25

	a.UpdateMoisture("z1", fp(36), time.Now())
	if needs, _ := a.NeedsWater("z1"); needs {
		t.Fatal("above wet threshold should not need water")
	}

	a.UpdateMoisture("z1", fp(14), time.Now())
	needs, urgency := a.NeedsWater("z1")
	if !needs || urgency != 1.5 {
		t.Fatalf("at wilting point: needs=%v urgency=%v, want true 1.5", needs, urgency)
	}

	// Just below dry threshold: urgency starts above 1.0.
	a.UpdateMoisture("z1", fp(24), time.Now())
	needs, urgency = a.NeedsWater("z1")
	if !needs || urgency <= 1.0 || urgency >= 1.5 {
		t.Fatalf("below dry threshold: needs=%v urgency=%v, want (1.0, 1.5)", needs, urgency)
	}

	// Between dry threshold and midpoint: mild urgency, still waters.
	a.UpdateMoisture("z1", fp(27), time.Now())
	needs, urgency = a.NeedsWater("z1")
	if !needs || urgency <= 0 || urgency > 0.5 {
		t.Fatalf("below midpoint: needs=%v urgency=%v, want (0, 0.5]", needs, urgency)
	}

	// Above midpoint of dry..wet: no water.
	a.UpdateMoisture("z1", fp(33), time.Now())
	if needs, _ := a.NeedsWater("z1"); needs {
		t.Fatal("above optimal midpoint should not need water")
	}
}

func TestMoistureTrend(t *testing.T) {
	a := NewAnalyzer()
	a.ConfigureZone("z1", "loam")
	base := time.Now().Add(-5 * time.Hour)

	// 30 -> 10 over 5h within a 6h window: about -3.3%/hr.
	a.UpdateMoisture("z1", fp(30), base)
	a.UpdateMoisture("z1", fp(10), base.Add(5*time.Hour))
	if got := a.MoistureTrend("z1", 6*time.Hour); got != "falling_fast" {
		t.Fatalf("trend = %q, want falling_fast", got)
	}

	b := NewAnalyzer()
	b.ConfigureZone("z1", "loam")
	b.UpdateMoisture("z1", fp(20), base)
	b.UpdateMoisture("z1", fp(20.5), base.Add(5*time.Hour))
	if got := b.MoistureTrend("z1", 6*time.Hour); got != "stable" {
		t.Fatalf("trend = %q, want stable", got)
	}
}

func TestMoistureTrendUnknownWithSparseData(t *testing.T) {
	a := NewAnalyzer()
	a.ConfigureZone("z1", "loam")
	if got := a.MoistureTrend("z1", 6*time.Hour); got != "unknown" {
		t.Fatalf("trend with no data = %q, want unknown", got)
	}
	// One old reading outside the window plus one inside is still only one
	// in-window sample.
	a.UpdateMoisture("z1", fp(30), time.Now().Add(-12*time.Hour))
	a.UpdateMoisture("z1", fp(25), time.Now())
	if got := a.MoistureTrend("z1", 6*time.Hour); got != "unknown" {
		t.Fatalf("trend with one in-window sample = %q, want unknown", got)
	}
}

func TestWaterDeficit(t *testing.T) {
	a := NewAnalyzer()
	a.ConfigureZone("z1", "loam") // FC 35, WP 15

	if got := a.WaterDeficit("z1"); got != 50 {
		t.Fatalf("deficit with no sensor = %v, want 50", got)
	}
	a.UpdateMoisture("z1", fp(35), time.Now())
	if got := a.WaterDeficit("z1"); got != 0 {
		t.Fatalf("deficit at FC = %v, want 0", got)
	}
	a.UpdateMoisture("z1", fp(15), time.Now())
	if got := a.WaterDeficit("z1"); got != 100 {
		t.Fatalf("deficit at WP = %v, want 100", got)
	}
	a.UpdateMoisture("z1", fp(25), time.Now())
	if got := a.WaterDeficit("z1"); math.Abs(got-50) > 1e-9 {
		t.Fatalf("deficit at midpoint = %v, want 50", got)
	}
}

func TestWateringFactorRange(t *testing.T) {
	a := NewAnalyzer()
	a.ConfigureZone("z1", "loam")

	if got := a.WateringFactor("z1"); got != 1.0 {
		t.Fatalf("factor with no sensor = %v, want 1.0", got)
	}
	a.UpdateMoisture("z1", fp(36), time.Now())
	if got := a.WateringFactor("z1"); got != 0 {
		t.Fatalf("factor saturated = %v, want 0", got)
	}
	a.UpdateMoisture("z1", fp(5), time.Now())
	got := a.WateringFactor("z1")
	if got < 1.3 || got > 1.5 {
		t.Fatalf("factor bone dry = %v, want within [1.3, 1.5]", got)
	}
}

func TestZoneAnalysisAssembly(t *testing.T) {
	a := NewAnalyzer()
	a.ConfigureZone("front", "clay")
	a.UpdateMoisture("front", fp(28), time.Now())

	za := a.ZoneAnalysis("front")
	if za.ZoneID != "front" || za.SoilType != "clay" {
		t.Fatalf("identity fields wrong: %+v", za)
	}
	if za.MoistureLevel == nil || *za.MoistureLevel != 28 {
		t.Fatalf("moisture level = %v", za.MoistureLevel)
	}
	// Clay: FC 45, WP 25, dry threshold 35. 28 is below dry, above WP.
	if za.Status != "low" || !za.NeedsWater {
		t.Fatalf("status=%q needs=%v, want low/true", za.Status, za.NeedsWater)
	}

	all := a.AllZonesAnalysis()
	if len(all) != 1 || all["front"].ZoneID != "front" {
		t.Fatalf("AllZonesAnalysis = %+v", all)
	}
}

func TestEstimateTimeToDry(t *testing.T) {
	a := NewAnalyzer()
	a.ConfigureZone("z1", "loam") // dry threshold 25

	if got := a.EstimateTimeToDry("z1", 0.1); got != nil {
		t.Fatalf("estimate with no sensor = %v, want nil", got)
	}
	a.UpdateMoisture("z1", fp(20), time.Now())
	got := a.EstimateTimeToDry("z1", 0.1)
	if got == nil || *got != 0 {
		t.Fatalf("already below dry threshold: %v, want 0h", got)
	}
}
