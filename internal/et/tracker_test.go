package et

import (
	"math"
	"testing"
)

func TestTrackerDeficitAccumulation(t *testing.T) {
	// 6in roots x 0.17 in/in capacity: TAW 1.02in, RAW 0.51in.
	tr := NewTracker(6.0, 0.17, 0.5)

	if tr.NeedsIrrigation() {
		t.Fatal("fresh tracker should not need irrigation")
	}
	tr.AddET(0.3)
	if got := tr.WaterDeficit(); math.Abs(got-0.3) > 1e-9 {
		t.Fatalf("deficit = %v, want 0.3", got)
	}
	if tr.NeedsIrrigation() {
		t.Fatal("deficit below RAW should not trigger irrigation")
	}
	if got := tr.IrrigationNeeded(); got != 0 {
		t.Fatalf("IrrigationNeeded = %v, want 0 below RAW", got)
	}

	tr.AddET(0.3)
	if !tr.NeedsIrrigation() {
		t.Fatal("deficit at 0.6 >= RAW 0.51 should trigger irrigation")
	}
	if got := tr.IrrigationNeeded(); math.Abs(got-0.6) > 1e-9 {
		t.Fatalf("IrrigationNeeded = %v, want 0.6", got)
	}
}

func TestTrackerPrecipEfficiency(t *testing.T) {
	tr := NewTracker(6.0, 0.17, 0.5)
	tr.AddET(1.0)
	tr.AddPrecipitation(0.4, 0) // effective 0.3 at default 75%

	if got := tr.WaterDeficit(); math.Abs(got-0.7) > 1e-9 {
		t.Fatalf("deficit = %v, want 0.7", got)
	}
}

func TestTrackerIrrigationEfficiency(t *testing.T) {
	tr := NewTracker(6.0, 0.17, 0.5)
	tr.AddET(1.0)
	tr.AddIrrigation(0.5, 0) // effective 0.4 at default 80%

	if got := tr.WaterDeficit(); math.Abs(got-0.6) > 1e-9 {
		t.Fatalf("deficit = %v, want 0.6", got)
	}
}

func TestTrackerDeficitNeverNegative(t *testing.T) {
	tr := NewTracker(6.0, 0.17, 0.5)
	tr.AddET(0.1)
	tr.AddPrecipitation(2.0, 1.0)

	if got := tr.WaterDeficit(); got != 0 {
		t.Fatalf("deficit = %v, want 0 after surplus rain", got)
	}
}

func TestTrackerIrrigationNeededCappedAtTAW(t *testing.T) {
	tr := NewTracker(6.0, 0.17, 0.5)
	tr.AddET(5.0)

	if got := tr.IrrigationNeeded(); math.Abs(got-1.02) > 1e-9 {
		t.Fatalf("IrrigationNeeded = %v, want TAW 1.02", got)
	}
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker(6.0, 0.17, 0.5)
	tr.AddET(2.0)
	tr.AddPrecipitation(0.5, 0)
	tr.AddIrrigation(0.5, 0)
	tr.Reset()

	s := tr.Status()
	if s.CumulativeET != 0 || s.CumulativePrecip != 0 || s.CumulativeIrrigation != 0 {
		t.Fatalf("accumulators not zeroed after reset: %+v", s)
	}
	if s.WaterDeficit != 0 || s.NeedsIrrigation {
		t.Fatalf("deficit state not cleared after reset: %+v", s)
	}
	if tr.HasData() {
		t.Fatal("HasData should be false after reset")
	}
}

func TestTrackerStatusSnapshot(t *testing.T) {
	tr := NewTracker(6.0, 0.17, 0.5)
	tr.AddET(0.51)

	s := tr.Status()
	if !s.NeedsIrrigation {
		t.Fatal("status should report irrigation needed at RAW")
	}
	if math.Abs(s.DepletionPercent-50) > 1e-6 {
		t.Fatalf("depletion = %v%%, want 50", s.DepletionPercent)
	}
	if s.LastUpdate == nil {
		t.Fatal("LastUpdate should be set after AddET")
	}
}
