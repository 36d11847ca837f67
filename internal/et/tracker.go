package et

import (
	"math"
	"sync"
	"time"
)

// Default efficiency multipliers applied before accumulating.
const (
	DefaultPrecipEfficiency     = 0.75
	DefaultIrrigationEfficiency = 0.80
)

// Tracker keeps the cumulative ET vs. effective precipitation/irrigation
// balance for one zone against its soil's available-water capacity. It is
// reset explicitly after a deep irrigation event; that reset is the only way
// the deficit returns to zero outside continued net gain.
type Tracker struct {
	mu sync.Mutex

	rootZoneDepth     float64 // inches
	soilWaterCapacity float64 // inches water per inch soil
	allowedDepletion  float64 // fraction of TAW

	taw float64 // total available water, inches
	raw float64 // readily available water, inches

	cumulativeET         float64
	cumulativePrecip     float64
	cumulativeIrrigation float64
	lastUpdate           time.Time
}

// TrackerStatus is the snapshot exposed on the status surface.
type TrackerStatus struct {
	CumulativeET         float64    `json:"cumulative_et"`
	CumulativePrecip     float64    `json:"cumulative_precip"`
	CumulativeIrrigation float64    `json:"cumulative_irrigation"`
	WaterDeficit         float64    `json:"water_deficit"`
	NeedsIrrigation      bool       `json:"needs_irrigation"`
	IrrigationNeeded     float64    `json:"irrigation_needed"`
	TotalAvailableWater  float64    `json:"total_available_water"`
	ReadilyAvailable     float64    `json:"readily_available_water"`
	DepletionPercent     float64    `json:"depletion_percent"`
	LastUpdate           *time.Time `json:"last_update"`
}

// NewTracker builds a tracker for a zone. allowedDepletion defaults to 0.50
// when out of range.
func NewTracker(rootZoneDepthInches, soilWaterCapacity, allowedDepletion float64) *Tracker {
	if allowedDepletion <= 0 || allowedDepletion > 1 {
		allowedDepletion = 0.50
	}
	taw := rootZoneDepthInches * soilWaterCapacity
	return &Tracker{
		rootZoneDepth:     rootZoneDepthInches,
		soilWaterCapacity: soilWaterCapacity,
		allowedDepletion:  allowedDepletion,
		taw:               taw,
		raw:               taw * allowedDepletion,
	}
}

// WaterDeficit is the current deficit in inches; never negative.
func (t *Tracker) WaterDeficit() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deficitLocked()
}

func (t *Tracker) deficitLocked() float64 {
	return math.Max(0, t.cumulativeET-t.cumulativePrecip-t.cumulativeIrrigation)
}

// NeedsIrrigation reports whether the deficit has crossed the readily
// available water threshold.
func (t *Tracker) NeedsIrrigation() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deficitLocked() >= t.raw
}

// IrrigationNeeded is the refill amount in inches: the deficit, capped at
// total available water, and zero until RAW is crossed.
func (t *Tracker) IrrigationNeeded() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	d := t.deficitLocked()
	if d < t.raw {
		return 0
	}
	return math.Min(d, t.taw)
}

// AddET accumulates ET loss in inches.
func (t *Tracker) AddET(inches float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cumulativeET += inches
	t.lastUpdate = time.Now()
}

// AddPrecipitation accumulates rainfall, discounted by efficiency. Pass a
// non-positive efficiency for the default.
func (t *Tracker) AddPrecipitation(inches, efficiency float64) {
	if efficiency <= 0 {
		efficiency = DefaultPrecipEfficiency
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cumulativePrecip += inches * efficiency
}

// AddIrrigation accumulates applied irrigation, discounted by efficiency.
func (t *Tracker) AddIrrigation(inches, efficiency float64) {
	if efficiency <= 0 {
		efficiency = DefaultIrrigationEfficiency
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cumulativeIrrigation += inches * efficiency
}

// Reset zeroes all three accumulators, e.g. after a deep irrigation.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cumulativeET = 0
	t.cumulativePrecip = 0
	t.cumulativeIrrigation = 0
	t.lastUpdate = time.Now()
}

// HasData reports whether any ET has accumulated since the last reset.
func (t *Tracker) HasData() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cumulativeET > 0
}

// Status returns the current water balance snapshot.
func (t *Tracker) Status() TrackerStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := t.deficitLocked()
	needed := 0.0
	if d >= t.raw {
		needed = math.Min(d, t.taw)
	}
	depletion := 0.0
	if t.taw > 0 {
		depletion = d / t.taw * 100
	}
	var last *time.Time
	if !t.lastUpdate.IsZero() {
		u := t.lastUpdate
		last = &u
	}
	return TrackerStatus{
		CumulativeET:         t.cumulativeET,
		CumulativePrecip:     t.cumulativePrecip,
		CumulativeIrrigation: t.cumulativeIrrigation,
		WaterDeficit:         d,
		NeedsIrrigation:      d >= t.raw,
		IrrigationNeeded:     needed,
		TotalAvailableWater:  t.taw,
		ReadilyAvailable:     t.raw,
		DepletionPercent:     depletion,
		LastUpdate:           last,
	}
}
