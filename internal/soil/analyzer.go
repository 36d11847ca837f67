// Package soil tracks per-zone moisture readings and the rain sensor, and
// derives the moisture status, urgency, deficit and adjustment factors the
// decision model consumes.
package soil

import (
	"math"
	"sync"
	"time"

	"github.com/verdegrid/irrigationd/internal/model"
)

const historyCap = 288 // 24h of 5-minute samples

type calibration struct {
	dryThreshold   float64 // MAD point, water below this
	wetThreshold   float64 // skip above this
	fieldCapacity  float64
	wiltingPoint   float64
	availableWater float64
}

type sample struct {
	value float64
	at    time.Time
}

type zoneState struct {
	soilType string
	moisture *float64
	history  []sample
	cal      calibration
}

// Analyzer holds moisture state for all configured zones. Safe for
// concurrent use.
type Analyzer struct {
	mu    sync.RWMutex
	zones map[string]*zoneState

	now func() time.Time // test hook
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{
		zones: make(map[string]*zoneState),
		now:   time.Now,
	}
}

// ConfigureZone registers a zone and derives its calibration from the soil
// type. The dry threshold follows the 50% management-allowed-depletion rule;
// the wet threshold is field capacity.
func (a *Analyzer) ConfigureZone(zoneID, soilType string) {
	info, ok := model.SoilTypes[soilType]
	if !ok {
		info = model.SoilTypes["loam"]
	}
	fc := info.FieldCapacity
	wp := info.WiltingPoint
	avail := fc - wp

	a.mu.Lock()
	defer a.mu.Unlock()
	z := a.zones[zoneID]
	if z == nil {
		z = &zoneState{}
		a.zones[zoneID] = z
	}
	z.soilType = soilType
	z.cal = calibration{
		dryThreshold:   fc - avail*0.5,
		wetThreshold:   fc,
		fieldCapacity:  fc,
		wiltingPoint:   wp,
		availableWater: avail,
	}
}

// UpdateMoisture records a reading. A nil value means the sensor is offline
// and leaves the last known level in place.
func (a *Analyzer) UpdateMoisture(zoneID string, valuePct *float64, at time.Time) {
	if valuePct == nil {
		return
	}
	if at.IsZero() {
		at = a.now()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	z := a.zones[zoneID]
	if z == nil {
		z = &zoneState{soilType: "unknown"}
		a.zones[zoneID] = z
	}
	v := *valuePct
	z.moisture = &v
	z.history = append(z.history, sample{value: v, at: at})
	if len(z.history) > historyCap {
		z.history = z.history[len(z.history)-historyCap:]
	}
}

// Moisture returns the last known level, or nil when never reported.
func (a *Analyzer) Moisture(zoneID string) *float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	z := a.zones[zoneID]
	if z == nil || z.moisture == nil {
		return nil
	}
	v := *z.moisture
	return &v
}

// WetThreshold returns the skip-above level for a zone; ok is false for
// unconfigured zones.
func (a *Analyzer) WetThreshold(zoneID string) (float64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	z := a.zones[zoneID]
	if z == nil || z.cal.wetThreshold == 0 {
		return 0, false
	}
	return z.cal.wetThreshold, true
}

// MoistureStatus buckets the current level into
// dry / low / optimal / wet / saturated / unknown.
func (a *Analyzer) MoistureStatus(zoneID string) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.statusLocked(zoneID)
}

func (a *Analyzer) statusLocked(zoneID string) string {
	z := a.zones[zoneID]
	if z == nil || z.moisture == nil {
		return "unknown"
	}
	m := *z.moisture
	cal := z.cal
	switch {
	case m >= cal.fieldCapacity:
		return "saturated"
	case m >= cal.wetThreshold:
		return "wet"
	case m >= cal.dryThreshold:
		return "optimal"
	case m >= cal.wiltingPoint:
		return "low"
	default:
		return "dry"
	}
}

// NeedsWater reports whether the zone should be watered and how urgently.
// Urgency 0 means no need, 1.0+ means urgent, 1.5 is critical (at or below
// wilting point). A zone with no sensor gets moderate urgency.
func (a *Analyzer) NeedsWater(zoneID string) (bool, float64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.needsWaterLocked(zoneID)
}

func (a *Analyzer) needsWaterLocked(zoneID string) (bool, float64) {
	z := a.zones[zoneID]
	if z == nil || z.moisture == nil {
		return true, 0.5
	}
	m := *z.moisture
	cal := z.cal

	if m >= cal.wetThreshold {
		return false, 0
	}
	if m <= cal.wiltingPoint {
		return true, 1.5
	}
	if m < cal.dryThreshold {
		urgency := 1.0 + (cal.dryThreshold-m)/(cal.dryThreshold-cal.wiltingPoint)*0.5
		return true, urgency
	}

	// Between the dry and wet thresholds: water only below the midpoint.
	optimal := (cal.dryThreshold + cal.wetThreshold) / 2
	if m < optimal {
		return true, (optimal - m) / (optimal - cal.dryThreshold) * 0.5
	}
	return false, 0
}

// MoistureTrend classifies the slope of readings over the window as one of
// rising / rising_slow / stable / falling_slow / falling / falling_fast /
// unknown. Fewer than two in-window samples is unknown.
func (a *Analyzer) MoistureTrend(zoneID string, window time.Duration) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.trendLocked(zoneID, window)
}

func (a *Analyzer) trendLocked(zoneID string, window time.Duration) string {
	z := a.zones[zoneID]
	if z == nil || len(z.history) < 2 {
		return "unknown"
	}
	cutoff := a.now().Add(-window)
	var recent []sample
	for _, s := range z.history {
		if !s.at.Before(cutoff) {
			recent = append(recent, s)
		}
	}
	if len(recent) < 2 {
		return "unknown"
	}

	change := recent[len(recent)-1].value - recent[0].value
	rate := change / window.Hours() // % per hour

	switch {
	case rate > 2:
		return "rising"
	case rate > 0.5:
		return "rising_slow"
	case rate < -3:
		return "falling_fast"
	case rate < -1:
		return "falling"
	case rate < -0.2:
		return "falling_slow"
	default:
		return "stable"
	}
}

// WaterDeficit is the depletion of available water as a percentage: 0 at
// field capacity, 100 at wilting point, 50 when unknown.
func (a *Analyzer) WaterDeficit(zoneID string) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.deficitLocked(zoneID)
}

func (a *Analyzer) deficitLocked(zoneID string) float64 {
	z := a.zones[zoneID]
	if z == nil || z.moisture == nil {
		return 50
	}
	m := *z.moisture
	cal := z.cal
	if cal.availableWater <= 0 {
		return 50
	}
	switch {
	case m >= cal.fieldCapacity:
		return 0
	case m <= cal.wiltingPoint:
		return 100
	default:
		return (cal.fieldCapacity - m) / cal.availableWater * 100
	}
}

// WateringFactor scales the dose by moisture state, 0 (saturated) to ~1.5
// (bone dry). No sensor data means baseline 1.0.
func (a *Analyzer) WateringFactor(zoneID string) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.wateringFactorLocked(zoneID)
}

func (a *Analyzer) wateringFactorLocked(zoneID string) float64 {
	z := a.zones[zoneID]
	if z == nil || z.moisture == nil {
		return 1.0
	}
	m := *z.moisture
	cal := z.cal

	switch {
	case m >= cal.fieldCapacity:
		return 0
	case m >= cal.dryThreshold+10:
		return 0.3
	case m >= cal.dryThreshold:
		return 0.7
	case m >= cal.wiltingPoint+5:
		deficitRatio := (cal.dryThreshold - m) / (cal.dryThreshold - cal.wiltingPoint)
		return 1.0 + deficitRatio*0.3
	default:
		return 1.3 + (cal.wiltingPoint-m)/cal.wiltingPoint*0.2
	}
}

// EstimateTimeToDry estimates hours until the zone hits its dry threshold,
// based on the recent trend or the given ET rate. Nil when no sensor data or
// the level is not depleting.
func (a *Analyzer) EstimateTimeToDry(zoneID string, etRatePerDay float64) *float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	z := a.zones[zoneID]
	if z == nil || z.moisture == nil {
		return nil
	}
	m := *z.moisture
	if m <= z.cal.dryThreshold {
		h := 0.0
		return &h
	}

	var rate float64 // % per hour
	switch a.trendLocked(zoneID, 6*time.Hour) {
	case "falling_fast":
		rate = 4.0
	case "falling":
		rate = 2.0
	case "falling_slow":
		rate = 0.5
	default:
		// Roughly 0.1in of ET depletes 1% soil moisture per day.
		rate = etRatePerDay * 10 / 24
	}
	if rate <= 0 {
		return nil
	}
	h := (m - z.cal.dryThreshold) / rate
	return &h
}

// ZoneAnalysis assembles the full per-zone view.
func (a *Analyzer) ZoneAnalysis(zoneID string) model.ZoneAnalysis {
	a.mu.RLock()
	defer a.mu.RUnlock()

	z := a.zones[zoneID]
	needs, urgency := a.needsWaterLocked(zoneID)

	out := model.ZoneAnalysis{
		ZoneID:          zoneID,
		Status:          a.statusLocked(zoneID),
		NeedsWater:      needs,
		Urgency:         math.Round(urgency*100) / 100,
		Trend:           a.trendLocked(zoneID, 6*time.Hour),
		WaterDeficitPct: math.Round(a.deficitLocked(zoneID)*10) / 10,
		WateringFactor:  math.Round(a.wateringFactorLocked(zoneID)*100) / 100,
		SoilType:        "unknown",
	}
	if z != nil {
		if z.soilType != "" {
			out.SoilType = z.soilType
		}
		if z.moisture != nil {
			v := *z.moisture
			out.MoistureLevel = &v
		}
	}
	return out
}

// AllZonesAnalysis returns the analysis for every known zone.
func (a *Analyzer) AllZonesAnalysis() map[string]model.ZoneAnalysis {
	a.mu.RLock()
	ids := make([]string, 0, len(a.zones))
	for id := range a.zones {
		ids = append(ids, id)
	}
	a.mu.RUnlock()

	out := make(map[string]model.ZoneAnalysis, len(ids))
	for _, id := range ids {
		out[id] = a.ZoneAnalysis(id)
	}
	return out
}
