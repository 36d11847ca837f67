// Package decision is the core engine: it fuses the weather processor, soil
// analyzer, rain sensor and per-zone ET trackers into watering
// recommendations and an optimized schedule.
package decision

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/verdegrid/irrigationd/internal/et"
	"github.com/verdegrid/irrigationd/internal/model"
	"github.com/verdegrid/irrigationd/internal/optimizer"
	"github.com/verdegrid/irrigationd/internal/soil"
	"github.com/verdegrid/irrigationd/internal/weather"
)

// weatherFreshness is how recent a weather update must be to raise
// confidence.
const weatherFreshness = 2 * time.Hour

// Model is the irrigation decision engine. Construct with New, feed it via
// the ingest paths, and ask for recommendations. Safe for concurrent use.
type Model struct {
	calculator *et.Calculator
	weather    *weather.Processor
	soil       *soil.Analyzer
	rain       *soil.RainSensor
	optimizer  *optimizer.Optimizer
	metrics    *Metrics

	mu              sync.RWMutex
	zones           map[string]model.ZoneConfig
	trackers        map[string]*et.Tracker
	lastRecs        map[string]model.WateringRecommendation
	lastCalculation time.Time

	now func() time.Time // test hook
}

// ModelStatus is the engine summary for the status surface.
type ModelStatus struct {
	ZonesConfigured int                         `json:"zones_configured"`
	ZonesNeedWater  int                         `json:"zones_needing_water"`
	LastCalculation *time.Time                  `json:"last_calculation"`
	Location        map[string]float64          `json:"location"`
	Weather         weather.Status              `json:"weather_status"`
	Rain            soil.RainStatus             `json:"rain_status"`
	TrackerStatus   map[string]et.TrackerStatus `json:"et_trackers"`
}

// New wires the engine for a fixed zone set. metrics may be nil.
func New(
	calc *et.Calculator,
	wp *weather.Processor,
	sa *soil.Analyzer,
	rs *soil.RainSensor,
	opt *optimizer.Optimizer,
	zones map[string]model.ZoneConfig,
	metrics *Metrics,
) *Model {
	m := &Model{
		calculator: calc,
		weather:    wp,
		soil:       sa,
		rain:       rs,
		optimizer:  opt,
		metrics:    metrics,
		zones:      zones,
		trackers:   make(map[string]*et.Tracker, len(zones)),
		lastRecs:   make(map[string]model.WateringRecommendation),
		now:        time.Now,
	}
	for id, z := range zones {
		sa.ConfigureZone(id, z.SoilType)
		m.trackers[id] = et.NewTracker(z.RootDepth, z.WaterHoldingCapacity(), 0.50)
	}
	return m
}

// Tracker returns the ET tracker for a zone, nil when unknown.
func (m *Model) Tracker(zoneID string) *et.Tracker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trackers[zoneID]
}

// Zones returns the configured zone set.
func (m *Model) Zones() map[string]model.ZoneConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]model.ZoneConfig, len(m.zones))
	for id, z := range m.zones {
		out[id] = z
	}
	return out
}

// UpdateWeather feeds a new snapshot and advances the ET water balances.
func (m *Model) UpdateWeather(snap model.WeatherSnapshot) {
	m.weather.Update(snap)
	m.updateTrackers()
}

// UpdateMoisture records a zone moisture reading.
func (m *Model) UpdateMoisture(zoneID string, valuePct *float64, at time.Time) {
	m.soil.UpdateMoisture(zoneID, valuePct, at)
}

// UpdateRainSensor records the rain sensor state.
func (m *Model) UpdateRainSensor(tripped bool, rate *float64, delayExpires *time.Time) {
	m.rain.Update(tripped, rate, delayExpires)
}

// updateTrackers runs the Hargreaves estimate from current conditions and
// spreads ET/precipitation over the assumed 6-hour update interval.
func (m *Model) updateTrackers() {
	factors := m.weather.ETFactors()

	// No min/max history; assume a typical 12°F-equivalent daily swing.
	const tempRangeC = 12.0
	tempC := factors.TemperatureC
	et0mm := m.calculator.CalculateET0Simple(m.now(), tempC, tempC-tempRangeC/2, tempC+tempRangeC/2)
	et0in := et.MMToInches(et0mm) * factors.SolarFactor

	precip := m.weather.PrecipLast24h()

	m.mu.RLock()
	defer m.mu.RUnlock()
	for zoneID, tracker := range m.trackers {
		zone, ok := m.zones[zoneID]
		if !ok {
			continue
		}
		etc := m.calculator.CalculateETc(et0in, zone.CropCoefficient()*zone.ETFactor())
		tracker.AddET(etc / 24 * 6)
		if precip > 0 {
			tracker.AddPrecipitation(precip/4, 0)
		}
	}
}

// checkSkip runs the hard gates in order: weather, rain sensor, saturated
// soil.
func (m *Model) checkSkip(zoneID string) (bool, string) {
	if skip, reason := m.weather.ShouldSkip(); skip {
		m.metrics.Skip("weather")
		return true, reason
	}
	if skip, reason := m.rain.ShouldSkip(); skip {
		m.metrics.Skip("rain")
		return true, reason
	}
	if moisture := m.soil.Moisture(zoneID); moisture != nil && *moisture > model.MoistureThresholdWet {
		m.metrics.Skip("moisture")
		return true, fmt.Sprintf("Soil moisture high (%.0f%%)", *moisture)
	}
	return false, ""
}

// calculateFactors assembles the factor breakdown plus the confidence score
// for a zone.
func (m *Model) calculateFactors(zoneID string, zone model.ZoneConfig) model.Factors {
	weatherFactor := m.weather.WeatherFactor()
	rainFactor := m.rain.RainFactor()
	moistureFactor := m.soil.WateringFactor(zoneID)
	seasonalFactor := optimizer.SeasonalFactor(m.now())

	combined := weatherFactor * rainFactor * moistureFactor * seasonalFactor

	confidence := 0.5
	if m.soil.Moisture(zoneID) != nil {
		confidence += 0.2
	}
	if m.weather.Fresh(weatherFreshness) {
		confidence += 0.15
	}
	tracker := m.trackers[zoneID]
	if tracker != nil && tracker.HasData() {
		confidence += 0.15
	}
	if confidence > 0.95 {
		confidence = 0.95
	}

	m.metrics.Factors(weatherFactor, rainFactor)
	if tracker != nil {
		m.metrics.ZoneFactors(zoneID, combined, tracker.WaterDeficit())
	}

	return model.Factors{
		WeatherFactor:  round2(weatherFactor),
		RainFactor:     round2(rainFactor),
		MoistureFactor: round2(moistureFactor),
		SeasonalFactor: round2(seasonalFactor),
		CombinedFactor: round2(combined),
		Confidence:     round2(confidence),
		CropCoeff:      zone.CropCoefficient(),
		ETFactor:       zone.ETFactor(),
	}
}

// waterNeed picks the best available estimation method: the ET water
// balance, then the moisture sensor deficit, then the schedule baseline.
func (m *Model) waterNeed(zoneID string, zone model.ZoneConfig, factors *model.Factors) (bool, float64) {
	tracker := m.trackers[zoneID]
	if tracker != nil && tracker.NeedsIrrigation() {
		factors.Method = "et_deficit"
		need := tracker.IrrigationNeeded() * factors.CombinedFactor
		return true, math.Max(0, need)
	}

	if moisture := m.soil.Moisture(zoneID); moisture != nil {
		factors.Method = "soil_moisture"
		needs, _ := m.soil.NeedsWater(zoneID)
		if !needs {
			return false, 0
		}
		deficitPct := m.soil.WaterDeficit(zoneID)
		base := zone.RootDepth * zone.WaterHoldingCapacity() * (deficitPct / 100)
		return true, math.Max(0, base*factors.CombinedFactor)
	}

	factors.Method = "schedule"
	if factors.CombinedFactor < 0.3 {
		return false, 0
	}
	return true, 0.5 * factors.CombinedFactor
}

// Recommendation computes the decision for one zone.
func (m *Model) Recommendation(zoneID string) model.WateringRecommendation {
	m.mu.RLock()
	zone, ok := m.zones[zoneID]
	m.mu.RUnlock()
	if !ok {
		return model.WateringRecommendation{
			ZoneID:     zoneID,
			ZoneName:   "Unknown",
			Priority:   99,
			SkipReason: "Zone not configured",
		}
	}

	if skip, reason := m.checkSkip(zoneID); skip {
		m.metrics.Recommendation(false)
		return model.WateringRecommendation{
			ZoneID:     zoneID,
			ZoneName:   zone.Name,
			Confidence: 0.9,
			Priority:   99,
			SkipReason: reason,
		}
	}

	m.mu.RLock()
	factors := m.calculateFactors(zoneID, zone)
	needsWater, amount := m.waterNeed(zoneID, zone, &factors)
	m.mu.RUnlock()

	if !needsWater || amount <= 0.01 {
		m.metrics.Recommendation(false)
		return model.WateringRecommendation{
			ZoneID:     zoneID,
			ZoneName:   zone.Name,
			Confidence: factors.Confidence,
			Priority:   99,
			Factors:    factors,
			SkipReason: "Water not needed",
		}
	}

	duration := optimizer.BaseDuration(zone, amount)
	priorities := m.optimizer.PrioritizeZones(map[string]model.ZoneAnalysis{
		zoneID: m.soil.ZoneAnalysis(zoneID),
	})
	priority, ok := priorities[zoneID]
	if !ok {
		priority = 5
	}

	m.metrics.Recommendation(true)
	return model.WateringRecommendation{
		ZoneID:            zoneID,
		ZoneName:          zone.Name,
		ShouldWater:       true,
		DurationMinutes:   duration,
		WaterAmountInches: amount,
		Confidence:        factors.Confidence,
		Priority:          priority,
		Factors:           factors,
	}
}

// AllRecommendations recomputes every zone and caches the results.
func (m *Model) AllRecommendations() map[string]model.WateringRecommendation {
	m.mu.RLock()
	ids := make([]string, 0, len(m.zones))
	for id := range m.zones {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)

	out := make(map[string]model.WateringRecommendation, len(ids))
	for _, id := range ids {
		out[id] = m.Recommendation(id)
	}

	m.mu.Lock()
	for id, rec := range out {
		m.lastRecs[id] = rec
	}
	m.lastCalculation = m.now()
	m.mu.Unlock()
	return out
}

// LastRecommendations returns the cached set without recomputation.
func (m *Model) LastRecommendations() map[string]model.WateringRecommendation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]model.WateringRecommendation, len(m.lastRecs))
	for id, rec := range m.lastRecs {
		out[id] = rec
	}
	return out
}

// RecommendedDuration returns the cached duration for a zone, recomputing
// when the cache is cold. Zero when the zone should not water.
func (m *Model) RecommendedDuration(zoneID string) int {
	m.mu.RLock()
	rec, ok := m.lastRecs[zoneID]
	m.mu.RUnlock()
	if ok && rec.ShouldWater {
		return rec.DurationMinutes
	}
	fresh := m.Recommendation(zoneID)
	if !fresh.ShouldWater {
		return 0
	}
	return fresh.DurationMinutes
}

// Recalculate drops the cache and recomputes all zones.
func (m *Model) Recalculate() {
	m.mu.Lock()
	m.lastRecs = make(map[string]model.WateringRecommendation)
	m.mu.Unlock()
	m.AllRecommendations()
}

// OptimizedSchedule recomputes all zones, reprioritizes them against each
// other, and fits them into the daily window.
func (m *Model) OptimizedSchedule() []model.ScheduleEntry {
	recs := m.AllRecommendations()

	priorities := m.optimizer.PrioritizeZones(m.soil.AllZonesAnalysis())

	list := make([]model.WateringRecommendation, 0, len(recs))
	for zoneID, rec := range recs {
		if p, ok := priorities[zoneID]; ok {
			rec.Priority = p
		} else {
			rec.Priority = 99
		}
		list = append(list, rec)
	}

	schedule := m.optimizer.OptimizeSchedule(list, 0)

	total := 0
	for _, e := range schedule {
		total += e.DurationMinutes
	}
	m.metrics.ScheduleRuntime(total)
	return schedule
}

// RecordIrrigation books applied water into a zone's balance and resets the
// tracker after a deep watering (at or above readily-available depletion).
func (m *Model) RecordIrrigation(zoneID string, inches float64) {
	m.mu.RLock()
	tracker := m.trackers[zoneID]
	zone, ok := m.zones[zoneID]
	m.mu.RUnlock()
	if tracker == nil || !ok {
		return
	}
	tracker.AddIrrigation(inches, zone.Efficiency)
	if !tracker.NeedsIrrigation() && tracker.WaterDeficit() == 0 {
		tracker.Reset()
	}
}

// Status assembles the full engine summary.
func (m *Model) Status() ModelStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needing := 0
	for _, rec := range m.lastRecs {
		if rec.ShouldWater {
			needing++
		}
	}
	var last *time.Time
	if !m.lastCalculation.IsZero() {
		t := m.lastCalculation
		last = &t
	}
	trackers := make(map[string]et.TrackerStatus, len(m.trackers))
	for id, tr := range m.trackers {
		trackers[id] = tr.Status()
	}
	return ModelStatus{
		ZonesConfigured: len(m.zones),
		ZonesNeedWater:  needing,
		LastCalculation: last,
		Location: map[string]float64{
			"lat":       m.calculator.Latitude,
			"lon":       m.calculator.Longitude,
			"elevation": m.calculator.Elevation,
		},
		Weather:       m.weather.StatusSnapshot(),
		Rain:          m.rain.Status(),
		TrackerStatus: trackers,
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
