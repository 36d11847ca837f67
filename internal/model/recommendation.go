package model

import "time"

// Factors is the per-zone factor breakdown attached to a recommendation.
type Factors struct {
	WeatherFactor  float64 `json:"weather_factor"`
	RainFactor     float64 `json:"rain_factor"`
	MoistureFactor float64 `json:"moisture_factor"`
	SeasonalFactor float64 `json:"seasonal_factor"`
	CombinedFactor float64 `json:"combined_factor"`
	Confidence     float64 `json:"confidence"`
	CropCoeff      float64 `json:"crop_coefficient"`
	ETFactor       float64 `json:"et_factor"`
	Method         string  `json:"method,omitempty"` // et_deficit | soil_moisture | schedule
}

// WateringRecommendation is recomputed every cycle, one per zone. It always
// carries every field; SkipReason is empty when the zone should water.
type WateringRecommendation struct {
	ZoneID            string  `json:"zone_id"`
	ZoneName          string  `json:"zone_name"`
	ShouldWater       bool    `json:"should_water"`
	DurationMinutes   int     `json:"duration_minutes"`
	WaterAmountInches float64 `json:"water_amount_inches"`
	Confidence        float64 `json:"confidence"` // 0.0 to 0.95
	Priority          int     `json:"priority"`   // 1 = highest, 99 = none
	Factors           Factors `json:"factors"`
	SkipReason        string  `json:"skip_reason,omitempty"`
}

// CyclePair is one cycle/soak step in minutes. Soak is 0 on the last cycle.
type CyclePair struct {
	Cycle int `json:"cycle"`
	Soak  int `json:"soak"`
}

// ScheduleEntry is one zone's slot in the optimized schedule.
type ScheduleEntry struct {
	ZoneID            string      `json:"zone_id"`
	ZoneName          string      `json:"zone_name"`
	DurationMinutes   int         `json:"duration_minutes"`
	WaterAmountInches float64     `json:"water_amount_inches"`
	Priority          int         `json:"priority"`
	Confidence        float64     `json:"confidence"`
	Cycles            []CyclePair `json:"cycles"`
	Factors           Factors     `json:"factors"`
	Skipped           bool        `json:"skipped,omitempty"`
}

// Schedule is the current plan, recomputed wholesale on each calculation.
type Schedule struct {
	CalculatedAt  time.Time       `json:"calculated_at"`
	Zones         []ScheduleEntry `json:"zones"`
	TotalRuntime  int             `json:"total_runtime"` // active minutes, soak excluded
	ZonesToWater  int             `json:"zones_to_water"`
	NextRun       *time.Time      `json:"next_run,omitempty"`
}

// ZoneAnalysis is the soil analyzer's full view of one zone.
type ZoneAnalysis struct {
	ZoneID          string   `json:"zone_id"`
	MoistureLevel   *float64 `json:"moisture_level"` // nil when no sensor
	Status          string   `json:"status"`
	NeedsWater      bool     `json:"needs_water"`
	Urgency         float64  `json:"urgency"`
	Trend           string   `json:"trend"`
	WaterDeficitPct float64  `json:"water_deficit_pct"`
	WateringFactor  float64  `json:"watering_factor"`
	SoilType        string   `json:"soil_type"`
}
