package model

import "time"

// ForecastPoint is one hourly (or 3-hourly) forecast slot.
type ForecastPoint struct {
	Time                     time.Time `json:"datetime"`
	TemperatureF             float64   `json:"temperature"`
	PrecipitationIn          float64   `json:"precipitation"`
	PrecipitationProbability float64   `json:"precipitation_probability"` // percent
	WindSpeedMph             float64   `json:"wind_speed"`
	HumidityPct              float64   `json:"humidity"`
}

// WeatherSnapshot is the current-conditions view consumed from the weather
// source. Pointer fields are nil when the source did not report them.
type WeatherSnapshot struct {
	Condition             string          `json:"condition"`
	TemperatureF          *float64        `json:"temperature_f"`
	HumidityPct           *float64        `json:"humidity_pct"`
	WindSpeedMph          *float64        `json:"wind_speed_mph"`
	PrecipitationLast24In float64         `json:"precipitation_in_last_24h"`
	Forecast              []ForecastPoint `json:"forecast"`
}

// MoistureReading is one zone's soil moisture sample.
type MoistureReading struct {
	ValuePct    *float64  `json:"value_pct"` // nil when the sensor is offline
	Unit        string    `json:"unit"`
	LastUpdated time.Time `json:"last_updated"`
}

// RainSensorState is the rain sensor snapshot.
type RainSensorState struct {
	Tripped          bool       `json:"tripped"`
	ExternalRainRate *float64   `json:"external_rain_rate"` // inches/hour
	RainDelayExpires *time.Time `json:"rain_delay_expires"`
}

// RunRecord is one completed (or failed) watering run.
type RunRecord struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Zones         int       `json:"zones"`
	TotalDuration int       `json:"total_duration"` // minutes
	Success       bool      `json:"success"`
}

// DecisionRecord is one daily watering decision.
type DecisionRecord struct {
	ID           string    `json:"id"`
	Date         string    `json:"date"` // YYYY-MM-DD
	Timestamp    time.Time `json:"timestamp"`
	Type         string    `json:"type"` // watering | skipped | ai_skipped
	Reason       string    `json:"reason"`
	ZonesToWater int       `json:"zones_to_water"`
	Confidence   float64   `json:"confidence"`
}
