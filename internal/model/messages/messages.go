// Package messages holds the MQTT payload types exchanged with sensors and
// the local zone controller.
package messages

import "time"

// MoistureMessage carries one soil moisture sample on sensor/moisture/{zone}.
type MoistureMessage struct {
	ZoneID    string    `json:"zone_id"`
	ValuePct  *float64  `json:"value_pct"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
}

// RainMessage carries the rain sensor state on sensor/rain.
type RainMessage struct {
	Tripped          bool      `json:"tripped"`
	ExternalRainRate *float64  `json:"external_rain_rate"`
	RainDelayExpires string    `json:"rain_delay_expires,omitempty"` // ISO-8601
	Timestamp        time.Time `json:"timestamp"`
}

// ZoneCommand tells the local controller to start or stop a zone. Published
// on command/zone/{zone}.
type ZoneCommand struct {
	ZoneID          string    `json:"zone_id"`
	Action          string    `json:"action"` // start | stop
	DurationSeconds int       `json:"duration_seconds,omitempty"`
	RequestID       string    `json:"request_id"`
	Timestamp       time.Time `json:"timestamp"`
}

// ZoneResultEvent is published by the local controller when a zone run ends.
type ZoneResultEvent struct {
	ZoneID        string    `json:"zone_id"`
	RequestID     string    `json:"request_id"`
	Status        string    `json:"status"` // OK | FAIL
	SecondsActive int       `json:"seconds_active"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// DecisionEvent records why/what the engine decided, published on
// event/decision.
type DecisionEvent struct {
	DecisionID   string    `json:"decision_id"`
	Type         string    `json:"type"` // watering | skipped | ai_skipped
	Reason       string    `json:"reason"`
	ZonesToWater int       `json:"zones_to_water"`
	Confidence   float64   `json:"confidence"`
	Timestamp    time.Time `json:"timestamp"`
}
