package soil

import (
	"fmt"
	"sync"
	"time"
)

// RainSensor tracks the physical rain sensor plus any operator rain delay.
// Safe for concurrent use.
type RainSensor struct {
	mu               sync.RWMutex
	tripped          bool
	tripTime         *time.Time
	externalRainRate *float64   // inches/hour
	rainDelayExpires *time.Time

	now func() time.Time // test hook
}

// RainStatus is the sensor snapshot for the status surface.
type RainStatus struct {
	Tripped          bool       `json:"tripped"`
	IsRaining        bool       `json:"is_raining"`
	Intensity        string     `json:"intensity"`
	ExternalRainRate *float64   `json:"external_rain_rate"`
	RainFactor       float64    `json:"rain_factor"`
	RainDelayActive  bool       `json:"rain_delay_active"`
	RainDelayExpires *time.Time `json:"rain_delay_expires"`
}

func NewRainSensor() *RainSensor {
	return &RainSensor{now: time.Now}
}

// Update applies a sensor report. The trip time is latched on the rising
// edge only.
func (r *RainSensor) Update(tripped bool, externalRainRate *float64, rainDelayExpires *time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tripped && !r.tripped {
		t := r.now()
		r.tripTime = &t
	}
	r.tripped = tripped
	r.externalRainRate = externalRainRate
	r.rainDelayExpires = rainDelayExpires
}

// SetRainDelay arms (or with nil, clears) the operator rain delay.
func (r *RainSensor) SetRainDelay(expires *time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rainDelayExpires = expires
}

// RainDelayExpires returns the active delay expiry, nil when none or past.
func (r *RainSensor) RainDelayExpires() *time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.rainDelayExpires == nil || !r.rainDelayExpires.After(r.now()) {
		return nil
	}
	t := *r.rainDelayExpires
	return &t
}

// IsRaining is true when the sensor is tripped or an external gauge reports
// a positive rate.
func (r *RainSensor) IsRaining() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isRainingLocked()
}

func (r *RainSensor) isRainingLocked() bool {
	if r.tripped {
		return true
	}
	return r.externalRainRate != nil && *r.externalRainRate > 0
}

// Intensity buckets the current rain into none / light / moderate / heavy.
// A tripped sensor with no rate data counts as light.
func (r *RainSensor) Intensity() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.intensityLocked()
}

func (r *RainSensor) intensityLocked() string {
	if !r.isRainingLocked() {
		return "none"
	}
	rate := 0.0
	if r.externalRainRate != nil {
		rate = *r.externalRainRate
	}
	switch {
	case rate >= 0.5:
		return "heavy"
	case rate >= 0.2:
		return "moderate"
	case rate > 0:
		return "light"
	case r.tripped:
		return "light"
	default:
		return "none"
	}
}

// RainFactor is the dose multiplier: 0 for heavy rain or an active delay,
// 0.3 moderate, 0.6 light, 1.0 dry.
func (r *RainSensor) RainFactor() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rainFactorLocked()
}

func (r *RainSensor) rainFactorLocked() float64 {
	if !r.isRainingLocked() {
		if r.rainDelayExpires != nil && r.rainDelayExpires.After(r.now()) {
			return 0
		}
		return 1.0
	}
	switch r.intensityLocked() {
	case "heavy":
		return 0
	case "moderate":
		return 0.3
	case "light":
		return 0.6
	default:
		return 1.0
	}
}

// TimeSinceRainStopped is nil while raining or when the sensor never tripped.
func (r *RainSensor) TimeSinceRainStopped() *time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.isRainingLocked() || r.tripTime == nil {
		return nil
	}
	d := r.now().Sub(*r.tripTime)
	return &d
}

// ShouldSkip hard-gates on heavy/moderate rain or an active rain delay.
func (r *RainSensor) ShouldSkip() (bool, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch r.intensityLocked() {
	case "heavy":
		return true, "Heavy rain detected"
	case "moderate":
		return true, "Moderate rain detected"
	}
	if r.rainDelayExpires != nil && r.rainDelayExpires.After(r.now()) {
		remaining := r.rainDelayExpires.Sub(r.now())
		return true, fmt.Sprintf("Rain delay active (%dh remaining)", int(remaining.Hours()))
	}
	return false, ""
}

// Status returns the snapshot for the HTTP status surface.
func (r *RainSensor) Status() RainStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delayActive := r.rainDelayExpires != nil && r.rainDelayExpires.After(r.now())
	var expires *time.Time
	if r.rainDelayExpires != nil {
		t := *r.rainDelayExpires
		expires = &t
	}
	return RainStatus{
		Tripped:          r.tripped,
		IsRaining:        r.isRainingLocked(),
		Intensity:        r.intensityLocked(),
		ExternalRainRate: r.externalRainRate,
		RainFactor:       r.rainFactorLocked(),
		RainDelayActive:  delayActive,
		RainDelayExpires: expires,
	}
}
