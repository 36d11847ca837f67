// Package weather turns raw weather snapshots into the multiplicative
// watering factor, the hard skip gate, and the solar/ET inputs the decision
// model consumes.
package weather

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/verdegrid/irrigationd/internal/model"
)

// ETFactors carries the weather-derived inputs for the ET estimate.
type ETFactors struct {
	TemperatureF float64 `json:"temperature_f"`
	TemperatureC float64 `json:"temperature_c"`
	HumidityPct  float64 `json:"humidity"`
	WindSpeedMph float64 `json:"wind_speed_mph"`
	WindSpeedMS  float64 `json:"wind_speed_ms"`
	SolarFactor  float64 `json:"solar_factor"`
}

// Status is the processor snapshot exposed on the status surface.
type Status struct {
	Temperature       *float64   `json:"temperature"`
	Humidity          *float64   `json:"humidity"`
	WindSpeed         *float64   `json:"wind_speed"`
	Condition         string     `json:"condition"`
	PrecipLast24h     float64    `json:"precipitation_last_24h"`
	PrecipNext24h     float64    `json:"precipitation_next_24h"`
	PrecipProbability float64    `json:"precipitation_probability"`
	WeatherFactor     float64    `json:"weather_factor"`
	ShouldSkip        bool       `json:"should_skip"`
	SkipReason        string     `json:"skip_reason,omitempty"`
	LastUpdate        *time.Time `json:"last_update"`
}

// Processor holds the latest weather snapshot and derives decision inputs
// from it. All methods are safe for concurrent use.
type Processor struct {
	mu         sync.RWMutex
	snapshot   model.WeatherSnapshot
	lastUpdate time.Time

	now func() time.Time // test hook
}

func NewProcessor() *Processor {
	return &Processor{now: time.Now}
}

// Update replaces current conditions. An empty forecast keeps the previous
// one so a degraded source does not wipe forecast-based adjustments.
func (p *Processor) Update(snap model.WeatherSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(snap.Forecast) == 0 {
		snap.Forecast = p.snapshot.Forecast
	}
	p.snapshot = snap
	p.lastUpdate = p.now()
}

// Snapshot returns a copy of the current conditions.
func (p *Processor) Snapshot() model.WeatherSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

// LastUpdate is zero until the first Update.
func (p *Processor) LastUpdate() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastUpdate
}

// Fresh reports whether an update arrived within maxAge.
func (p *Processor) Fresh(maxAge time.Duration) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.lastUpdate.IsZero() && p.now().Sub(p.lastUpdate) <= maxAge
}

// PrecipLast24h is reported by the source, not summed from the forecast.
func (p *Processor) PrecipLast24h() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot.PrecipitationLast24In
}

// PrecipNext24h sums forecast precipitation over the next 24 hours.
func (p *Processor) PrecipNext24h() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.precipNext24hLocked()
}

func (p *Processor) precipNext24hLocked() float64 {
	now := p.now()
	cutoff := now.Add(24 * time.Hour)
	total := 0.0
	for _, f := range p.snapshot.Forecast {
		if !f.Time.Before(now) && !f.Time.After(cutoff) {
			total += f.PrecipitationIn
		}
	}
	return total
}

// PrecipProbabilityNext24h averages forecast precipitation probability over
// the next 24 hours; zero when no forecast slots fall in the window.
func (p *Processor) PrecipProbabilityNext24h() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.precipProbabilityLocked()
}

func (p *Processor) precipProbabilityLocked() float64 {
	now := p.now()
	cutoff := now.Add(24 * time.Hour)
	sum, n := 0.0, 0
	for _, f := range p.snapshot.Forecast {
		if !f.Time.Before(now) && !f.Time.After(cutoff) {
			sum += f.PrecipitationProbability
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// TemperatureRangeNext24h returns min/max forecast temperature; nils when the
// forecast window is empty.
func (p *Processor) TemperatureRangeNext24h() (minF, maxF *float64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	now := p.now()
	cutoff := now.Add(24 * time.Hour)
	for _, f := range p.snapshot.Forecast {
		if f.Time.Before(now) || f.Time.After(cutoff) {
			continue
		}
		t := f.TemperatureF
		if minF == nil || t < *minF {
			v := t
			minF = &v
		}
		if maxF == nil || t > *maxF {
			v := t
			maxF = &v
		}
	}
	return minF, maxF
}

// WeatherFactor runs the multiplicative adjustment pipeline. The result is
// clamped to [0, 1.5]; freeze and heavy recent rain short-circuit to 0.
func (p *Processor) WeatherFactor() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := p.snapshot
	factor := 1.0

	if s.TemperatureF != nil && *s.TemperatureF <= model.TempThresholdFreeze {
		return 0
	}

	recent := s.PrecipitationLast24In
	switch {
	case recent >= model.RainThresholdHeavy:
		return 0
	case recent >= model.RainThresholdModerate:
		factor *= 0.5
	case recent >= model.RainThresholdLight:
		factor *= 0.75
	}

	forecastPrecip := p.precipNext24hLocked()
	forecastProb := p.precipProbabilityLocked()
	switch {
	case forecastProb > 70 && forecastPrecip >= model.RainThresholdModerate:
		factor *= 0.3
	case forecastProb > 50 && forecastPrecip >= model.RainThresholdLight:
		factor *= 0.6
	}

	if s.TemperatureF != nil {
		switch {
		case *s.TemperatureF >= model.TempThresholdHot:
			factor *= 1.3
		case *s.TemperatureF >= model.TempThresholdHot-10:
			factor *= 1.15
		}
	}

	if s.WindSpeedMph != nil {
		switch {
		case *s.WindSpeedMph >= model.WindThresholdVeryHigh:
			factor *= 0.7
		case *s.WindSpeedMph >= model.WindThresholdHigh:
			factor *= 0.85
		}
	}

	if s.HumidityPct != nil {
		switch {
		case *s.HumidityPct < 30:
			factor *= 1.15
		case *s.HumidityPct > 80:
			factor *= 0.9
		}
	}

	cond := strings.ToLower(s.Condition)
	switch {
	case strings.Contains(cond, "rain") || strings.Contains(cond, "shower"):
		if strings.Contains(cond, "light") {
			factor *= 0.7
		} else {
			factor *= 0.3
		}
	case strings.Contains(cond, "cloudy") || strings.Contains(cond, "overcast"):
		factor *= 0.9
	case strings.Contains(cond, "sunny") || strings.Contains(cond, "clear"):
		factor *= 1.05
	}

	if factor < 0 {
		factor = 0
	} else if factor > 1.5 {
		factor = 1.5
	}
	return factor
}

// ShouldSkip is the hard gate, independent of the continuous factor. Heavy
// recent precipitation is reported ahead of the current-conditions check so
// the measured amount wins over the condition string when both apply.
func (p *Processor) ShouldSkip() (bool, string) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := p.snapshot
	if s.TemperatureF != nil && *s.TemperatureF <= model.TempThresholdFreeze {
		return true, fmt.Sprintf("Freezing temperature (%g°F)", *s.TemperatureF)
	}

	if s.PrecipitationLast24In >= model.RainThresholdHeavy {
		return true, fmt.Sprintf("Heavy recent precipitation (%gin)", s.PrecipitationLast24In)
	}

	cond := strings.ToLower(s.Condition)
	if strings.Contains(cond, "rain") && !strings.Contains(cond, "light") {
		return true, fmt.Sprintf("Currently raining (%s)", cond)
	}

	if s.WindSpeedMph != nil && *s.WindSpeedMph >= model.WindThresholdDanger {
		return true, fmt.Sprintf("Dangerous wind speed (%g mph)", *s.WindSpeedMph)
	}

	forecastPrecip := p.precipNext24hLocked()
	forecastProb := p.precipProbabilityLocked()
	if forecastProb >= 80 && forecastPrecip >= model.RainThresholdHeavy {
		return true, fmt.Sprintf("Heavy rain imminent (%.0f%% chance of %gin)", forecastProb, forecastPrecip)
	}

	return false, ""
}

// ETFactors returns the weather inputs for the ET estimate, substituting
// moderate defaults for unreported fields.
func (p *Processor) ETFactors() ETFactors {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := ETFactors{
		TemperatureF: 70,
		TemperatureC: 21,
		HumidityPct:  50,
		WindSpeedMph: 5,
		WindSpeedMS:  2.2,
		SolarFactor:  p.solarFactorLocked(),
	}
	s := p.snapshot
	if s.TemperatureF != nil {
		out.TemperatureF = *s.TemperatureF
		out.TemperatureC = (*s.TemperatureF - 32) * 5 / 9
	}
	if s.HumidityPct != nil {
		out.HumidityPct = *s.HumidityPct
	}
	if s.WindSpeedMph != nil {
		out.WindSpeedMph = *s.WindSpeedMph
		out.WindSpeedMS = *s.WindSpeedMph * 0.44704
	}
	return out
}

// SolarFactor estimates relative solar radiation from the condition string.
func (p *Processor) SolarFactor() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.solarFactorLocked()
}

func (p *Processor) solarFactorLocked() float64 {
	cond := strings.ToLower(p.snapshot.Condition)
	switch {
	case strings.Contains(cond, "sunny") || strings.Contains(cond, "clear"):
		return 1.0
	case strings.Contains(cond, "partly"):
		return 0.75
	case strings.Contains(cond, "cloudy"):
		return 0.5
	case strings.Contains(cond, "overcast"):
		return 0.35
	case strings.Contains(cond, "rain") || strings.Contains(cond, "storm"):
		return 0.25
	default:
		return 0.6
	}
}

// StatusSnapshot returns the full processor view for the HTTP status surface.
func (p *Processor) StatusSnapshot() Status {
	factor := p.WeatherFactor()
	skip, reason := p.ShouldSkip()

	p.mu.RLock()
	defer p.mu.RUnlock()
	var last *time.Time
	if !p.lastUpdate.IsZero() {
		u := p.lastUpdate
		last = &u
	}
	return Status{
		Temperature:       p.snapshot.TemperatureF,
		Humidity:          p.snapshot.HumidityPct,
		WindSpeed:         p.snapshot.WindSpeedMph,
		Condition:         p.snapshot.Condition,
		PrecipLast24h:     p.snapshot.PrecipitationLast24In,
		PrecipNext24h:     p.precipNext24hLocked(),
		PrecipProbability: p.precipProbabilityLocked(),
		WeatherFactor:     factor,
		ShouldSkip:        skip,
		SkipReason:        reason,
		LastUpdate:        last,
	}
}
