// Package config loads the zone and schedule definitions from a YAML file.
// Connection settings (MQTT, Influx, weather API) come from the environment
// in the usual deployment and are handled by the main.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/verdegrid/irrigationd/internal/model"
)

// Location is the site the solar and ET math runs for.
type Location struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Elevation float64 `yaml:"elevation"` // meters
}

// ScheduleConfig mirrors the scheduler's timing knobs in file form.
type ScheduleConfig struct {
	WateringDays     []string `yaml:"watering_days"` // weekday names, e.g. "monday"
	Mode             string   `yaml:"mode"`
	Time             string   `yaml:"time"`
	SunEvent         string   `yaml:"sun_event"`
	SunOffsetMinutes int      `yaml:"sun_offset_minutes"`
	CycleSoakEnabled *bool    `yaml:"cycle_soak_enabled"`
	RecalcHours      int      `yaml:"recalc_hours"`
	MaxDailyRuntime  int      `yaml:"max_daily_runtime"` // minutes
	WindowMinutes    int      `yaml:"window_minutes"`    // 0 = use max runtime
}

// File is the top-level YAML document.
type File struct {
	Location Location           `yaml:"location"`
	Schedule ScheduleConfig     `yaml:"schedule"`
	Zones    []model.ZoneConfig `yaml:"zones"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Load reads and validates the config file. Zones get their defaults filled
// in; at least one enabled zone is required.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if f.Location.Latitude < -90 || f.Location.Latitude > 90 {
		return nil, fmt.Errorf("latitude %g out of range", f.Location.Latitude)
	}
	if f.Location.Longitude < -180 || f.Location.Longitude > 180 {
		return nil, fmt.Errorf("longitude %g out of range", f.Location.Longitude)
	}

	enabled := 0
	seen := make(map[string]bool, len(f.Zones))
	for i := range f.Zones {
		z := &f.Zones[i]
		if z.ZoneID == "" {
			return nil, fmt.Errorf("zone %d: zone_id required", i)
		}
		if seen[z.ZoneID] {
			return nil, fmt.Errorf("duplicate zone_id %q", z.ZoneID)
		}
		seen[z.ZoneID] = true
		z.Normalize()
		if z.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return nil, fmt.Errorf("no enabled zones in %s", path)
	}

	for _, d := range f.Schedule.WateringDays {
		if _, ok := weekdays[d]; !ok {
			return nil, fmt.Errorf("unknown watering day %q", d)
		}
	}
	return &f, nil
}

// ZoneMap returns the enabled zones keyed by ID.
func (f *File) ZoneMap() map[string]model.ZoneConfig {
	out := make(map[string]model.ZoneConfig, len(f.Zones))
	for _, z := range f.Zones {
		if z.Enabled {
			out[z.ZoneID] = z
		}
	}
	return out
}

// WateringDays converts the configured day names.
func (f *File) WateringDays() []time.Weekday {
	out := make([]time.Weekday, 0, len(f.Schedule.WateringDays))
	for _, d := range f.Schedule.WateringDays {
		out = append(out, weekdays[d])
	}
	return out
}

// MaxDailyRuntime returns the configured cap, defaulted.
func (f *File) MaxDailyRuntime() int {
	if f.Schedule.MaxDailyRuntime > 0 {
		return f.Schedule.MaxDailyRuntime
	}
	return model.DefaultMaxDailyRuntime
}

// CycleSoak reports whether cycle/soak execution is on (default true).
func (f *File) CycleSoak() bool {
	if f.Schedule.CycleSoakEnabled == nil {
		return true
	}
	return *f.Schedule.CycleSoakEnabled
}
