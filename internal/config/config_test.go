package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
location:
  latitude: 40.1
  longitude: -75.3
  elevation: 120
schedule:
  watering_days: [monday, wednesday, friday]
  mode: start_at
  time: "05:30"
  max_daily_runtime: 150
zones:
  - zone_id: front
    name: Front Lawn
    vegetation: cool_season_grass
    soil_type: loam
    nozzle_type: fixed_spray
    enabled: true
  - zone_id: beds
    name: Flower Beds
    vegetation: annuals
    soil_type: sandy_loam
    nozzle_type: drip
    enabled: false
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "irrigationd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	f, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if f.Location.Latitude != 40.1 {
		t.Errorf("latitude = %g", f.Location.Latitude)
	}
	if f.Schedule.Time != "05:30" {
		t.Errorf("time = %q", f.Schedule.Time)
	}

	zones := f.ZoneMap()
	if len(zones) != 1 {
		t.Fatalf("enabled zones = %d, want 1 (beds disabled)", len(zones))
	}
	front := zones["front"]
	if front.Slope != "flat" || front.Efficiency != 0.80 {
		t.Errorf("defaults not applied: %+v", front)
	}

	days := f.WateringDays()
	want := []time.Weekday{time.Monday, time.Wednesday, time.Friday}
	if len(days) != len(want) {
		t.Fatalf("days = %v", days)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Errorf("day %d = %v, want %v", i, days[i], want[i])
		}
	}

	if f.MaxDailyRuntime() != 150 {
		t.Errorf("max runtime = %d", f.MaxDailyRuntime())
	}
	if !f.CycleSoak() {
		t.Error("cycle/soak should default to enabled")
	}
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "no enabled zones",
			yaml: "location: {latitude: 40, longitude: -75}\nzones:\n  - {zone_id: a, enabled: false}\n",
			want: "no enabled zones",
		},
		{
			name: "duplicate zone",
			yaml: "location: {latitude: 40, longitude: -75}\nzones:\n  - {zone_id: a, enabled: true}\n  - {zone_id: a, enabled: true}\n",
			want: "duplicate zone_id",
		},
		{
			name: "missing zone id",
			yaml: "location: {latitude: 40, longitude: -75}\nzones:\n  - {name: x, enabled: true}\n",
			want: "zone_id required",
		},
		{
			name: "bad latitude",
			yaml: "location: {latitude: 95, longitude: -75}\nzones:\n  - {zone_id: a, enabled: true}\n",
			want: "latitude",
		},
		{
			name: "bad watering day",
			yaml: "location: {latitude: 40, longitude: -75}\nschedule: {watering_days: [moonday]}\nzones:\n  - {zone_id: a, enabled: true}\n",
			want: "unknown watering day",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, c.yaml))
			if err == nil || !strings.Contains(err.Error(), c.want) {
				t.Errorf("err = %v, want containing %q", err, c.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Fatal("expected error")
	}
}
