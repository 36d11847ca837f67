// Package recorder persists decisions, runs and zone snapshots to InfluxDB
// for dashboards and long-term tuning.
package recorder

import (
	"fmt"
	"log"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/verdegrid/irrigationd/internal/model"
)

// InfluxConfig selects the target bucket.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// Influx writes records through the async write API and tracks the last
// write error for the readiness probe.
type Influx struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	mu      sync.RWMutex
	lastErr time.Time
}

func NewInflux(cfg InfluxConfig) (*Influx, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	r := &Influx{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		lastErr:  time.Now().Add(-24 * time.Hour),
	}
	go func() {
		for err := range r.writeAPI.Errors() {
			if err != nil {
				r.mu.Lock()
				r.lastErr = time.Now()
				r.mu.Unlock()
				log.Printf("influx write error: %v", err)
			}
		}
	}()
	return r, nil
}

// LastErrorAge returns how long writes have been error-free.
func (r *Influx) LastErrorAge() time.Duration {
	if r == nil {
		return 99999 * time.Hour
	}
	r.mu.RLock()
	t := r.lastErr
	r.mu.RUnlock()
	return time.Since(t)
}

func (r *Influx) RecordDecision(d model.DecisionRecord) {
	point := influxdb2.NewPoint("irrigation_decision",
		map[string]string{"type": d.Type},
		map[string]interface{}{
			"reason":         d.Reason,
			"zones_to_water": d.ZonesToWater,
			"confidence":     d.Confidence,
		},
		d.Timestamp)
	r.writeAPI.WritePoint(point)
}

func (r *Influx) RecordRun(run model.RunRecord) {
	point := influxdb2.NewPoint("irrigation_run",
		map[string]string{"success": fmt.Sprintf("%t", run.Success)},
		map[string]interface{}{
			"zones":          run.Zones,
			"total_duration": run.TotalDuration,
		},
		run.Timestamp)
	r.writeAPI.WritePoint(point)
}

// RecordZoneSnapshot persists one recommendation cycle's per-zone view.
func (r *Influx) RecordZoneSnapshot(zoneID string, rec model.WateringRecommendation, at time.Time) {
	point := influxdb2.NewPoint("zone_recommendation",
		map[string]string{"zone_id": zoneID},
		map[string]interface{}{
			"should_water":     rec.ShouldWater,
			"duration_minutes": rec.DurationMinutes,
			"water_amount":     rec.WaterAmountInches,
			"confidence":       rec.Confidence,
			"combined_factor":  rec.Factors.CombinedFactor,
			"method":           rec.Factors.Method,
		},
		at)
	r.writeAPI.WritePoint(point)
}

// Close flushes pending writes and releases the client.
func (r *Influx) Close() {
	r.writeAPI.Flush()
	r.client.Close()
}

// Nop is the recorder used when persistence is disabled.
type Nop struct{}

func (Nop) RecordDecision(model.DecisionRecord) {}
func (Nop) RecordRun(model.RunRecord)           {}
