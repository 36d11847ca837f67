// Package sim is a zone simulator for development and demos: it models soil
// moisture per zone (slow drydown, gain while the valve is open), obeys zone
// commands from the bus, and publishes synthetic sensor telemetry.
package sim

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/verdegrid/irrigationd/internal/model/messages"
	"github.com/verdegrid/irrigationd/pkg/dedup"
	"github.com/verdegrid/irrigationd/pkg/mqttbus"
)

const (
	// gainPerMin is the moisture gain while the valve is open, in percent
	// points per minute.
	gainPerMin = 0.6
	// decayPerMin is the drydown rate with the valve closed.
	decayPerMin = 0.02

	defaultSeedPct = 30.0
)

// zoneState is one simulated zone's water bucket.
type zoneState struct {
	moisture  float64 // percent
	valveOpen bool
	requestID string
	openedAt  time.Time
	revert    *time.Timer
	last      time.Time
}

// Simulator drives a set of fake zones. Safe for concurrent use.
type Simulator struct {
	mu      sync.Mutex
	zones   map[string]*zoneState
	client  mqtt.Client
	deduper *dedup.Deduper
	rng     *rand.Rand
}

func New(client mqtt.Client, zoneIDs []string) *Simulator {
	s := &Simulator{
		zones:   make(map[string]*zoneState, len(zoneIDs)),
		client:  client,
		deduper: dedup.New(2*time.Minute, 10000),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	now := time.Now()
	for _, id := range zoneIDs {
		s.zones[id] = &zoneState{
			moisture: defaultSeedPct + s.rng.Float64()*10,
			last:     now,
		}
	}
	return s
}

// Start subscribes to zone commands and publishes telemetry on the interval.
// Blocks until ctx is canceled.
func (s *Simulator) Start(ctx context.Context, interval time.Duration) {
	consumer := mqttbus.NewConsumer(s.client, "command/zone/+", s.handleCommand)
	go consumer.Consume(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.publishReadings()
		}
	}
}

// advance moves a zone's moisture forward to now. Caller holds s.mu.
func (z *zoneState) advance(now time.Time) {
	dtMin := now.Sub(z.last).Minutes()
	if dtMin < 0 {
		dtMin = 0
	}
	if z.valveOpen {
		z.moisture += gainPerMin * dtMin
	} else {
		z.moisture -= decayPerMin * dtMin
	}
	z.moisture = math.Max(0, math.Min(100, z.moisture))
	z.last = now
}

func (s *Simulator) publishReadings() {
	now := time.Now().UTC()

	s.mu.Lock()
	readings := make(map[string]float64, len(s.zones))
	for id, z := range s.zones {
		z.advance(now)
		// small sensor noise
		readings[id] = math.Round((z.moisture+s.rng.Float64()-0.5)*10) / 10
	}
	s.mu.Unlock()

	for id, v := range readings {
		value := v
		msg := messages.MoistureMessage{
			ZoneID:    id,
			ValuePct:  &value,
			Unit:      "%",
			Timestamp: now,
		}
		if err := mqttbus.PublishTo(s.client, "sensor/moisture/"+id, msg); err != nil {
			log.Printf("sim: moisture publish for %s failed: %v", id, err)
		}
	}
}

func (s *Simulator) handleCommand(topic string, msg mqtt.Message) error {
	sum := sha256.Sum256(msg.Payload())
	if !s.deduper.ShouldProcess(hex.EncodeToString(sum[:])) {
		return nil
	}

	var cmd messages.ZoneCommand
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		return fmt.Errorf("invalid zone command on %s: %w", topic, err)
	}

	switch cmd.Action {
	case "start":
		return s.startZone(cmd)
	case "stop":
		if cmd.ZoneID == "all" {
			s.stopAll()
			return nil
		}
		s.stopZone(cmd.ZoneID, "stopped by command")
		return nil
	default:
		return fmt.Errorf("unknown zone action %q", cmd.Action)
	}
}

func (s *Simulator) startZone(cmd messages.ZoneCommand) error {
	s.mu.Lock()
	z, ok := s.zones[cmd.ZoneID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown zone %q", cmd.ZoneID)
	}
	now := time.Now()
	z.advance(now)
	z.valveOpen = true
	z.requestID = cmd.RequestID
	z.openedAt = now
	if z.revert != nil {
		z.revert.Stop()
	}
	duration := time.Duration(cmd.DurationSeconds) * time.Second
	zoneID := cmd.ZoneID
	if duration > 0 {
		z.revert = time.AfterFunc(duration, func() {
			s.stopZone(zoneID, "")
		})
	}
	s.mu.Unlock()

	log.Printf("sim: zone %s valve open for %s", cmd.ZoneID, duration)
	return nil
}

// stopZone closes the valve and publishes the run result. An empty reason
// means a normal completion.
func (s *Simulator) stopZone(zoneID, reason string) {
	s.mu.Lock()
	z, ok := s.zones[zoneID]
	if !ok || !z.valveOpen {
		s.mu.Unlock()
		return
	}
	now := time.Now()
	z.advance(now)
	z.valveOpen = false
	if z.revert != nil {
		z.revert.Stop()
		z.revert = nil
	}
	result := messages.ZoneResultEvent{
		ZoneID:        zoneID,
		RequestID:     z.requestID,
		Status:        "OK",
		SecondsActive: int(now.Sub(z.openedAt).Seconds()),
		Reason:        reason,
		Timestamp:     now.UTC(),
	}
	z.requestID = ""
	s.mu.Unlock()

	if err := mqttbus.PublishTo(s.client, "event/zoneResult", result); err != nil {
		log.Printf("sim: result publish for %s failed: %v", zoneID, err)
	}
	log.Printf("sim: zone %s valve closed after %ds", zoneID, result.SecondsActive)
}

func (s *Simulator) stopAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.zones))
	for id, z := range s.zones {
		if z.valveOpen {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.stopZone(id, "stopped by command")
	}
}

// Moisture returns a zone's current simulated moisture, for tests.
func (s *Simulator) Moisture(zoneID string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	z, ok := s.zones[zoneID]
	if !ok {
		return 0, false
	}
	z.advance(time.Now())
	return z.moisture, true
}
