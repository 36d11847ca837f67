// Package ingest feeds the decision engine from the outside world: soil
// moisture and rain sensor telemetry over MQTT, and periodic weather pulls
// from the forecast source.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/verdegrid/irrigationd/internal/decision"
	"github.com/verdegrid/irrigationd/internal/model/messages"
	"github.com/verdegrid/irrigationd/pkg/dedup"
	"github.com/verdegrid/irrigationd/pkg/mqttbus"
)

const (
	moistureTopicFilter = "sensor/moisture/+"
	rainTopic           = "sensor/rain"
	resultTopic         = "event/zoneResult"
)

// Service routes sensor telemetry into the engine. Duplicate payloads
// (retained messages, publisher retries) are dropped by content hash.
type Service struct {
	model *decision.Model
	dedup *dedup.Deduper
}

func New(m *decision.Model, d *dedup.Deduper) *Service {
	if d == nil {
		d = dedup.New(0, 0)
	}
	return &Service{model: m, dedup: d}
}

// Start subscribes to the sensor and result topics and blocks until ctx is
// canceled.
func (s *Service) Start(ctx context.Context, client mqtt.Client) {
	consumer := mqttbus.NewMultiConsumer(client, []string{moistureTopicFilter, rainTopic, resultTopic}, s.handle)
	consumer.Consume(ctx)
}

func payloadID(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (s *Service) handle(topic string, msg mqtt.Message) error {
	if !s.dedup.ShouldProcess(payloadID(msg.Payload())) {
		return nil
	}
	switch {
	case strings.HasPrefix(topic, "sensor/moisture/"):
		return s.handleMoisture(topic, msg.Payload())
	case topic == rainTopic:
		return s.handleRain(msg.Payload())
	case topic == resultTopic:
		return s.handleZoneResult(msg.Payload())
	default:
		log.Printf("Ignoring message on unexpected topic %s", topic)
		return nil
	}
}

func (s *Service) handleMoisture(topic string, payload []byte) error {
	var m messages.MoistureMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("decode moisture message: %w", err)
	}
	zoneID := m.ZoneID
	if zoneID == "" {
		zoneID = strings.TrimPrefix(topic, "sensor/moisture/")
	}
	at := m.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	s.model.UpdateMoisture(zoneID, m.ValuePct, at)
	return nil
}

func (s *Service) handleRain(payload []byte) error {
	var m messages.RainMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("decode rain message: %w", err)
	}
	var delayExpires *time.Time
	if m.RainDelayExpires != "" {
		t, err := time.Parse(time.RFC3339, m.RainDelayExpires)
		if err != nil {
			return fmt.Errorf("parse rain delay expiry %q: %w", m.RainDelayExpires, err)
		}
		delayExpires = &t
	}
	s.model.UpdateRainSensor(m.Tripped, m.ExternalRainRate, delayExpires)
	return nil
}

// handleZoneResult observes run outcomes from the local controller. The
// scheduler books applied water when it drives the run itself, so results
// are logged here rather than fed back into the balance a second time.
func (s *Service) handleZoneResult(payload []byte) error {
	var ev messages.ZoneResultEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decode zone result: %w", err)
	}
	if ev.Status != "OK" {
		log.Printf("Zone %s run failed after %ds: %s", ev.ZoneID, ev.SecondsActive, ev.Reason)
		return nil
	}
	log.Printf("Zone %s ran for %ds (request %s)", ev.ZoneID, ev.SecondsActive, ev.RequestID)
	return nil
}
