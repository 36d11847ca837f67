package actuator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/verdegrid/irrigationd/internal/model/messages"
	"github.com/verdegrid/irrigationd/pkg/mqttbus"
)

// MQTTController drives a local relay board by publishing ZoneCommand
// messages on command/zone/{zone}. Rain delay has no hardware counterpart on
// the relay board, so it is tracked locally and exposed via RainDelayUntil
// for the scheduler to honor.
type MQTTController struct {
	client mqtt.Client

	mu         sync.RWMutex
	delayUntil time.Time
}

func NewMQTTController(client mqtt.Client) *MQTTController {
	return &MQTTController{client: client}
}

func (m *MQTTController) publish(zoneID, action string, duration time.Duration) error {
	cmd := messages.ZoneCommand{
		ZoneID:    zoneID,
		Action:    action,
		RequestID: uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}
	if action == "start" {
		cmd.DurationSeconds = int(duration.Seconds())
	}
	topic := "command/zone/" + zoneID
	if err := mqttbus.PublishTo(m.client, topic, cmd); err != nil {
		return fmt.Errorf("zone command %s %s: %w", action, zoneID, err)
	}
	log.Printf("Published %s command for zone %s (request %s)", action, zoneID, cmd.RequestID)
	return nil
}

func (m *MQTTController) RunZone(ctx context.Context, zoneID string, duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("zone %s: non-positive duration", zoneID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.publish(zoneID, "start", duration)
}

// RunZones issues start commands sequentially, waiting out each zone's
// duration before starting the next so only one valve is open at a time.
func (m *MQTTController) RunZones(ctx context.Context, runs []ZoneRun) error {
	for _, run := range runs {
		if err := m.RunZone(ctx, run.ZoneID, run.Duration); err != nil {
			return err
		}
		select {
		case <-time.After(run.Duration):
		case <-ctx.Done():
			if stopErr := m.StopAll(context.WithoutCancel(ctx)); stopErr != nil {
				log.Printf("Failed to stop zones after cancellation: %v", stopErr)
			}
			return ctx.Err()
		}
	}
	return nil
}

func (m *MQTTController) StopZone(ctx context.Context, zoneID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.publish(zoneID, "stop", 0)
}

func (m *MQTTController) StopAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// The relay board treats zone "all" as a broadcast stop.
	return m.publish("all", "stop", 0)
}

func (m *MQTTController) SetRainDelay(_ context.Context, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d <= 0 {
		m.delayUntil = time.Time{}
		return nil
	}
	m.delayUntil = time.Now().Add(d)
	return nil
}

func (m *MQTTController) CancelRainDelay(ctx context.Context) error {
	return m.SetRainDelay(ctx, 0)
}

// RainDelayUntil returns the local rain delay expiry, or a zero time when no
// delay is active.
func (m *MQTTController) RainDelayUntil() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if time.Now().After(m.delayUntil) {
		return time.Time{}
	}
	return m.delayUntil
}
