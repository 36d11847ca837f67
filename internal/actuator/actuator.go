// Package actuator abstracts the physical zone valves. Two implementations
// exist: a cloud REST controller and an MQTT command controller for local
// relay boards.
package actuator

import (
	"context"
	"time"
)

// ZoneRun is one valve activation request.
type ZoneRun struct {
	ZoneID   string
	Duration time.Duration
}

// Controller starts and stops irrigation zones. Implementations must be safe
// for concurrent use; RunZones runs the zones sequentially in order.
type Controller interface {
	RunZone(ctx context.Context, zoneID string, duration time.Duration) error
	RunZones(ctx context.Context, runs []ZoneRun) error
	StopZone(ctx context.Context, zoneID string) error
	StopAll(ctx context.Context) error
	SetRainDelay(ctx context.Context, d time.Duration) error
	CancelRainDelay(ctx context.Context) error
}
