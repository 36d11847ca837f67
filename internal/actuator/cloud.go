package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

const cloudTimeout = 30 * time.Second

// CloudController drives zones through a hosted sprinkler-controller REST
// API. Discover must succeed before any zone operation; requests go through
// a circuit breaker so a dead upstream fails fast.
type CloudController struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker

	mu       sync.RWMutex
	deviceID string
	zoneIDs  map[string]string // our zone ID -> provider zone ID
}

func NewCloudController(baseURL, apiKey string) *CloudController {
	return &CloudController{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: cloudTimeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "cloud-actuator",
			Interval: 60 * time.Second,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
	}
}

type cloudDevice struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Zones []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Number int    `json:"zoneNumber"`
	} `json:"zones"`
}

type cloudPerson struct {
	ID      string        `json:"id"`
	Devices []cloudDevice `json:"devices"`
}

func (c *CloudController) request(ctx context.Context, method, endpoint string, body, out any) error {
	_, err := c.cb.Execute(func() (any, error) {
		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("marshal %s body: %w", endpoint, err)
			}
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+endpoint, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNoContent {
			return nil, nil
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
			return nil, fmt.Errorf("%s %s: status %d: %s", method, endpoint, resp.StatusCode, string(b))
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return nil, fmt.Errorf("decode %s response: %w", endpoint, err)
			}
		}
		return nil, nil
	})
	return err
}

// Discover resolves the account's first device and its zone map, retrying
// with exponential backoff (2s initial, 10s cap, 5 attempts).
func (c *CloudController) Discover(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 10 * time.Second

	return backoff.Retry(func() error {
		var info struct {
			ID string `json:"id"`
		}
		if err := c.request(ctx, http.MethodGet, "person/info", nil, &info); err != nil {
			log.Printf("actuator discovery: person/info failed: %v", err)
			return err
		}
		var person cloudPerson
		if err := c.request(ctx, http.MethodGet, "person/"+info.ID, nil, &person); err != nil {
			log.Printf("actuator discovery: person lookup failed: %v", err)
			return err
		}
		if len(person.Devices) == 0 {
			return backoff.Permanent(fmt.Errorf("no controller devices on account"))
		}

		device := person.Devices[0]
		zoneIDs := make(map[string]string, len(device.Zones))
		for _, z := range device.Zones {
			zoneIDs[z.Name] = z.ID
		}

		c.mu.Lock()
		c.deviceID = device.ID
		c.zoneIDs = zoneIDs
		c.mu.Unlock()

		log.Printf("actuator discovery: connected to %s with %d zones", device.Name, len(device.Zones))
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, 4), ctx))
}

func (c *CloudController) providerZone(zoneID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.deviceID == "" {
		return "", fmt.Errorf("actuator not discovered yet")
	}
	id, ok := c.zoneIDs[zoneID]
	if !ok {
		return "", fmt.Errorf("zone %q not known to controller", zoneID)
	}
	return id, nil
}

func (c *CloudController) RunZone(ctx context.Context, zoneID string, duration time.Duration) error {
	id, err := c.providerZone(zoneID)
	if err != nil {
		return err
	}
	body := map[string]any{"id": id, "duration": int(duration.Seconds())}
	if err := c.request(ctx, http.MethodPut, "zone/start", body, nil); err != nil {
		return fmt.Errorf("start zone %s: %w", zoneID, err)
	}
	return nil
}

func (c *CloudController) RunZones(ctx context.Context, runs []ZoneRun) error {
	type zoneSlot struct {
		ID        string `json:"id"`
		Duration  int    `json:"duration"`
		SortOrder int    `json:"sortOrder"`
	}
	slots := make([]zoneSlot, 0, len(runs))
	for i, run := range runs {
		id, err := c.providerZone(run.ZoneID)
		if err != nil {
			return err
		}
		slots = append(slots, zoneSlot{ID: id, Duration: int(run.Duration.Seconds()), SortOrder: i + 1})
	}
	if len(slots) == 0 {
		return nil
	}
	if err := c.request(ctx, http.MethodPut, "zone/start_multiple", map[string]any{"zones": slots}, nil); err != nil {
		return fmt.Errorf("start %d zones: %w", len(slots), err)
	}
	return nil
}

// StopZone maps to the provider's device-wide stop; the hosted API has no
// single-zone stop and only ever runs one zone at a time.
func (c *CloudController) StopZone(ctx context.Context, zoneID string) error {
	if _, err := c.providerZone(zoneID); err != nil {
		return err
	}
	return c.StopAll(ctx)
}

func (c *CloudController) StopAll(ctx context.Context) error {
	c.mu.RLock()
	deviceID := c.deviceID
	c.mu.RUnlock()
	if deviceID == "" {
		return fmt.Errorf("actuator not discovered yet")
	}
	return c.request(ctx, http.MethodPut, "device/stop_water", map[string]any{"id": deviceID}, nil)
}

func (c *CloudController) SetRainDelay(ctx context.Context, d time.Duration) error {
	c.mu.RLock()
	deviceID := c.deviceID
	c.mu.RUnlock()
	if deviceID == "" {
		return fmt.Errorf("actuator not discovered yet")
	}
	body := map[string]any{"id": deviceID, "duration": int(d.Seconds())}
	return c.request(ctx, http.MethodPut, "device/rain_delay", body, nil)
}

func (c *CloudController) CancelRainDelay(ctx context.Context) error {
	return c.SetRainDelay(ctx, 0)
}
