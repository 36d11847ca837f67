package ingest

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/verdegrid/irrigationd/internal/decision"
	"github.com/verdegrid/irrigationd/internal/weather"
)

// defaultWeatherInterval matches the engine's assumption that ET updates
// arrive roughly four times a day.
const defaultWeatherInterval = 6 * time.Hour

// WeatherPoller pulls forecasts on an interval and pushes them into the
// engine. Each pull retries transient failures before giving up until the
// next tick.
type WeatherPoller struct {
	source   weather.Source
	model    *decision.Model
	interval time.Duration
}

func NewWeatherPoller(source weather.Source, m *decision.Model, interval time.Duration) *WeatherPoller {
	if interval <= 0 {
		interval = defaultWeatherInterval
	}
	return &WeatherPoller{source: source, model: m, interval: interval}
}

// Run polls immediately, then on every tick, until ctx is canceled.
func (p *WeatherPoller) Run(ctx context.Context) {
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *WeatherPoller) poll(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Second
	bo.MaxInterval = 2 * time.Minute
	bo.MaxElapsedTime = 10 * time.Minute

	err := backoff.Retry(func() error {
		snap, err := p.source.Fetch(ctx)
		if err != nil {
			log.Printf("Weather fetch failed: %v", err)
			return err
		}
		p.model.UpdateWeather(snap)
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		log.Printf("Weather poll abandoned until next tick: %v", err)
		return
	}
	log.Printf("Weather snapshot updated")
}
