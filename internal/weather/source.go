package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/verdegrid/irrigationd/internal/model"
)

// Source delivers weather snapshots. Implementations must be safe for
// concurrent use.
type Source interface {
	Fetch(ctx context.Context) (model.WeatherSnapshot, error)
}

type owmCurrent struct {
	Dt   int64 `json:"dt"`
	Temp struct {
		Day float64 `json:"day"`
	} `json:"temp"`
	FeelsLike struct {
		Day float64 `json:"day"`
	} `json:"feels_like"`
	Humidity  float64 `json:"humidity"`
	WindSpeed float64 `json:"wind_speed"`
	Weather   []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Rain float64 `json:"rain"` // mm, last slot
	Pop  float64 `json:"pop"`  // probability 0..1
}

type owmResp struct {
	Current struct {
		Temp      float64 `json:"temp"`
		Humidity  float64 `json:"humidity"`
		WindSpeed float64 `json:"wind_speed"`
		Weather   []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"current"`
	Hourly []struct {
		Dt        int64   `json:"dt"`
		Temp      float64 `json:"temp"`
		Humidity  float64 `json:"humidity"`
		WindSpeed float64 `json:"wind_speed"`
		Pop       float64 `json:"pop"`
		Rain      struct {
			OneHour float64 `json:"1h"`
		} `json:"rain"`
	} `json:"hourly"`
	Daily []owmCurrent `json:"daily"`
}

// OWMSource pulls conditions and an hourly forecast from the OpenWeatherMap
// One Call API, converting to °F/mph/inches. Calls go through a circuit
// breaker so a flapping upstream does not stall the refresh loop; the
// processor keeps serving the last snapshot while the breaker is open.
type OWMSource struct {
	apiKey   string
	lat, lon float64
	http     *http.Client
	cb       *gobreaker.CircuitBreaker

	// precipitation observed locally over the trailing 24h, injected by the
	// rain sensor path since the API only reports forecast rain
	recentPrecip func() float64
}

// NewOWMSource builds the client. recentPrecip may be nil when no local rain
// measurement exists.
func NewOWMSource(apiKey string, lat, lon float64, timeout time.Duration, recentPrecip func() float64) *OWMSource {
	return &OWMSource{
		apiKey: apiKey,
		lat:    lat,
		lon:    lon,
		http:   &http.Client{Timeout: timeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "openweathermap",
			Interval: 60 * time.Second,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
		recentPrecip: recentPrecip,
	}
}

func (s *OWMSource) Fetch(ctx context.Context) (model.WeatherSnapshot, error) {
	res, err := s.cb.Execute(func() (any, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		return model.WeatherSnapshot{}, err
	}
	return res.(model.WeatherSnapshot), nil
}

func (s *OWMSource) fetch(ctx context.Context) (model.WeatherSnapshot, error) {
	if s.apiKey == "" {
		return model.WeatherSnapshot{}, fmt.Errorf("missing api key")
	}
	url := fmt.Sprintf("https://api.openweathermap.org/data/3.0/onecall?lat=%f&lon=%f&exclude=minutely,alerts&units=imperial&appid=%s",
		s.lat, s.lon, s.apiKey)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := s.http.Do(req)
	if err != nil {
		return model.WeatherSnapshot{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return model.WeatherSnapshot{}, fmt.Errorf("owm status %d: %s", resp.StatusCode, string(b))
	}
	var out owmResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.WeatherSnapshot{}, fmt.Errorf("decode owm response: %w", err)
	}

	snap := model.WeatherSnapshot{Condition: "unknown"}
	if len(out.Current.Weather) > 0 {
		snap.Condition = out.Current.Weather[0].Description
	}
	t, h, w := out.Current.Temp, out.Current.Humidity, out.Current.WindSpeed
	snap.TemperatureF = &t
	snap.HumidityPct = &h
	snap.WindSpeedMph = &w

	for _, hr := range out.Hourly {
		snap.Forecast = append(snap.Forecast, model.ForecastPoint{
			Time:                     time.Unix(hr.Dt, 0).UTC(),
			TemperatureF:             hr.Temp,
			PrecipitationIn:          hr.Rain.OneHour / 25.4,
			PrecipitationProbability: hr.Pop * 100,
			WindSpeedMph:             hr.WindSpeed,
			HumidityPct:              hr.Humidity,
		})
	}

	if s.recentPrecip != nil {
		snap.PrecipitationLast24In = s.recentPrecip()
	}
	return snap, nil
}
