package decision

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts decision outcomes and exposes the latest factor values.
// All methods are nil-safe so callers can run without metrics wired.
type Metrics struct {
	recommendations *prometheus.CounterVec
	skips           *prometheus.CounterVec
	weatherFactor   prometheus.Gauge
	rainFactor      prometheus.Gauge
	combinedFactor  *prometheus.GaugeVec
	waterDeficit    *prometheus.GaugeVec
	scheduleRuntime prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "irrigation_recommendations_total",
			Help: "Total zone recommendations by outcome (water, skip).",
		}, []string{"outcome"}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "irrigation_skips_total",
			Help: "Total skip decisions by gate (weather, rain, moisture).",
		}, []string{"gate"}),
		weatherFactor: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "irrigation_weather_factor",
			Help: "Latest weather adjustment factor.",
		}),
		rainFactor: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "irrigation_rain_factor",
			Help: "Latest rain sensor adjustment factor.",
		}),
		combinedFactor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "irrigation_combined_factor",
			Help: "Latest combined adjustment factor per zone.",
		}, []string{"zone"}),
		waterDeficit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "irrigation_water_deficit_inches",
			Help: "Current ET water balance deficit per zone.",
		}, []string{"zone"}),
		scheduleRuntime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "irrigation_schedule_runtime_minutes",
			Help: "Active minutes in the most recently computed schedule.",
		}),
	}

	reg.MustRegister(
		m.recommendations,
		m.skips,
		m.weatherFactor,
		m.rainFactor,
		m.combinedFactor,
		m.waterDeficit,
		m.scheduleRuntime,
	)
	return m
}

func (m *Metrics) Recommendation(water bool) {
	if m == nil {
		return
	}
	outcome := "skip"
	if water {
		outcome = "water"
	}
	m.recommendations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Skip(gate string) {
	if m == nil {
		return
	}
	m.skips.WithLabelValues(gate).Inc()
}

func (m *Metrics) Factors(weather, rain float64) {
	if m == nil {
		return
	}
	m.weatherFactor.Set(weather)
	m.rainFactor.Set(rain)
}

func (m *Metrics) ZoneFactors(zoneID string, combined, deficitInches float64) {
	if m == nil {
		return
	}
	m.combinedFactor.WithLabelValues(zoneID).Set(combined)
	m.waterDeficit.WithLabelValues(zoneID).Set(deficitInches)
}

func (m *Metrics) ScheduleRuntime(minutes int) {
	if m == nil {
		return
	}
	m.scheduleRuntime.Set(float64(minutes))
}
