package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/verdegrid/irrigationd/internal/actuator"
	"github.com/verdegrid/irrigationd/internal/config"
	"github.com/verdegrid/irrigationd/internal/decision"
	"github.com/verdegrid/irrigationd/internal/et"
	"github.com/verdegrid/irrigationd/internal/ingest"
	"github.com/verdegrid/irrigationd/internal/model/messages"
	"github.com/verdegrid/irrigationd/internal/optimizer"
	"github.com/verdegrid/irrigationd/internal/recorder"
	"github.com/verdegrid/irrigationd/internal/scheduler"
	"github.com/verdegrid/irrigationd/internal/soil"
	"github.com/verdegrid/irrigationd/internal/status"
	"github.com/verdegrid/irrigationd/internal/weather"
	"github.com/verdegrid/irrigationd/pkg/dedup"
	"github.com/verdegrid/irrigationd/pkg/mqttbus"
	"github.com/verdegrid/irrigationd/pkg/timerq"
)

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := env("IRRIGATIOND_CONFIG", "/app/config/irrigationd.yaml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	zones := cfg.ZoneMap()
	log.Printf("Loaded %d enabled zones from %s", len(zones), cfgPath)

	// MQTT is optional: skip it when running against a cloud controller with
	// no local sensors.
	var mqClient mqtt.Client
	if host := env("MQTT_HOST", ""); host != "" {
		mqClient, err = mqttbus.Connect(ctx, &mqttbus.Config{
			Host:     host,
			Port:     envInt("MQTT_PORT", 1883),
			User:     env("MQTT_USER", "guest"),
			Password: env("MQTT_PASSWORD", "guest"),
			ClientID: fmt.Sprintf("irrigationd-%s", env("HOSTNAME", "local")),
		})
		if err != nil {
			log.Fatalf("MQTT connect failed: %v", err)
		}
	}

	calc := et.NewCalculator(cfg.Location.Latitude, cfg.Location.Longitude, cfg.Location.Elevation)
	wp := weather.NewProcessor()
	sa := soil.NewAnalyzer()
	rs := soil.NewRainSensor()
	opt := optimizer.New(zones, cfg.MaxDailyRuntime(), cfg.Schedule.WindowMinutes)

	registry := prometheus.NewRegistry()
	metrics := decision.NewMetrics(registry)
	engine := decision.New(calc, wp, sa, rs, opt, zones, metrics)

	// Weather source: real pulls when a key is set, otherwise the engine
	// runs on sensor data and schedule baselines alone.
	if apiKey := env("OWM_API_KEY", ""); apiKey != "" {
		source := weather.NewOWMSource(apiKey, cfg.Location.Latitude, cfg.Location.Longitude,
			30*time.Second, wp.PrecipLast24h)
		interval := time.Duration(envInt("WEATHER_POLL_MINUTES", 360)) * time.Minute
		go ingest.NewWeatherPoller(source, engine, interval).Run(ctx)
	} else {
		log.Printf("OWM_API_KEY not set, weather polling disabled")
	}

	// Actuator: cloud controller when an API key is set, MQTT otherwise.
	var controller actuator.Controller
	if apiKey := env("CONTROLLER_API_KEY", ""); apiKey != "" {
		cloud := actuator.NewCloudController(env("CONTROLLER_API_URL", "https://api.rach.io/1/public"), apiKey)
		if err := cloud.Discover(ctx); err != nil {
			log.Fatalf("controller discovery failed: %v", err)
		}
		controller = cloud
	} else if mqClient != nil {
		controller = actuator.NewMQTTController(mqClient)
	} else {
		log.Fatalf("no actuator configured: set CONTROLLER_API_KEY or MQTT_HOST")
	}

	// Recorder: Influx when configured.
	var rec scheduler.Recorder
	var influx *recorder.Influx
	if url := env("INFLUX_URL", ""); url != "" {
		influx, err = recorder.NewInflux(recorder.InfluxConfig{
			URL:    url,
			Token:  env("INFLUX_TOKEN", ""),
			Org:    env("INFLUX_ORG", "verdegrid"),
			Bucket: env("INFLUX_BUCKET", "irrigation"),
		})
		if err != nil {
			log.Fatalf("influx init failed: %v", err)
		}
		defer influx.Close()
		rec = influx
	} else {
		rec = recorder.Nop{}
	}

	// Decision events go out on the bus when MQTT is up.
	var publish func(messages.DecisionEvent)
	if mqClient != nil {
		pub := mqttbus.NewPublisher(mqClient, "event/decision")
		publish = func(ev messages.DecisionEvent) {
			if err := pub.Publish(ev); err != nil {
				log.Printf("decision event publish failed: %v", err)
			}
		}
	}

	timers := timerq.New()
	defer timers.Close()

	sched := scheduler.New(scheduler.Config{
		WateringDays:     cfg.WateringDays(),
		Mode:             cfg.Schedule.Mode,
		Time:             cfg.Schedule.Time,
		SunEvent:         cfg.Schedule.SunEvent,
		SunOffsetMinutes: cfg.Schedule.SunOffsetMinutes,
		CycleSoakEnabled: cfg.CycleSoak(),
		RecalcInterval:   time.Duration(cfg.Schedule.RecalcHours) * time.Hour,
	}, engine, controller, calc, timers, rec, publish)

	// Sensor ingest.
	if mqClient != nil {
		svc := ingest.New(engine, dedup.New(10*time.Minute, 10000))
		go svc.Start(ctx, mqClient)
	}

	sched.Start(ctx)
	defer sched.Stop(context.Background())

	// Status surface.
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", envInt("HTTP_PORT", 8080)),
		Handler: status.NewServer(engine, sched, mqClient, influx, registry).Mux(),
	}
	go func() {
		log.Printf("Status server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("status server: %v", err)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	<-sigc
	log.Printf("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	cancel()
}
