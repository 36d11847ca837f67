package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/verdegrid/irrigationd/internal/sim"
	"github.com/verdegrid/irrigationd/pkg/mqttbus"
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

	client, err := mqttbus.Connect(ctx, &mqttbus.Config{
		Host:     env("MQTT_HOST", "localhost"),
		Port:     envInt("MQTT_PORT", 1883),
		User:     env("MQTT_USER", "guest"),
		Password: env("MQTT_PASSWORD", "guest"),
		ClientID: fmt.Sprintf("sensor-sim-%s", env("HOSTNAME", "local")),
	})
	if err != nil {
		log.Fatalf("MQTT connect failed: %v", err)
	}

	zones := strings.Split(env("SIM_ZONES", "front,back,beds"), ",")
	for i := range zones {
		zones[i] = strings.TrimSpace(zones[i])
	}
	interval := time.Duration(envInt("SIM_INTERVAL_SECONDS", 60)) * time.Second

	log.Printf("Simulating zones %v every %s", zones, interval)
	go sim.New(client, zones).Start(ctx, interval)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	<-sigc
	cancel()
}
