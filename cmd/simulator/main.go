package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mobitrack/fleet-monitor/internal/channel"
	"github.com/mobitrack/fleet-monitor/internal/config"
	"github.com/mobitrack/fleet-monitor/internal/simulate"
	"github.com/mobitrack/fleet-monitor/internal/types"
)

func main() {
	if err := runSimulator(); err != nil {
		log.Printf("Simulator failed: %v", err)
		os.Exit(1)
	}
}

// runSimulator publishes synthetic fleet movement to the live channel
func runSimulator() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	fleetSize, interval, seed := parseSimEnvironment()

	client := channel.New(cfg.NATSURL)
	if err := client.Connect(); err != nil {
		return fmt.Errorf("failed to connect position channel: %w", err)
	}

	vehicles := simulate.DefaultFleet(fleetSize)
	feed := simulate.New(vehicles, interval, seed)

	ids := make([]string, 0, len(vehicles))
	for _, v := range vehicles {
		ids = append(ids, v.VehicleID)
	}
	if err := feed.SubscribeVehicles(ids); err != nil {
		client.Disconnect()
		return fmt.Errorf("failed to subscribe simulated vehicles: %w", err)
	}

	feed.OnMessage(func(msg types.PositionMessage) {
		if err := client.PublishPosition(&msg); err != nil {
			log.Printf("Failed to publish position: %v", err)
		}
	})

	feed.Start()
	log.Printf("Simulating %d vehicles every %s", fleetSize, interval)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	feed.Stop()
	client.Disconnect()

	return nil
}

// parseSimEnvironment extracts simulator tuning with defaults
func parseSimEnvironment() (int, time.Duration, int64) {
	fleetSize := 10
	if v := os.Getenv("SIM_FLEET_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			fleetSize = n
		}
	}

	interval := simulate.DefaultInterval
	if v := os.Getenv("SIM_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			interval = time.Duration(ms) * time.Millisecond
		}
	}

	seed := time.Now().UnixNano()
	if v := os.Getenv("SIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			seed = n
		}
	}

	return fleetSize, interval, seed
}
