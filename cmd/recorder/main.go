package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mobitrack/fleet-monitor/internal/channel"
	"github.com/mobitrack/fleet-monitor/internal/config"
	"github.com/mobitrack/fleet-monitor/internal/db"
	"github.com/mobitrack/fleet-monitor/internal/storage"
	"github.com/mobitrack/fleet-monitor/internal/types"
)

func main() {
	if err := runRecorder(); err != nil {
		log.Printf("Recorder failed: %v", err)
		os.Exit(1)
	}
}

// runRecorder contains the main application logic and can be tested
func runRecorder() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store := storage.New(cfg.RouteLogDir)
	if err := store.Start(); err != nil {
		return fmt.Errorf("failed to start route log storage: %w", err)
	}

	dbClient, err := db.New(cfg.DBConnStr)
	if err != nil {
		if stopErr := store.Stop(); stopErr != nil {
			log.Printf("Warning: failed to stop storage: %v", stopErr)
		}
		return fmt.Errorf("failed to create database client: %w", err)
	}

	cleanup := func() {
		if err := store.Stop(); err != nil {
			log.Printf("Warning: failed to stop storage: %v", err)
		}
		if err := dbClient.Close(); err != nil {
			log.Printf("Warning: failed to close database client: %v", err)
		}
	}

	client := channel.New(cfg.NATSURL)
	if err := client.Connect(); err != nil {
		cleanup()
		return fmt.Errorf("failed to connect position channel: %w", err)
	}

	// Record every vehicle on the wire, not a tracked subset.
	if err := client.SubscribeAll(); err != nil {
		client.Disconnect()
		cleanup()
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	client.OnMessage(func(msg types.PositionMessage) {
		if err := store.WritePosition(&msg); err != nil {
			log.Printf("Failed to write position: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := dbClient.StoreVehicleState(ctx, &msg); err != nil {
			log.Printf("Warning: failed to store vehicle state: %v", err)
		}
		if err := dbClient.UpdateVehicleSnapshot(ctx, &msg); err != nil {
			log.Printf("Warning: failed to update vehicle snapshot: %v", err)
		}
	})

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	client.Disconnect()
	cleanup()

	return nil
}
