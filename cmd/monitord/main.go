package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mobitrack/fleet-monitor/internal/api"
	"github.com/mobitrack/fleet-monitor/internal/channel"
	"github.com/mobitrack/fleet-monitor/internal/config"
	"github.com/mobitrack/fleet-monitor/internal/db"
	"github.com/mobitrack/fleet-monitor/internal/fleet"
	"github.com/mobitrack/fleet-monitor/internal/panels"
	"github.com/mobitrack/fleet-monitor/internal/redis"
	"github.com/mobitrack/fleet-monitor/internal/retrans"
	"github.com/mobitrack/fleet-monitor/internal/stats"
	"github.com/mobitrack/fleet-monitor/internal/types"
)

// Monitor owns the long-lived monitoring components
type Monitor struct {
	channel *channel.Client
	store   *fleet.Store
	retrans *retrans.Monitor
	panels  *panels.Manager
	redis   *redis.Client
	stats   *stats.Stats
	hub     *api.Hub
	unbind  func()
	unwatch func()
}

// createClients creates all the required clients for the application
func createClients(cfg *config.Config) (*channel.Client, *db.Client, *redis.Client, error) {
	channelClient := channel.New(cfg.NATSURL)
	if err := channelClient.Connect(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect position channel: %w", err)
	}

	dbClient, err := db.New(cfg.DBConnStr)
	if err != nil {
		channelClient.Disconnect()
		return nil, nil, nil, fmt.Errorf("failed to create database client: %w", err)
	}

	redisClient, err := redis.New(cfg.RedisAddr)
	if err != nil {
		channelClient.Disconnect()
		if closeErr := dbClient.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing dbClient: %v\n", closeErr)
		}
		return nil, nil, nil, fmt.Errorf("failed to create Redis client: %w", err)
	}

	return channelClient, dbClient, redisClient, nil
}

// setupMonitor wires the monitoring components together
func setupMonitor(cfg *config.Config, channelClient *channel.Client, dbClient *db.Client, redisClient *redis.Client) (*Monitor, error) {
	st := stats.New()

	channelClient.OnDecodeError(st.IncrementDecodeFailures)

	store := fleet.NewStore(dbClient, st)
	if err := store.LoadSnapshot(context.Background(), types.VehicleFilter{}); err != nil {
		return nil, fmt.Errorf("failed to load vehicle snapshot: %w", err)
	}
	unbind := store.BindChannel(channelClient)

	if err := channelClient.SubscribeVehicles(store.TrackedIDs()); err != nil {
		return nil, fmt.Errorf("failed to subscribe tracked vehicles: %w", err)
	}

	monitor := retrans.New(dbClient, cfg.PollInterval)
	if err := monitor.Load(context.Background()); err != nil {
		log.Printf("Warning: initial retransmission load failed: %v", err)
	}
	monitor.Start()

	panelManager := panels.NewManager(redisClient, cfg.MaxPanels)
	panelManager.Load(context.Background())

	hub := api.NewHub()
	go hub.Run()

	unwatch := store.OnUpdate(fanOutUpdate(hub, redisClient, st, store))

	return &Monitor{
		channel: channelClient,
		store:   store,
		retrans: monitor,
		panels:  panelManager,
		redis:   redisClient,
		stats:   st,
		hub:     hub,
		unbind:  unbind,
		unwatch: unwatch,
	}, nil
}

// cacheWriteTimeout bounds the Redis write on the delta dispatch path so a
// stalled cache cannot back up position delivery.
const cacheWriteTimeout = 5 * time.Second

// fanOutUpdate builds the observer that pushes each applied delta to the
// dashboards and keeps the Redis snapshot cache warm.
func fanOutUpdate(hub *api.Hub, redisClient *redis.Client, st *stats.Stats, store *fleet.Store) func(string, types.TrackedVehicle) {
	return func(vehicleID string, v types.TrackedVehicle) {
		hub.Broadcast(v)
		ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()
		if err := redisClient.StoreVehicleState(ctx, &v); err != nil {
			log.Printf("Warning: failed to cache vehicle state: %v", err)
		}
		st.SetActiveVehicles(uint64(store.Len()))
	}
}

// logStats periodically logs pipeline counters
func (m *Monitor) logStats(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Printf("Statistics: %s", m.stats)
		}
	}
}

// waitForShutdown waits for shutdown signals and handles cleanup
func waitForShutdown(m *Monitor, dbClient *db.Client, httpServer *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error shutting down HTTP server: %v\n", err)
	}

	m.unwatch()
	m.unbind()
	m.retrans.Stop()
	m.hub.Stop()
	m.channel.Disconnect()
	if err := dbClient.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "error closing dbClient: %v\n", err)
	}
	if err := m.redis.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "error closing redisClient: %v\n", err)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	channelClient, dbClient, redisClient, err := createClients(cfg)
	if err != nil {
		log.Printf("Failed to create clients: %v", err)
		os.Exit(1)
	}

	monitor, err := setupMonitor(cfg, channelClient, dbClient, redisClient)
	if err != nil {
		log.Printf("Failed to setup monitor: %v", err)
		channelClient.Disconnect()
		if err := dbClient.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error closing dbClient: %v\n", err)
		}
		if err := redisClient.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error closing redisClient: %v\n", err)
		}
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.logStats(ctx)

	server := api.NewServer(monitor.store, monitor.retrans, dbClient, monitor.panels, monitor.stats, monitor.hub)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(),
	}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	waitForShutdown(monitor, dbClient, httpServer)
}
