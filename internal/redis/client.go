package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mobitrack/fleet-monitor/internal/types"
)

const (
	panelsKey       = "fleet:panels"
	vehicleStateTTL = 1 * time.Hour
)

// RedisClientInterface defines the Redis operations used by our client
type RedisClientInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Client manages Redis connections and operations
type Client struct {
	client RedisClientInterface
}

// New creates a new Redis client
func New(addr string) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: client}, nil
}

// NewWithClient creates a new Redis client with a custom RedisClientInterface (useful for testing)
func NewWithClient(client RedisClientInterface) *Client {
	return &Client{client: client}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// SavePanels persists the panel list as a single document
func (c *Client) SavePanels(ctx context.Context, panels []types.VehiclePanel) error {
	data, err := json.Marshal(panels)
	if err != nil {
		return fmt.Errorf("failed to marshal panels: %w", err)
	}

	return c.client.Set(ctx, panelsKey, data, 0).Err()
}

// LoadPanels retrieves the persisted panel list. A missing key yields an
// empty list, not an error.
func (c *Client) LoadPanels(ctx context.Context) ([]types.VehiclePanel, error) {
	data, err := c.client.Get(ctx, panelsKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get panels: %w", err)
	}

	var panels []types.VehiclePanel
	if err := json.Unmarshal(data, &panels); err != nil {
		return nil, fmt.Errorf("failed to unmarshal panels: %w", err)
	}
	return panels, nil
}

// ClearPanels removes the persisted panel list
func (c *Client) ClearPanels(ctx context.Context) error {
	return c.client.Del(ctx, panelsKey).Err()
}

// StoreVehicleState caches the latest vehicle snapshot
func (c *Client) StoreVehicleState(ctx context.Context, vehicle *types.TrackedVehicle) error {
	data, err := json.Marshal(vehicle)
	if err != nil {
		return fmt.Errorf("failed to marshal vehicle state: %w", err)
	}

	key := fmt.Sprintf("vehicle:%s", vehicle.VehicleID)
	return c.client.Set(ctx, key, data, vehicleStateTTL).Err()
}

// GetVehicleState retrieves the cached vehicle snapshot, or nil when the
// cache has no entry.
func (c *Client) GetVehicleState(ctx context.Context, vehicleID string) (*types.TrackedVehicle, error) {
	key := fmt.Sprintf("vehicle:%s", vehicleID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle state: %w", err)
	}

	var vehicle types.TrackedVehicle
	if err := json.Unmarshal(data, &vehicle); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vehicle state: %w", err)
	}
	return &vehicle, nil
}

// DeleteVehicleState removes a cached vehicle snapshot
func (c *Client) DeleteVehicleState(ctx context.Context, vehicleID string) error {
	key := fmt.Sprintf("vehicle:%s", vehicleID)
	return c.client.Del(ctx, key).Err()
}
