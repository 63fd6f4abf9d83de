package testutils

import (
	"context"
	"fmt"
	"time"

	"github.com/mobitrack/fleet-monitor/internal/types"
)

// MockPositionMessage creates a position update for testing
func MockPositionMessage(vehicleID string) *types.PositionMessage {
	return &types.PositionMessage{
		Type:             types.MessageTypePositionUpdate,
		VehicleID:        vehicleID,
		Position:         types.Position{Lat: -23.5505, Lng: -46.6333, Speed: 40, Heading: 90},
		MovementStatus:   types.MovementMoving,
		ConnectionStatus: types.ConnectionOnline,
		Timestamp:        time.Now().UTC(),
	}
}

// MockVehicle creates a tracked vehicle for testing
func MockVehicle(vehicleID, plate string) types.TrackedVehicle {
	return types.TrackedVehicle{
		VehicleID:        vehicleID,
		Plate:            plate,
		CompanyID:        "test-company",
		Position:         types.Position{Lat: -23.5505, Lng: -46.6333, Speed: 40, Heading: 90},
		MovementStatus:   types.MovementMoving,
		ConnectionStatus: types.ConnectionOnline,
		LastUpdate:       time.Now().UTC(),
	}
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(condition func() bool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for condition")
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}
