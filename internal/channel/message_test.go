package channel

import (
	"testing"
	"time"

	"github.com/mobitrack/fleet-monitor/internal/types"
)

func TestDecodePositionMessage(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantMsg   bool
		wantError bool
	}{
		{
			name:    "valid position update",
			payload: `{"type":"position_update","vehicle_id":"v7","position":{"lat":-23.5,"lng":-46.6,"speed":45,"heading":180},"movement_status":"moving","connection_status":"online","timestamp":"2025-06-01T12:00:00Z"}`,
			wantMsg: true,
		},
		{
			name:    "unknown type is skipped",
			payload: `{"type":"dwell_report","vehicle_id":"v7"}`,
			wantMsg: false,
		},
		{
			name:      "invalid json",
			payload:   `{"type":`,
			wantError: true,
		},
		{
			name:      "position update without vehicle id",
			payload:   `{"type":"position_update","position":{"lat":1,"lng":2}}`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodePositionMessage([]byte(tt.payload))

			if tt.wantError && err == nil {
				t.Error("Expected error, got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
			if tt.wantMsg && msg == nil {
				t.Error("Expected decoded message, got nil")
			}
			if !tt.wantMsg && msg != nil {
				t.Errorf("Expected nil message, got %+v", msg)
			}
		})
	}
}

func TestDecodePositionMessage_Fields(t *testing.T) {
	payload := `{"type":"position_update","vehicle_id":"v7","position":{"lat":-23.5,"lng":-46.6,"speed":45,"heading":180},"movement_status":"moving","connection_status":"temp_loss","timestamp":"2025-06-01T12:00:00Z"}`

	msg, err := DecodePositionMessage([]byte(payload))
	if err != nil {
		t.Fatalf("DecodePositionMessage() failed: %v", err)
	}

	if msg.VehicleID != "v7" {
		t.Errorf("VehicleID = %q, want v7", msg.VehicleID)
	}
	if msg.Position.Lat != -23.5 || msg.Position.Lng != -46.6 {
		t.Errorf("Unexpected position: %+v", msg.Position)
	}
	if msg.Position.Heading != 180 {
		t.Errorf("Heading = %d, want 180", msg.Position.Heading)
	}
	if msg.ConnectionStatus != types.ConnectionTempLoss {
		t.Errorf("ConnectionStatus = %q, want temp_loss", msg.ConnectionStatus)
	}
	want := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if !msg.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", msg.Timestamp, want)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := &types.PositionMessage{
		VehicleID:        "v9",
		Position:         types.Position{Lat: 10.5, Lng: 20.25, Speed: 33.5, Heading: 270},
		MovementStatus:   types.MovementStopped,
		ConnectionStatus: types.ConnectionOnline,
		Timestamp:        time.Date(2025, 7, 15, 8, 30, 0, 0, time.UTC),
	}

	data, err := EncodePositionMessage(original)
	if err != nil {
		t.Fatalf("EncodePositionMessage() failed: %v", err)
	}

	decoded, err := DecodePositionMessage(data)
	if err != nil {
		t.Fatalf("DecodePositionMessage() failed: %v", err)
	}
	if decoded == nil {
		t.Fatal("Expected decoded message, got nil")
	}
	if decoded.VehicleID != original.VehicleID {
		t.Errorf("VehicleID = %q, want %q", decoded.VehicleID, original.VehicleID)
	}
	if decoded.Position != original.Position {
		t.Errorf("Position = %+v, want %+v", decoded.Position, original.Position)
	}
}
