package channel

import (
	"encoding/json"
	"fmt"

	"github.com/mobitrack/fleet-monitor/internal/types"
)

// DecodePositionMessage parses a raw channel payload into a typed message.
// Messages with an unknown type return (nil, nil): they are skipped, not
// errors. A payload claiming to be a position update but missing its
// vehicle identity is malformed.
func DecodePositionMessage(data []byte) (*types.PositionMessage, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode message envelope: %w", err)
	}
	if envelope.Type != types.MessageTypePositionUpdate {
		return nil, nil
	}

	var msg types.PositionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode position update: %w", err)
	}
	if msg.VehicleID == "" {
		return nil, fmt.Errorf("position update missing vehicle_id")
	}
	return &msg, nil
}

// EncodePositionMessage serializes a position update for publishing.
func EncodePositionMessage(msg *types.PositionMessage) ([]byte, error) {
	if msg.Type == "" {
		msg.Type = types.MessageTypePositionUpdate
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode position update: %w", err)
	}
	return data, nil
}
