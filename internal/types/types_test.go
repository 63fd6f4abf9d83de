package types

import (
	"testing"
)

func TestValidMovementStatus(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{MovementMoving, true},
		{MovementStopped, true},
		{"parked", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidMovementStatus(tt.status); got != tt.want {
			t.Errorf("ValidMovementStatus(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestValidConnectionStatus(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{ConnectionOnline, true},
		{ConnectionTempLoss, true},
		{ConnectionDisconnected, true},
		{"offline", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidConnectionStatus(tt.status); got != tt.want {
			t.Errorf("ValidConnectionStatus(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
