package types

import (
	"time"
)

// Movement status values for a tracked vehicle.
const (
	MovementMoving  = "moving"
	MovementStopped = "stopped"
)

// Connection status values for a vehicle's GPS link.
const (
	ConnectionOnline       = "online"
	ConnectionTempLoss     = "temp_loss"
	ConnectionDisconnected = "disconnected"
)

// Position represents a single geographic fix
type Position struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Speed   float64 `json:"speed"`
	Heading int     `json:"heading"`
}

// TrackedVehicle represents the live state of one monitored vehicle
type TrackedVehicle struct {
	VehicleID        string    `json:"vehicle_id"`
	Plate            string    `json:"plate"`
	CompanyID        string    `json:"company_id"`
	Position         Position  `json:"position"`
	MovementStatus   string    `json:"movement_status"`
	ConnectionStatus string    `json:"connection_status"`
	LastUpdate       time.Time `json:"last_update"`
}

// MessageTypePositionUpdate is the discriminator for position update messages.
const MessageTypePositionUpdate = "position_update"

// PositionMessage is the wire contract of the push channel
type PositionMessage struct {
	Type             string    `json:"type"`
	VehicleID        string    `json:"vehicle_id"`
	Position         Position  `json:"position"`
	MovementStatus   string    `json:"movement_status"`
	ConnectionStatus string    `json:"connection_status"`
	Timestamp        time.Time `json:"timestamp"`
}

// GridPosition is a slot in the panel grid
type GridPosition struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// VehiclePanel binds one vehicle identity to one grid slot
type VehiclePanel struct {
	ID        string       `json:"id"`
	VehicleID string       `json:"vehicle_id"`
	Label     string       `json:"label"`
	Position  GridPosition `json:"position"`
	IsActive  bool         `json:"is_active"`
	AddedAt   time.Time    `json:"added_at"`
}

// GridConfig describes the grid layout derived from the panel count
type GridConfig struct {
	Columns int    `json:"columns"`
	Rows    int    `json:"rows"`
	Layout  string `json:"layout"`
}

// RoutePoint is one recorded sample of a historical route
type RoutePoint struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Speed     float64   `json:"speed"`
	Heading   int       `json:"heading"`
	Timestamp time.Time `json:"timestamp"`
}

// RouteStats summarizes a historical route
type RouteStats struct {
	DistanceKM      float64 `json:"distance_km"`
	MaxSpeed        float64 `json:"max_speed"`
	AvgSpeed        float64 `json:"avg_speed"`
	DurationSeconds int64   `json:"duration_seconds"`
}

// HistoricalRoute is an immutable, ordered sequence of recorded samples
type HistoricalRoute struct {
	VehiclePlate string       `json:"vehicle_plate"`
	StartDate    time.Time    `json:"start_date"`
	Points       []RoutePoint `json:"points"`
	Stats        RouteStats   `json:"stats"`
}

// RetransmissionRecord tracks the health of one upstream GPS link
type RetransmissionRecord struct {
	ID               string `json:"id"`
	CompanyID        string `json:"company_id"`
	VehiclePlate     string `json:"vehicle_plate"`
	ConnectionStatus string `json:"connection_status"`
	Comment          string `json:"comment"`
}

// RetransmissionStats aggregates link health over a loaded record set
type RetransmissionStats struct {
	Total               int     `json:"total"`
	Online              int     `json:"online"`
	TemporaryLoss       int     `json:"temporary_loss"`
	Disconnected        int     `json:"disconnected"`
	OnlinePercent       float64 `json:"online_percent"`
	TempLossPercent     float64 `json:"temp_loss_percent"`
	DisconnectedPercent float64 `json:"disconnected_percent"`
}

// VehicleFilter narrows a vehicle snapshot fetch
type VehicleFilter struct {
	CompanyID        string
	ConnectionStatus string
	Search           string
}

// LinkFilter narrows a retransmission record fetch
type LinkFilter struct {
	CompanyID        string
	ConnectionStatus string
	Search           string
}

// RouteQuery selects the recorded samples of one vehicle over a date range
type RouteQuery struct {
	Plate     string    `json:"plate" validate:"required,min=3,max=16"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
}

// PlaybackState is a snapshot of the playback engine
type PlaybackState struct {
	IsPlaying    bool `json:"is_playing"`
	IsPaused     bool `json:"is_paused"`
	CurrentIndex int  `json:"current_index"`
	Speed        int  `json:"speed"`
	Progress     int  `json:"progress"`
}

// ValidMovementStatus reports whether s is a known movement status.
func ValidMovementStatus(s string) bool {
	return s == MovementMoving || s == MovementStopped
}

// ValidConnectionStatus reports whether s is a known connection status.
func ValidConnectionStatus(s string) bool {
	return s == ConnectionOnline || s == ConnectionTempLoss || s == ConnectionDisconnected
}
