package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/mobitrack/fleet-monitor/internal/types"
)

type Client struct {
	db *sql.DB
}

// New creates a new database client
func New(connStr string) (*Client, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	return &Client{db: db}, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// ActiveVehicles retrieves the tracked vehicles matching the filter,
// with their last-known position and status.
func (c *Client) ActiveVehicles(ctx context.Context, filter types.VehicleFilter) ([]types.TrackedVehicle, error) {
	query := `
		SELECT vehicle_id, plate, company_id,
			last_latitude, last_longitude, last_speed, last_heading,
			movement_status, connection_status, last_update
		FROM vehicles
		WHERE is_active = TRUE
	`
	var args []interface{}
	query, args = applyVehicleFilter(query, filter)
	query += ` ORDER BY plate`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []types.TrackedVehicle
	for rows.Next() {
		var v types.TrackedVehicle
		if err := rows.Scan(
			&v.VehicleID, &v.Plate, &v.CompanyID,
			&v.Position.Lat, &v.Position.Lng, &v.Position.Speed, &v.Position.Heading,
			&v.MovementStatus, &v.ConnectionStatus, &v.LastUpdate,
		); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

func applyVehicleFilter(query string, filter types.VehicleFilter) (string, []interface{}) {
	var args []interface{}
	if filter.CompanyID != "" {
		args = append(args, filter.CompanyID)
		query += fmt.Sprintf(" AND company_id = $%d", len(args))
	}
	if filter.ConnectionStatus != "" {
		args = append(args, filter.ConnectionStatus)
		query += fmt.Sprintf(" AND connection_status = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(" AND (plate ILIKE $%d OR vehicle_id ILIKE $%d)", len(args), len(args))
	}
	return query, args
}

// StoreVehicleState appends one position sample to the history table
func (c *Client) StoreVehicleState(ctx context.Context, msg *types.PositionMessage) error {
	query := `
		INSERT INTO vehicle_states (
			time, vehicle_id, latitude, longitude, speed, heading,
			movement_status, connection_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := c.db.ExecContext(ctx, query,
		msg.Timestamp, msg.VehicleID,
		msg.Position.Lat, msg.Position.Lng, msg.Position.Speed, msg.Position.Heading,
		msg.MovementStatus, msg.ConnectionStatus,
	)
	return err
}

// UpdateVehicleSnapshot refreshes a vehicle's last-known columns
func (c *Client) UpdateVehicleSnapshot(ctx context.Context, msg *types.PositionMessage) error {
	query := `
		UPDATE vehicles SET
			last_latitude = $1, last_longitude = $2,
			last_speed = $3, last_heading = $4,
			movement_status = $5, connection_status = $6,
			last_update = $7
		WHERE vehicle_id = $8
	`
	_, err := c.db.ExecContext(ctx, query,
		msg.Position.Lat, msg.Position.Lng,
		msg.Position.Speed, msg.Position.Heading,
		msg.MovementStatus, msg.ConnectionStatus,
		msg.Timestamp, msg.VehicleID,
	)
	return err
}

// RoutePoints retrieves the recorded samples of one vehicle over a date
// range, ordered by time.
func (c *Client) RoutePoints(ctx context.Context, q types.RouteQuery) ([]types.RoutePoint, error) {
	query := `
		SELECT s.latitude, s.longitude, s.speed, s.heading, s.time
		FROM vehicle_states s
		JOIN vehicles v ON v.vehicle_id = s.vehicle_id
		WHERE v.plate = $1 AND s.time BETWEEN $2 AND $3
		ORDER BY s.time ASC
	`
	rows, err := c.db.QueryContext(ctx, query, q.Plate, q.StartDate, q.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []types.RoutePoint
	for rows.Next() {
		var p types.RoutePoint
		if err := rows.Scan(&p.Lat, &p.Lng, &p.Speed, &p.Heading, &p.Timestamp); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// RetransmissionRecords retrieves the GPS links matching the filter
func (c *Client) RetransmissionRecords(ctx context.Context, filter types.LinkFilter) ([]types.RetransmissionRecord, error) {
	query := `
		SELECT id, company_id, vehicle_plate, connection_status, comment
		FROM gps_links
		WHERE TRUE
	`
	var args []interface{}
	if filter.CompanyID != "" {
		args = append(args, filter.CompanyID)
		query += fmt.Sprintf(" AND company_id = $%d", len(args))
	}
	if filter.ConnectionStatus != "" {
		args = append(args, filter.ConnectionStatus)
		query += fmt.Sprintf(" AND connection_status = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(" AND vehicle_plate ILIKE $%d", len(args))
	}
	query += ` ORDER BY vehicle_plate`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []types.RetransmissionRecord
	for rows.Next() {
		var r types.RetransmissionRecord
		if err := rows.Scan(&r.ID, &r.CompanyID, &r.VehiclePlate, &r.ConnectionStatus, &r.Comment); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// UpdateLinkComment changes a link's comment and returns the updated row
func (c *Client) UpdateLinkComment(ctx context.Context, id, comment string) (types.RetransmissionRecord, error) {
	query := `
		UPDATE gps_links SET comment = $1
		WHERE id = $2
		RETURNING id, company_id, vehicle_plate, connection_status, comment
	`
	var r types.RetransmissionRecord
	err := c.db.QueryRowContext(ctx, query, comment, id).Scan(
		&r.ID, &r.CompanyID, &r.VehiclePlate, &r.ConnectionStatus, &r.Comment,
	)
	if err == sql.ErrNoRows {
		return r, fmt.Errorf("link %s not found", id)
	}
	return r, err
}
