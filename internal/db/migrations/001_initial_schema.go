package migrations

// InitialSchema creates the initial database schema
var InitialSchema = &Migration{
	ID:   "001_initial_schema",
	Name: "001_initial_schema",
	UpSQL: `
		-- Enable TimescaleDB extension
		CREATE EXTENSION IF NOT EXISTS timescaledb;

		-- Vehicle registry with last-known state
		CREATE TABLE IF NOT EXISTS vehicles (
			vehicle_id TEXT PRIMARY KEY,
			plate TEXT NOT NULL,
			company_id TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_latitude DOUBLE PRECISION,
			last_longitude DOUBLE PRECISION,
			last_speed DOUBLE PRECISION,
			last_heading INTEGER,
			movement_status TEXT,
			connection_status TEXT,
			last_update TIMESTAMPTZ
		);

		CREATE INDEX IF NOT EXISTS idx_vehicles_plate ON vehicles (plate);
		CREATE INDEX IF NOT EXISTS idx_vehicles_company_id ON vehicles (company_id);

		-- Position history hypertable
		CREATE TABLE IF NOT EXISTS vehicle_states (
			time TIMESTAMPTZ NOT NULL,
			vehicle_id TEXT NOT NULL,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			speed DOUBLE PRECISION,
			heading INTEGER,
			movement_status TEXT,
			connection_status TEXT
		);

		SELECT create_hypertable('vehicle_states', 'time');

		CREATE INDEX IF NOT EXISTS idx_vehicle_states_vehicle_id ON vehicle_states (vehicle_id, time DESC);

		-- Upstream GPS link health
		CREATE TABLE IF NOT EXISTS gps_links (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			vehicle_plate TEXT NOT NULL,
			connection_status TEXT NOT NULL,
			comment TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_gps_links_company_id ON gps_links (company_id);
		CREATE INDEX IF NOT EXISTS idx_gps_links_connection_status ON gps_links (connection_status);
	`,
	DownSQL: `
		DROP TABLE IF EXISTS gps_links;
		DROP TABLE IF EXISTS vehicle_states;
		DROP TABLE IF EXISTS vehicles;
	`,
}
