package migrations

var RetentionPolicies = &Migration{
	ID:   "002_retention_policies",
	Name: "002_retention_policies",
	NoTx: true,
	UpSQL: `
	-- Keep raw position history for 90 days
	SELECT add_retention_policy('vehicle_states', INTERVAL '90 days');

	-- Create continuous aggregate for hourly per-vehicle sample counts
	CREATE MATERIALIZED VIEW IF NOT EXISTS vehicle_states_hourly
	WITH (timescaledb.continuous) AS
	SELECT
		time_bucket('1 hour', time) AS hour,
		vehicle_id,
		COUNT(*) AS sample_count,
		MAX(speed) AS max_speed,
		AVG(speed) AS avg_speed
	FROM vehicle_states
	GROUP BY hour, vehicle_id
	WITH NO DATA;
	`,
	DownSQL: `
	DROP MATERIALIZED VIEW IF EXISTS vehicle_states_hourly;
	SELECT remove_retention_policy('vehicle_states');
	`,
}
