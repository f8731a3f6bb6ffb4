package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartcity/assistant/internal/domain"
)

// historyLimit caps rows returned by the history queries
const historyLimit = 100

// schema creates the snapshot tables when they do not exist yet
const schema = `
CREATE TABLE IF NOT EXISTS weather_snapshots (
	id          BIGSERIAL PRIMARY KEY,
	city        TEXT NOT NULL,
	country     TEXT NOT NULL DEFAULT '',
	lat         DOUBLE PRECISION NOT NULL,
	lon         DOUBLE PRECISION NOT NULL,
	temperature DOUBLE PRECISION NOT NULL,
	humidity    INTEGER NOT NULL,
	pressure    INTEGER NOT NULL,
	wind_speed  DOUBLE PRECISION NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	timestamp   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS weather_snapshots_timestamp_idx ON weather_snapshots (timestamp);

CREATE TABLE IF NOT EXISTS traffic_snapshots (
	id                    BIGSERIAL PRIMARY KEY,
	city                  TEXT NOT NULL,
	country               TEXT NOT NULL DEFAULT '',
	lat                   DOUBLE PRECISION NOT NULL,
	lon                   DOUBLE PRECISION NOT NULL,
	current_speed         DOUBLE PRECISION NOT NULL,
	free_flow_speed       DOUBLE PRECISION NOT NULL,
	current_travel_time   DOUBLE PRECISION NOT NULL,
	free_flow_travel_time DOUBLE PRECISION NOT NULL,
	congestion_ratio      DOUBLE PRECISION,
	timestamp             TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS traffic_snapshots_timestamp_idx ON traffic_snapshots (timestamp);

CREATE TABLE IF NOT EXISTS air_quality_snapshots (
	id         BIGSERIAL PRIMARY KEY,
	city       TEXT NOT NULL,
	country    TEXT NOT NULL DEFAULT '',
	lat        DOUBLE PRECISION NOT NULL,
	lon        DOUBLE PRECISION NOT NULL,
	aqi        INTEGER NOT NULL,
	pollutants JSONB NOT NULL DEFAULT '{}',
	timestamp  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS air_quality_snapshots_timestamp_idx ON air_quality_snapshots (timestamp);
`

// PostgresRepository implements domain.DataRepository
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the snapshot tables if they are missing
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: failed to ensure schema: %w", err)
	}
	return nil
}

// SaveWeatherData persists a weather snapshot to PostgreSQL
func (r *PostgresRepository) SaveWeatherData(ctx context.Context, data domain.WeatherSnapshot) error {
	query := `
		INSERT INTO weather_snapshots (
			city, country, lat, lon, temperature, humidity, pressure,
			wind_speed, description, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		data.City, data.Country, data.Latitude, data.Longitude, data.Temperature, data.Humidity, data.Pressure,
		data.WindSpeed, data.Description, data.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save weather data: %w", err)
	}

	return nil
}

// SaveTrafficData persists a traffic snapshot to PostgreSQL
func (r *PostgresRepository) SaveTrafficData(ctx context.Context, data domain.TrafficSnapshot) error {
	query := `
		INSERT INTO traffic_snapshots (
			city, country, lat, lon, current_speed, free_flow_speed,
			current_travel_time, free_flow_travel_time, congestion_ratio, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		data.City, data.Country, data.Latitude, data.Longitude, data.CurrentSpeed, data.FreeFlowSpeed,
		data.CurrentTravelTime, data.FreeFlowTravelTime, data.CongestionRatio, data.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save traffic data: %w", err)
	}

	return nil
}

// SaveAirQualityData persists an air quality snapshot to PostgreSQL
func (r *PostgresRepository) SaveAirQualityData(ctx context.Context, data domain.AirQualitySnapshot) error {
	query := `
		INSERT INTO air_quality_snapshots (
			city, country, lat, lon, aqi, pollutants, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	pollutants := data.Pollutants
	if pollutants == nil {
		pollutants = map[string]float64{}
	}

	_, err := r.pool.Exec(ctx, query,
		data.City, data.Country, data.Latitude, data.Longitude, data.AQI, pollutants, data.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save air quality data: %w", err)
	}

	return nil
}

// GetHistoricalWeather retrieves weather history from PostgreSQL
func (r *PostgresRepository) GetHistoricalWeather(ctx context.Context, from, to time.Time) ([]domain.WeatherSnapshot, error) {
	query := `
		SELECT city, country, lat, lon, temperature, humidity, pressure,
			   wind_speed, description, timestamp
		FROM weather_snapshots
		WHERE timestamp BETWEEN $1 AND $2
		ORDER BY timestamp DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, from, to, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query weather data: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.WeatherSnapshot, error) {
		var w domain.WeatherSnapshot
		err := row.Scan(
			&w.City, &w.Country, &w.Latitude, &w.Longitude, &w.Temperature, &w.Humidity, &w.Pressure,
			&w.WindSpeed, &w.Description, &w.Timestamp,
		)
		return w, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to scan weather row: %w", err)
	}

	return results, nil
}

// GetHistoricalTraffic retrieves traffic history from PostgreSQL
func (r *PostgresRepository) GetHistoricalTraffic(ctx context.Context, from, to time.Time) ([]domain.TrafficSnapshot, error) {
	query := `
		SELECT city, country, lat, lon, current_speed, free_flow_speed,
			   current_travel_time, free_flow_travel_time, congestion_ratio, timestamp
		FROM traffic_snapshots
		WHERE timestamp BETWEEN $1 AND $2
		ORDER BY timestamp DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, from, to, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query traffic data: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TrafficSnapshot, error) {
		var t domain.TrafficSnapshot
		err := row.Scan(
			&t.City, &t.Country, &t.Latitude, &t.Longitude, &t.CurrentSpeed, &t.FreeFlowSpeed,
			&t.CurrentTravelTime, &t.FreeFlowTravelTime, &t.CongestionRatio, &t.Timestamp,
		)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to scan traffic row: %w", err)
	}

	return results, nil
}

// GetHistoricalAirQuality retrieves air quality history from PostgreSQL
func (r *PostgresRepository) GetHistoricalAirQuality(ctx context.Context, from, to time.Time) ([]domain.AirQualitySnapshot, error) {
	query := `
		SELECT city, country, lat, lon, aqi, pollutants, timestamp
		FROM air_quality_snapshots
		WHERE timestamp BETWEEN $1 AND $2
		ORDER BY timestamp DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, from, to, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query air quality data: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.AirQualitySnapshot, error) {
		var a domain.AirQualitySnapshot
		err := row.Scan(&a.City, &a.Country, &a.Latitude, &a.Longitude, &a.AQI, &a.Pollutants, &a.Timestamp)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to scan air quality row: %w", err)
	}

	return results, nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}

var _ domain.DataRepository = (*PostgresRepository)(nil)
