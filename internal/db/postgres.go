package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BrightonLiu-zZ/bikewatching/internal/models"
)

// postgresSchema mirrors schema.sql with Postgres types.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS import_snapshots (
    snapshot_id     TEXT PRIMARY KEY,
    stations_source TEXT NOT NULL,
    trips_source    TEXT NOT NULL,
    station_count   INTEGER NOT NULL,
    trip_count      INTEGER NOT NULL,
    imported_at_utc TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS stations (
    station_id  TEXT NOT NULL,
    name        TEXT NOT NULL,
    lon         DOUBLE PRECISION NOT NULL,
    lat         DOUBLE PRECISION NOT NULL,
    snapshot_id TEXT NOT NULL REFERENCES import_snapshots(snapshot_id),
    PRIMARY KEY (station_id, snapshot_id)
);

CREATE TABLE IF NOT EXISTS trips (
    ride_id          TEXT NOT NULL,
    start_station_id TEXT NOT NULL,
    end_station_id   TEXT NOT NULL,
    started_at_utc   TIMESTAMPTZ NOT NULL,
    ended_at_utc     TIMESTAMPTZ NOT NULL,
    snapshot_id      TEXT NOT NULL REFERENCES import_snapshots(snapshot_id),
    PRIMARY KEY (ride_id, snapshot_id)
);
`

// PostgresStore is the dataset cache backed by Postgres, selected when
// DATABASE_URL is configured.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres creates the connection pool and ensures the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// SaveDatasets writes both collections under a fresh snapshot id in one
// transaction. Trips go in via COPY, which matters for month-sized
// exports.
func (s *PostgresStore) SaveDatasets(ctx context.Context, stations []models.Station, trips []models.Trip, stationsSource, tripsSource string) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	snapshotID := uuid.New().String()

	_, err = tx.Exec(ctx,
		`INSERT INTO import_snapshots (snapshot_id, stations_source, trips_source, station_count, trip_count, imported_at_utc)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		snapshotID, stationsSource, tripsSource, len(stations), len(trips), time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"stations"},
		[]string{"station_id", "name", "lon", "lat", "snapshot_id"},
		pgx.CopyFromSlice(len(stations), func(i int) ([]any, error) {
			st := stations[i]
			return []any{st.ID, st.Name, st.Lon, st.Lat, snapshotID}, nil
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to copy stations: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"trips"},
		[]string{"ride_id", "start_station_id", "end_station_id", "started_at_utc", "ended_at_utc", "snapshot_id"},
		pgx.CopyFromSlice(len(trips), func(i int) ([]any, error) {
			trip := trips[i]
			return []any{trip.ID, trip.StartStationID, trip.EndStationID, trip.StartedAt.UTC(), trip.EndedAt.UTC(), snapshotID}, nil
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to copy trips: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit import: %w", err)
	}
	return snapshotID, nil
}

// LoadLatest returns the stations and trips of the most recent snapshot.
func (s *PostgresStore) LoadLatest(ctx context.Context) ([]models.Station, []models.Trip, *Snapshot, error) {
	var snap Snapshot
	err := s.pool.QueryRow(ctx,
		`SELECT snapshot_id, stations_source, trips_source, station_count, trip_count, imported_at_utc
		 FROM import_snapshots ORDER BY imported_at_utc DESC LIMIT 1`,
	).Scan(&snap.ID, &snap.StationsSource, &snap.TripsSource, &snap.StationCount, &snap.TripCount, &snap.ImportedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		"SELECT station_id, name, lon, lat FROM stations WHERE snapshot_id = $1 ORDER BY station_id",
		snap.ID,
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to query stations: %w", err)
	}
	stations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Station, error) {
		var st models.Station
		err := row.Scan(&st.ID, &st.Name, &st.Lon, &st.Lat)
		return st, err
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to scan stations: %w", err)
	}

	rows, err = s.pool.Query(ctx,
		`SELECT ride_id, start_station_id, end_station_id, started_at_utc, ended_at_utc
		 FROM trips WHERE snapshot_id = $1`,
		snap.ID,
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to query trips: %w", err)
	}
	trips, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Trip, error) {
		var trip models.Trip
		err := row.Scan(&trip.ID, &trip.StartStationID, &trip.EndStationID, &trip.StartedAt, &trip.EndedAt)
		return trip, err
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to scan trips: %w", err)
	}

	return stations, trips, &snap, nil
}
