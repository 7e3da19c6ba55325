package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BrightonLiu-zZ/bikewatching/internal/models"

	_ "modernc.org/sqlite"
)

// schemaSQL is the single source of truth for the SQLite schema, embedded
// at compile time.
//
//go:embed schema.sql
var schemaSQL string

// SQLiteStore is the default dataset cache, backed by a single-file SQLite
// database with WAL enabled.
type SQLiteStore struct {
	conn    *sql.DB
	writeMu sync.Mutex // SQLite allows one writer; serialize imports
}

// OpenSQLite opens the database, applies PRAGMAs and ensures the schema.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath + "?_journal=WAL&_fk=1&_busy_timeout=5000"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &SQLiteStore{conn: conn}, nil
}

// Ping checks database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// SaveDatasets writes both collections under a fresh snapshot id in one
// transaction and returns the id.
func (s *SQLiteStore) SaveDatasets(ctx context.Context, stations []models.Station, trips []models.Trip, stationsSource, tripsSource string) (string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	snapshotID := uuid.New().String()
	importedAt := time.Now().UTC().Format(storedTimeLayout)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO import_snapshots (snapshot_id, stations_source, trips_source, station_count, trip_count, imported_at_utc)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snapshotID, stationsSource, tripsSource, len(stations), len(trips), importedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot: %w", err)
	}

	stationStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO stations (station_id, name, lon, lat, snapshot_id) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return "", err
	}
	defer stationStmt.Close()
	for _, st := range stations {
		if _, err := stationStmt.ExecContext(ctx, st.ID, st.Name, st.Lon, st.Lat, snapshotID); err != nil {
			return "", fmt.Errorf("failed to insert station %s: %w", st.ID, err)
		}
	}

	tripStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO trips (ride_id, start_station_id, end_station_id, started_at_utc, ended_at_utc, snapshot_id)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer tripStmt.Close()
	for _, trip := range trips {
		_, err := tripStmt.ExecContext(ctx,
			trip.ID, trip.StartStationID, trip.EndStationID,
			trip.StartedAt.UTC().Format(storedTimeLayout),
			trip.EndedAt.UTC().Format(storedTimeLayout),
			snapshotID,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert trip %s: %w", trip.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit import: %w", err)
	}
	return snapshotID, nil
}

// LoadLatest returns the stations and trips of the most recent snapshot.
func (s *SQLiteStore) LoadLatest(ctx context.Context) ([]models.Station, []models.Trip, *Snapshot, error) {
	var snap Snapshot
	var importedAt string
	err := s.conn.QueryRowContext(ctx,
		`SELECT snapshot_id, stations_source, trips_source, station_count, trip_count, imported_at_utc
		 FROM import_snapshots ORDER BY imported_at_utc DESC LIMIT 1`,
	).Scan(&snap.ID, &snap.StationsSource, &snap.TripsSource, &snap.StationCount, &snap.TripCount, &importedAt)
	if err == sql.ErrNoRows {
		return nil, nil, nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	snap.ImportedAt, _ = time.Parse(storedTimeLayout, importedAt)

	stations, err := s.loadStations(ctx, snap.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	trips, err := s.loadTrips(ctx, snap.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	return stations, trips, &snap, nil
}

func (s *SQLiteStore) loadStations(ctx context.Context, snapshotID string) ([]models.Station, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT station_id, name, lon, lat FROM stations WHERE snapshot_id = ? ORDER BY station_id",
		snapshotID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		var st models.Station
		if err := rows.Scan(&st.ID, &st.Name, &st.Lon, &st.Lat); err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

func (s *SQLiteStore) loadTrips(ctx context.Context, snapshotID string) ([]models.Trip, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT ride_id, start_station_id, end_station_id, started_at_utc, ended_at_utc
		 FROM trips WHERE snapshot_id = ?`,
		snapshotID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query trips: %w", err)
	}
	defer rows.Close()

	var trips []models.Trip
	for rows.Next() {
		var trip models.Trip
		var startedAt, endedAt string
		if err := rows.Scan(&trip.ID, &trip.StartStationID, &trip.EndStationID, &startedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		if trip.StartedAt, err = time.Parse(storedTimeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("failed to parse started_at for %s: %w", trip.ID, err)
		}
		if trip.EndedAt, err = time.Parse(storedTimeLayout, endedAt); err != nil {
			return nil, fmt.Errorf("failed to parse ended_at for %s: %w", trip.ID, err)
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}
