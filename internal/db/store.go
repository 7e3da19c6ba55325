// Package db caches imported datasets in a relational store so the server
// can restart without re-downloading the source exports. SQLite is the
// default backend; Postgres is used when DATABASE_URL is configured.
package db

import (
	"context"
	"errors"
	"time"

	"github.com/BrightonLiu-zZ/bikewatching/internal/models"
)

// storedTimeLayout is how timestamps are persisted in both backends.
const storedTimeLayout = time.RFC3339

// Snapshot describes one completed dataset import.
type Snapshot struct {
	ID             string
	StationsSource string
	TripsSource    string
	StationCount   int
	TripCount      int
	ImportedAt     time.Time
}

// Store is the dataset cache. SaveDatasets persists a complete load as a
// new snapshot; LoadLatest returns the most recent one. Partial snapshots
// never become visible: the save is transactional.
type Store interface {
	Ping(ctx context.Context) error
	SaveDatasets(ctx context.Context, stations []models.Station, trips []models.Trip, stationsSource, tripsSource string) (string, error)
	LoadLatest(ctx context.Context) ([]models.Station, []models.Trip, *Snapshot, error)
	Close() error
}

// ErrNoSnapshot is returned by LoadLatest when nothing has been imported.
var ErrNoSnapshot = errors.New("no dataset snapshot in store")
