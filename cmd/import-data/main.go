// import-data fetches the station and trip exports, parses them and writes
// a fresh snapshot into the dataset store. Run it ahead of the server to
// pre-warm the cache, or to refresh an existing one.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/BrightonLiu-zZ/bikewatching/internal/config"
	"github.com/BrightonLiu-zZ/bikewatching/internal/db"
	"github.com/BrightonLiu-zZ/bikewatching/internal/ingest"
)

func main() {
	stationsFile := flag.String("stations", "", "Local stations CSV (skips download)")
	tripsFile := flag.String("trips", "", "Local trips CSV (skips download)")
	flag.Parse()

	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")
	cfg := config.Load()

	var (
		data *ingest.Datasets
		err  error
	)
	if *stationsFile != "" && *tripsFile != "" {
		data, err = ingest.LoadFiles(*stationsFile, *tripsFile)
	} else {
		data, err = ingest.Load(cfg)
	}
	if err != nil {
		log.Fatalf("Failed to load datasets: %v", err)
	}

	ctx := context.Background()
	var store db.Store
	if cfg.DatabaseURL != "" {
		store, err = db.OpenPostgres(ctx, cfg.DatabaseURL)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); mkErr != nil {
			log.Fatalf("Failed to create database directory: %v", mkErr)
		}
		store, err = db.OpenSQLite(cfg.DatabasePath)
	}
	if err != nil {
		log.Fatalf("Failed to open dataset store: %v", err)
	}
	defer store.Close()

	snapshotID, err := store.SaveDatasets(ctx, data.Stations, data.Trips, cfg.StationsURL, cfg.TripsURL)
	if err != nil {
		log.Fatalf("Failed to save datasets: %v", err)
	}

	log.Printf("Imported snapshot %s: %d stations, %d trips", snapshotID, len(data.Stations), len(data.Trips))
}
