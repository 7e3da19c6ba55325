package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/BrightonLiu-zZ/bikewatching/internal/config"
	"github.com/BrightonLiu-zZ/bikewatching/internal/db"
	"github.com/BrightonLiu-zZ/bikewatching/internal/ingest"
	"github.com/BrightonLiu-zZ/bikewatching/internal/models"
	"github.com/BrightonLiu-zZ/bikewatching/internal/server"
	"github.com/BrightonLiu-zZ/bikewatching/internal/view"
)

// defaultViewport frames the Boston metro area until the frontend reports
// its real viewport.
var defaultViewport = view.Viewport{
	CenterLon: -71.0926,
	CenterLat: 42.3602,
	Zoom:      12,
	Width:     1200,
	Height:    800,
}

func main() {
	log.Println("Starting bikewatching server...")

	// Load .env first, then .env.local (which overrides for local development)
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	cfg := config.Load()

	// ═══════════════════════════════════════════════════════
	// PHASE 1: Open the dataset store
	// ═══════════════════════════════════════════════════════
	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open dataset store: %v", err)
	}
	defer store.Close()

	// ═══════════════════════════════════════════════════════
	// PHASE 2: Load both datasets (cache first, then source)
	// ═══════════════════════════════════════════════════════
	// Rendering is gated on both datasets: a failure here is fatal and no
	// pipeline starts.
	stations, trips, err := loadDatasets(context.Background(), cfg, store)
	if err != nil {
		log.Fatalf("Failed to load datasets: %v", err)
	}

	// ═══════════════════════════════════════════════════════
	// PHASE 3: Start the reactive controller
	// ═══════════════════════════════════════════════════════
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	layer := server.NewMarkerLayer()
	ctrl := view.New(stations, trips, view.NewMercator(defaultViewport), layer)
	go ctrl.Run(ctx)

	// ═══════════════════════════════════════════════════════
	// PHASE 4: Serve the API
	// ═══════════════════════════════════════════════════════
	handler := server.NewHandler(ctrl, layer, store, stations)
	router := server.NewRouter(handler, cfg.AllowedOrigins)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: router}
	go func() {
		log.Printf("API server starting on %s", cfg.ListenAddr)
		log.Println("  GET /api/markers")
		log.Println("  PUT /api/filter")
		log.Println("  PUT /api/viewport")
		log.Println("  GET /api/stations/{id}")
		log.Println("  GET /health (with database check)")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	if err := srv.Shutdown(context.Background()); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

func openStore(cfg *config.Config) (db.Store, error) {
	if cfg.DatabaseURL != "" {
		log.Println("Using Postgres dataset store")
		return db.OpenPostgres(context.Background(), cfg.DatabaseURL)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, err
	}
	log.Printf("Using SQLite dataset store: %s", cfg.DatabasePath)
	return db.OpenSQLite(cfg.DatabasePath)
}

// loadDatasets serves from the store when a snapshot exists, otherwise
// performs the one-time fetch+parse of both sources and persists it.
func loadDatasets(ctx context.Context, cfg *config.Config, store db.Store) ([]models.Station, []models.Trip, error) {
	stations, trips, snap, err := store.LoadLatest(ctx)
	if err == nil {
		log.Printf("Loaded snapshot %s from store: %d stations, %d trips", snap.ID, len(stations), len(trips))
		return stations, trips, nil
	}
	if !errors.Is(err, db.ErrNoSnapshot) {
		return nil, nil, err
	}

	data, err := ingest.Load(cfg)
	if err != nil {
		return nil, nil, err
	}

	snapshotID, err := store.SaveDatasets(ctx, data.Stations, data.Trips, cfg.StationsURL, cfg.TripsURL)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("Imported snapshot %s: %d stations, %d trips", snapshotID, len(data.Stations), len(data.Trips))
	return data.Stations, data.Trips, nil
}
