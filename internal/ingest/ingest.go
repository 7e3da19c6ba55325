// Package ingest fetches and parses the two source datasets: the station
// table and the trip history table. Both are CSV resources; both must load
// successfully before any rendering starts.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BrightonLiu-zZ/bikewatching/internal/config"
	"github.com/BrightonLiu-zZ/bikewatching/internal/models"
)

// tripTimeLayout matches the timestamps in the trip history export.
const tripTimeLayout = "2006-01-02 15:04:05"

// Datasets is the result of one complete load.
type Datasets struct {
	Stations []models.Station
	Trips    []models.Trip
}

// Load downloads (or reuses a cached copy of) both datasets and parses
// them. Any fetch or parse failure is returned to the caller, which treats
// it as fatal to initialization: there is no partial result.
func Load(cfg *config.Config) (*Datasets, error) {
	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	stationsPath := filepath.Join(cfg.CacheDir, "stations.csv")
	if err := download(cfg.StationsURL, stationsPath, cfg.HTTPTimeout); err != nil {
		return nil, fmt.Errorf("failed to fetch stations: %w", err)
	}
	tripsPath := filepath.Join(cfg.CacheDir, "trips.csv")
	if err := download(cfg.TripsURL, tripsPath, cfg.HTTPTimeout); err != nil {
		return nil, fmt.Errorf("failed to fetch trips: %w", err)
	}

	return LoadFiles(stationsPath, tripsPath)
}

// LoadFiles parses already-downloaded dataset files.
func LoadFiles(stationsPath, tripsPath string) (*Datasets, error) {
	stations, err := ParseStations(stationsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stations: %w", err)
	}
	trips, err := ParseTrips(tripsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trips: %w", err)
	}

	log.Printf("Datasets loaded: %d stations, %d trips", len(stations), len(trips))
	return &Datasets{Stations: stations, Trips: trips}, nil
}

// download fetches url to dest unless a cached copy already exists. The
// cache keeps restarts from re-pulling multi-megabyte exports; deleting the
// file forces a refresh.
func download(url, dest string, timeout time.Duration) error {
	if _, err := os.Stat(dest); err == nil {
		log.Printf("Using cached copy of %s", filepath.Base(dest))
		return nil
	}

	log.Printf("Downloading %s", url)
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(dest)
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}

// ParseStations reads the station table. Rows missing an id or with
// unparseable coordinates are skipped and counted, not fatal.
func ParseStations(path string) ([]models.Station, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read station header: %w", err)
	}
	idx := makeIndex(header)

	var stations []models.Station
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		lat, latErr := strconv.ParseFloat(getField(record, idx, "lat"), 64)
		lon, lonErr := strconv.ParseFloat(getField(record, idx, "lon"), 64)
		station := models.Station{
			ID:   getField(record, idx, "short_name"),
			Name: getField(record, idx, "name"),
			Lon:  lon,
			Lat:  lat,
		}
		if latErr != nil || lonErr != nil || station.Validate() != nil {
			skipped++
			continue
		}
		stations = append(stations, station)
	}

	if skipped > 0 {
		log.Printf("Stations parsed: %d rows skipped", skipped)
	}
	return stations, nil
}

// ParseTrips reads the trip history table. A trip's station ids are kept
// as-is even when they reference no known station; the aggregator treats
// those as unobservable, not as errors.
func ParseTrips(path string) ([]models.Trip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read trip header: %w", err)
	}
	idx := makeIndex(header)

	var trips []models.Trip
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		startedAt, startErr := time.Parse(tripTimeLayout, getField(record, idx, "started_at"))
		endedAt, endErr := time.Parse(tripTimeLayout, getField(record, idx, "ended_at"))
		if startErr != nil || endErr != nil {
			skipped++
			continue
		}

		trips = append(trips, models.Trip{
			ID:             getField(record, idx, "ride_id"),
			StartStationID: getField(record, idx, "start_station_id"),
			EndStationID:   getField(record, idx, "end_station_id"),
			StartedAt:      startedAt,
			EndedAt:        endedAt,
		})
	}

	if skipped > 0 {
		log.Printf("Trips parsed: %d rows skipped", skipped)
	}
	return trips, nil
}

func makeIndex(header []string) map[string]int {
	idx := make(map[string]int)
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func getField(record []string, idx map[string]int, field string) string {
	if i, ok := idx[field]; ok && i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}
