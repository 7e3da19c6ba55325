package models

import (
	"errors"
	"strings"
)

// Station is a bike-share dock as loaded from the station table.
// Base records are immutable after load; derived traffic lives in
// StationTraffic snapshots, never on the station itself.
type Station struct {
	ID   string  `db:"station_id" json:"id"`
	Name string  `db:"name" json:"name"`
	Lon  float64 `db:"lon" json:"lon"`
	Lat  float64 `db:"lat" json:"lat"`
}

// Validate checks if the Station has usable data
func (s *Station) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("station id is required")
	}
	if s.Lon < -180 || s.Lon > 180 {
		return errors.New("station lon out of range")
	}
	if s.Lat < -90 || s.Lat > 90 {
		return errors.New("station lat out of range")
	}
	return nil
}

// StationTraffic is one aggregation result row: the derived counters for a
// single station. totalTraffic == arrivals + departures always holds.
type StationTraffic struct {
	StationID    string `json:"stationId"`
	Arrivals     int    `json:"arrivals"`
	Departures   int    `json:"departures"`
	TotalTraffic int    `json:"totalTraffic"`
}
