// Package server exposes the marker pipeline over HTTP for the map
// frontend: marker snapshots, the slider's filter changes, viewport
// changes and per-station detail.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BrightonLiu-zZ/bikewatching/internal/db"
	"github.com/BrightonLiu-zZ/bikewatching/internal/encode"
	"github.com/BrightonLiu-zZ/bikewatching/internal/models"
	"github.com/BrightonLiu-zZ/bikewatching/internal/view"
)

// Handler serves the bikewatching API.
type Handler struct {
	ctrl     *view.Controller
	layer    *MarkerLayer
	store    db.Store
	stations map[string]models.Station
}

// NewHandler wires the controller, the marker layer it renders into, the
// dataset store (for health checks) and the base station set (for detail
// lookups).
func NewHandler(ctrl *view.Controller, layer *MarkerLayer, store db.Store, stations []models.Station) *Handler {
	byID := make(map[string]models.Station, len(stations))
	for _, st := range stations {
		byID[st.ID] = st
	}
	return &Handler{ctrl: ctrl, layer: layer, store: store, stations: byID}
}

// ErrorResponse is the JSON error response structure
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// MarkersResponse is the JSON response structure for GET /api/markers
type MarkersResponse struct {
	Markers []models.Marker   `json:"markers"`
	Count   int               `json:"count"`
	Filter  models.TimeFilter `json:"filter"`
}

// FilterRequest is the slider's change notification: the current slider
// value, with -1 meaning "any time".
type FilterRequest struct {
	Minute int `json:"minute"`
}

// StationResponse is the JSON response structure for GET /api/stations/{id}
type StationResponse struct {
	models.Station
	models.StationTraffic
	Tooltip string `json:"tooltip"`
}

// GetMarkers handles GET /api/markers
// Returns the currently rendered marker set, keyed by station id
func (h *Handler) GetMarkers(w http.ResponseWriter, r *http.Request) {
	filter, err := h.ctrl.Filter(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Controller unavailable", err)
		return
	}

	markers := h.layer.Snapshot()
	writeJSON(w, http.StatusOK, MarkersResponse{
		Markers: markers,
		Count:   len(markers),
		Filter:  filter,
	})
}

// PutFilter handles PUT /api/filter
// Applies a new time filter and runs the full recompute before responding
func (h *Handler) PutFilter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter payload", err)
		return
	}

	// Out-of-domain values are not rejected: negative values are the
	// any-time sentinel, and anything else that matches no trip's window
	// just renders as all-zero traffic.
	if err := h.ctrl.SetFilter(r.Context(), models.TimeFilter(req.Minute)); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to apply filter", err)
		return
	}

	markers := h.layer.Snapshot()
	writeJSON(w, http.StatusOK, MarkersResponse{
		Markers: markers,
		Count:   len(markers),
		Filter:  models.TimeFilter(req.Minute),
	})
}

// PutViewport handles PUT /api/viewport
// Repositions markers for a pan/zoom/resize; traffic data is untouched
func (h *Handler) PutViewport(w http.ResponseWriter, r *http.Request) {
	var vp view.Viewport
	if err := json.NewDecoder(r.Body).Decode(&vp); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid viewport payload", err)
		return
	}
	if vp.Width <= 0 || vp.Height <= 0 {
		writeError(w, http.StatusBadRequest, "Viewport dimensions must be positive", nil)
		return
	}

	if err := h.ctrl.SetViewport(r.Context(), view.NewMercator(vp)); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to apply viewport", err)
		return
	}

	filter, err := h.ctrl.Filter(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Controller unavailable", err)
		return
	}

	markers := h.layer.Snapshot()
	writeJSON(w, http.StatusOK, MarkersResponse{
		Markers: markers,
		Count:   len(markers),
		Filter:  filter,
	})
}

// GetStation handles GET /api/stations/{id}
// Returns one station's base record plus its current traffic counters
func (h *Handler) GetStation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	station, ok := h.stations[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Station not found", nil)
		return
	}

	row, ok, err := h.ctrl.StationTraffic(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Controller unavailable", err)
		return
	}
	if !ok {
		row = models.StationTraffic{StationID: id}
	}

	writeJSON(w, http.StatusOK, StationResponse{
		Station:        station,
		StationTraffic: row,
		Tooltip:        encode.Tooltip(row),
	})
}

// Health handles GET /health with a store connectivity check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "error",
			"database":  "disconnected",
			"timestamp": time.Now().UTC(),
			"error":     err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"database":  "connected",
		"stations":  len(h.stations),
		"timestamp": time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = map[string]interface{}{"internal": err.Error()}
	}
	writeJSON(w, status, resp)
}
