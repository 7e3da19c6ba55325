package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BrightonLiu-zZ/bikewatching/internal/db"
	"github.com/BrightonLiu-zZ/bikewatching/internal/models"
	"github.com/BrightonLiu-zZ/bikewatching/internal/view"
)

type stubStore struct {
	pingErr error
}

func (s *stubStore) Ping(ctx context.Context) error { return s.pingErr }
func (s *stubStore) SaveDatasets(ctx context.Context, stations []models.Station, trips []models.Trip, ss, ts string) (string, error) {
	return "", nil
}
func (s *stubStore) LoadLatest(ctx context.Context) ([]models.Station, []models.Trip, *db.Snapshot, error) {
	return nil, nil, nil, db.ErrNoSnapshot
}
func (s *stubStore) Close() error { return nil }

func testViewport() view.Viewport {
	return view.Viewport{CenterLon: -71.09, CenterLat: 42.36, Zoom: 12, Width: 1200, Height: 800}
}

func newTestServer(t *testing.T, store db.Store) *httptest.Server {
	t.Helper()

	stations := []models.Station{
		{ID: "A", Name: "Alpha", Lon: -71.10, Lat: 42.36},
		{ID: "B", Name: "Beta", Lon: -71.08, Lat: 42.37},
	}
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	trips := []models.Trip{
		{ID: "t1", StartStationID: "A", EndStationID: "B", StartedAt: day.Add(480 * time.Minute), EndedAt: day.Add(490 * time.Minute)},
		{ID: "t2", StartStationID: "B", EndStationID: "A", StartedAt: day.Add(900 * time.Minute), EndedAt: day.Add(910 * time.Minute)},
	}

	layer := NewMarkerLayer()
	ctrl := view.New(stations, trips, view.NewMercator(testViewport()), layer)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go ctrl.Run(ctx)
	if _, err := ctrl.Filter(ctx); err != nil {
		t.Fatalf("controller did not start: %v", err)
	}

	handler := NewHandler(ctrl, layer, store, stations)
	srv := httptest.NewServer(NewRouter(handler, []string{"*"}))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func putJSON(t *testing.T, url string, body interface{}, out interface{}) int {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestGetMarkers(t *testing.T) {
	srv := newTestServer(t, &stubStore{})

	var resp MarkersResponse
	if status := getJSON(t, srv.URL+"/api/markers", &resp); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}

	if resp.Count != 2 || len(resp.Markers) != 2 {
		t.Fatalf("expected 2 markers, got %+v", resp)
	}
	if resp.Filter != models.TimeFilterAny {
		t.Errorf("initial filter = %d, want sentinel", resp.Filter)
	}
	if resp.Markers[0].ID != "A" || resp.Markers[1].ID != "B" {
		t.Errorf("markers not ordered by id: %+v", resp.Markers)
	}
	if resp.Markers[0].Tooltip == "" {
		t.Error("marker tooltip missing")
	}
}

func TestPutFilter_RecomputesMarkers(t *testing.T) {
	srv := newTestServer(t, &stubStore{})

	var before MarkersResponse
	getJSON(t, srv.URL+"/api/markers", &before)

	var after MarkersResponse
	if status := putJSON(t, srv.URL+"/api/filter", FilterRequest{Minute: 480}, &after); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}

	if after.Filter != 480 {
		t.Errorf("filter = %d, want 480", after.Filter)
	}
	// Filtered encoding uses the [3,50] range, so radii change even though
	// the marker set (and its identity) stays the same.
	if len(after.Markers) != len(before.Markers) {
		t.Fatalf("marker set size changed: %d vs %d", len(after.Markers), len(before.Markers))
	}
	for i := range after.Markers {
		if after.Markers[i].ID != before.Markers[i].ID {
			t.Errorf("marker identity changed at %d", i)
		}
		if after.Markers[i].Radius < 3 || after.Markers[i].Radius > 50 {
			t.Errorf("filtered radius %v outside [3,50]", after.Markers[i].Radius)
		}
	}
}

func TestPutFilter_BadPayload(t *testing.T) {
	srv := newTestServer(t, &stubStore{})

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/filter", bytes.NewReader([]byte("{not json")))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestPutViewport_RepositionsMarkers(t *testing.T) {
	srv := newTestServer(t, &stubStore{})

	var before MarkersResponse
	getJSON(t, srv.URL+"/api/markers", &before)

	vp := testViewport()
	vp.CenterLon += 0.05
	var after MarkersResponse
	if status := putJSON(t, srv.URL+"/api/viewport", vp, &after); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}

	for i := range after.Markers {
		if after.Markers[i].X == before.Markers[i].X {
			t.Errorf("marker %s did not move after panning east", after.Markers[i].ID)
		}
		if after.Markers[i].Radius != before.Markers[i].Radius {
			t.Errorf("viewport change altered radius of %s", after.Markers[i].ID)
		}
	}
}

func TestPutViewport_RejectsEmptyDimensions(t *testing.T) {
	srv := newTestServer(t, &stubStore{})

	vp := testViewport()
	vp.Width = 0
	if status := putJSON(t, srv.URL+"/api/viewport", vp, nil); status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestGetStation(t *testing.T) {
	srv := newTestServer(t, &stubStore{})

	var resp StationResponse
	if status := getJSON(t, srv.URL+"/api/stations/A", &resp); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if resp.Name != "Alpha" {
		t.Errorf("station name = %q", resp.Name)
	}
	if resp.TotalTraffic != 2 || resp.Departures != 1 || resp.Arrivals != 1 {
		t.Errorf("unexpected traffic %+v", resp.StationTraffic)
	}
	if resp.Tooltip != "2 trips (1 departures, 1 arrivals)" {
		t.Errorf("tooltip = %q", resp.Tooltip)
	}

	if status := getJSON(t, srv.URL+"/api/stations/ghost", nil); status != http.StatusNotFound {
		t.Errorf("unknown station status = %d, want 404", status)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubStore{})
	if status := getJSON(t, srv.URL+"/health", nil); status != http.StatusOK {
		t.Errorf("healthy status = %d", status)
	}

	broken := newTestServer(t, &stubStore{pingErr: errors.New("down")})
	if status := getJSON(t, broken.URL+"/health", nil); status != http.StatusServiceUnavailable {
		t.Errorf("unhealthy status = %d, want 503", status)
	}
}
