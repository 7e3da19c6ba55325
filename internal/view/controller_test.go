package view

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BrightonLiu-zZ/bikewatching/internal/models"
)

// recordingRenderer captures every Apply pass for inspection.
type recordingRenderer struct {
	mu     sync.Mutex
	passes [][]Op
}

func (r *recordingRenderer) Apply(ops []Op) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := make([]Op, len(ops))
	copy(copied, ops)
	r.passes = append(r.passes, copied)
}

func (r *recordingRenderer) lastPass(t *testing.T) []Op {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.passes) == 0 {
		t.Fatal("renderer received no passes")
	}
	return r.passes[len(r.passes)-1]
}

func (r *recordingRenderer) passCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.passes)
}

// offsetProjector is a trivial projection stub: screen = lon+dx, lat+dy.
type offsetProjector struct {
	dx, dy float64
}

func (p offsetProjector) Project(lon, lat float64) (float64, float64) {
	return lon + p.dx, lat + p.dy
}

func testStations() []models.Station {
	return []models.Station{
		{ID: "A", Name: "Alpha", Lon: 1, Lat: 2},
		{ID: "B", Name: "Beta", Lon: 3, Lat: 4},
	}
}

func testTrips() []models.Trip {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	at := func(m int) time.Time { return day.Add(time.Duration(m) * time.Minute) }
	return []models.Trip{
		{ID: "t1", StartStationID: "A", EndStationID: "B", StartedAt: at(480), EndedAt: at(490)},
		{ID: "t2", StartStationID: "A", EndStationID: "B", StartedAt: at(485), EndedAt: at(495)},
		{ID: "t3", StartStationID: "B", EndStationID: "A", StartedAt: at(900), EndedAt: at(910)},
	}
}

func startController(t *testing.T, r Renderer, p Projector) (*Controller, context.Context) {
	t.Helper()
	ctrl := New(testStations(), testTrips(), p, r)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go ctrl.Run(ctx)
	// Round-trip through the event loop so the initial render is done.
	if _, err := ctrl.Filter(ctx); err != nil {
		t.Fatalf("controller did not start: %v", err)
	}
	return ctrl, ctx
}

func TestController_InitialRenderAddsAllStations(t *testing.T) {
	renderer := &recordingRenderer{}
	startController(t, renderer, offsetProjector{})

	ops := renderer.lastPass(t)
	if len(ops) != 2 {
		t.Fatalf("expected 2 ops, got %d", len(ops))
	}
	for _, op := range ops {
		if op.Kind != OpAdd {
			t.Errorf("initial render should add, got %s for %s", op.Kind, op.Marker.ID)
		}
	}
}

func TestController_FilterChangePreservesMarkerIdentity(t *testing.T) {
	renderer := &recordingRenderer{}
	ctrl, ctx := startController(t, renderer, offsetProjector{})

	if err := ctrl.SetFilter(ctx, 480); err != nil {
		t.Fatalf("SetFilter: %v", err)
	}

	ops := renderer.lastPass(t)
	if len(ops) != 2 {
		t.Fatalf("expected 2 ops, got %d", len(ops))
	}
	for _, op := range ops {
		// Stations are long-lived: a filter change rebinds attributes on
		// existing markers instead of recreating them.
		if op.Kind != OpUpdate {
			t.Errorf("filter change should update in place, got %s for %s", op.Kind, op.Marker.ID)
		}
	}
}

func TestController_FilterChangeRecomputesTrafficNotPositions(t *testing.T) {
	renderer := &recordingRenderer{}
	ctrl, ctx := startController(t, renderer, offsetProjector{dx: 10, dy: 20})

	before := renderer.lastPass(t)
	if err := ctrl.SetFilter(ctx, 900); err != nil {
		t.Fatalf("SetFilter: %v", err)
	}
	after := renderer.lastPass(t)

	for i := range after {
		if after[i].Marker.X != before[i].Marker.X || after[i].Marker.Y != before[i].Marker.Y {
			t.Errorf("filter change moved marker %s", after[i].Marker.ID)
		}
	}

	// Only t3 (B→A at 900-910) is in the window, so A has 1 arrival and B
	// has 1 departure under the filtered encoding.
	byID := make(map[string]models.Marker)
	for _, op := range after {
		byID[op.Marker.ID] = op.Marker
	}
	if byID["A"].FlowBucket != 0 {
		t.Errorf("A should be arrival-heavy under t=900, bucket %v", byID["A"].FlowBucket)
	}
	if byID["B"].FlowBucket != 1 {
		t.Errorf("B should be departure-heavy under t=900, bucket %v", byID["B"].FlowBucket)
	}
	if byID["A"].Tooltip != "1 trips (0 departures, 1 arrivals)" {
		t.Errorf("unexpected tooltip %q", byID["A"].Tooltip)
	}
}

func TestController_RadiusRangeSwitchesOnFilterChange(t *testing.T) {
	renderer := &recordingRenderer{}
	ctrl, ctx := startController(t, renderer, offsetProjector{})

	// Unfiltered: A has all 3 trips' departures+arrivals against B, both
	// see 3 trips; equal max traffic puts both at the range max of 25.
	for _, op := range renderer.lastPass(t) {
		if op.Marker.Radius > 25 {
			t.Errorf("unfiltered radius %v exceeds 25", op.Marker.Radius)
		}
	}

	if err := ctrl.SetFilter(ctx, 480); err != nil {
		t.Fatalf("SetFilter: %v", err)
	}
	for _, op := range renderer.lastPass(t) {
		if op.Marker.Radius < 3 || op.Marker.Radius > 50 {
			t.Errorf("filtered radius %v outside [3,50]", op.Marker.Radius)
		}
	}

	// Back to the sentinel restores the unfiltered range.
	if err := ctrl.SetFilter(ctx, models.TimeFilterAny); err != nil {
		t.Fatalf("SetFilter: %v", err)
	}
	for _, op := range renderer.lastPass(t) {
		if op.Marker.Radius > 25 {
			t.Errorf("radius %v exceeds 25 after clearing the filter", op.Marker.Radius)
		}
	}
}

func TestController_ViewportChangeRepositionsOnly(t *testing.T) {
	renderer := &recordingRenderer{}
	ctrl, ctx := startController(t, renderer, offsetProjector{})

	before := renderer.lastPass(t)
	passes := renderer.passCount()

	if err := ctrl.SetViewport(ctx, offsetProjector{dx: 100, dy: 50}); err != nil {
		t.Fatalf("SetViewport: %v", err)
	}

	if renderer.passCount() != passes+1 {
		t.Fatalf("viewport change should produce exactly one render pass")
	}
	after := renderer.lastPass(t)

	for i := range after {
		if after[i].Kind != OpUpdate {
			t.Errorf("viewport change should update in place, got %s", after[i].Kind)
		}
		// Positions move by the projector delta; every traffic-derived
		// attribute stays byte-identical.
		if after[i].Marker.X != before[i].Marker.X+100 || after[i].Marker.Y != before[i].Marker.Y+50 {
			t.Errorf("marker %s not repositioned: %+v", after[i].Marker.ID, after[i].Marker)
		}
		if after[i].Marker.Radius != before[i].Marker.Radius ||
			after[i].Marker.FlowBucket != before[i].Marker.FlowBucket ||
			after[i].Marker.Tooltip != before[i].Marker.Tooltip {
			t.Errorf("viewport change touched traffic attributes of %s", after[i].Marker.ID)
		}
	}
}

func TestController_StationTraffic(t *testing.T) {
	renderer := &recordingRenderer{}
	ctrl, ctx := startController(t, renderer, offsetProjector{})

	row, ok, err := ctrl.StationTraffic(ctx, "A")
	if err != nil || !ok {
		t.Fatalf("StationTraffic(A): ok=%v err=%v", ok, err)
	}
	if row.TotalTraffic != 3 || row.Departures != 2 || row.Arrivals != 1 {
		t.Errorf("A traffic = %+v, want 2 departures, 1 arrival", row)
	}

	if _, ok, _ := ctrl.StationTraffic(ctx, "ghost"); ok {
		t.Error("unknown station should report ok=false")
	}
}

func TestController_LastFilterWins(t *testing.T) {
	renderer := &recordingRenderer{}
	ctrl, ctx := startController(t, renderer, offsetProjector{})

	// Rapid slider input: each event runs to completion in order, so the
	// final state reflects the last value.
	for _, minute := range []models.TimeFilter{100, 300, 500, 900} {
		if err := ctrl.SetFilter(ctx, minute); err != nil {
			t.Fatalf("SetFilter(%d): %v", minute, err)
		}
	}

	got, err := ctrl.Filter(ctx)
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if got != 900 {
		t.Errorf("current filter = %d, want 900", got)
	}
}
