// Package view holds the reactive update controller: it owns the current
// time filter, recomputes traffic and visual encoding when the filter
// changes, and repositions markers when the viewport changes. The two
// triggers are independent: viewport changes never touch traffic data, and
// filter changes never reposition.
package view

import (
	"context"
	"log"

	"github.com/BrightonLiu-zZ/bikewatching/internal/encode"
	"github.com/BrightonLiu-zZ/bikewatching/internal/models"
	"github.com/BrightonLiu-zZ/bikewatching/internal/traffic"
)

// Controller orchestrates recomputation over the loaded datasets. Both
// collections are read-only after construction; every pass produces fresh
// derived values rather than patching shared station records.
//
// All mutations run on a single event loop goroutine (Run). SetFilter and
// SetViewport block until their recompute completes, so rapid slider input
// is serialized and the last received value wins.
type Controller struct {
	stations []models.Station
	trips    []models.Trip
	renderer Renderer

	// event-loop state, touched only by Run
	filter  models.TimeFilter
	proj    Projector
	stats   map[string]models.StationTraffic
	markers map[string]models.Marker

	events chan event
}

type event struct {
	apply func()
	done  chan struct{}
}

// New creates a controller over fully loaded datasets. The initial filter
// is the any-time sentinel and the initial projector positions the first
// render; rendering must not start before both datasets are ready, which
// the caller guarantees by constructing the controller only after load.
func New(stations []models.Station, trips []models.Trip, proj Projector, r Renderer) *Controller {
	return &Controller{
		stations: stations,
		trips:    trips,
		renderer: r,
		filter:   models.TimeFilterAny,
		proj:     proj,
		markers:  make(map[string]models.Marker),
		events:   make(chan event),
	}
}

// Run performs the initial render and then processes filter and viewport
// events one at a time until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	c.recompute()
	log.Printf("Controller started: %d stations, %d trips", len(c.stations), len(c.trips))

	for {
		select {
		case ev := <-c.events:
			ev.apply()
			close(ev.done)
		case <-ctx.Done():
			log.Println("Controller stopped")
			return
		}
	}
}

// SetFilter changes the time filter and runs the full filter, aggregate
// and encode pass. Blocks until the pass completes or ctx is cancelled.
func (c *Controller) SetFilter(ctx context.Context, t models.TimeFilter) error {
	return c.send(ctx, func() {
		c.filter = t
		c.recompute()
	})
}

// SetViewport repositions existing markers for a new viewport. Traffic and
// visual encoding are untouched; only the projection changes.
func (c *Controller) SetViewport(ctx context.Context, p Projector) error {
	return c.send(ctx, func() {
		c.proj = p
		c.reposition()
	})
}

// Filter returns the controller's current time filter.
func (c *Controller) Filter(ctx context.Context) (models.TimeFilter, error) {
	var t models.TimeFilter
	err := c.send(ctx, func() { t = c.filter })
	return t, err
}

func (c *Controller) send(ctx context.Context, apply func()) error {
	ev := event{apply: apply, done: make(chan struct{})}
	select {
	case c.events <- ev:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ev.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// recompute runs the whole pipeline for the current filter and hands the
// keyed diff to the renderer. Marker identity is the station id, so the
// renderer updates surviving elements in place instead of recreating them.
func (c *Controller) recompute() {
	filtered := traffic.FilterByTime(c.trips, c.filter)
	rows := traffic.Aggregate(c.stations, filtered)
	scale := encode.NewRadiusScale(rows, c.filter)

	byID := make(map[string]models.StationTraffic, len(rows))
	next := make([]models.Marker, len(rows))
	for i, row := range rows {
		byID[row.StationID] = row
		st := c.stations[i]
		x, y := c.proj.Project(st.Lon, st.Lat)
		next[i] = models.Marker{
			ID:         st.ID,
			X:          x,
			Y:          y,
			Radius:     scale.Radius(row.TotalTraffic),
			FlowBucket: encode.FlowBucket(row),
			Tooltip:    encode.Tooltip(row),
		}
	}

	ops := diffMarkers(c.markers, next)
	c.stats = byID
	c.markers = keyed(next)
	c.renderer.Apply(ops)
}

// reposition re-projects the already-rendered markers, keeping every
// traffic-derived attribute as is.
func (c *Controller) reposition() {
	next := make([]models.Marker, 0, len(c.markers))
	for _, st := range c.stations {
		m, ok := c.markers[st.ID]
		if !ok {
			continue
		}
		m.X, m.Y = c.proj.Project(st.Lon, st.Lat)
		next = append(next, m)
	}

	ops := diffMarkers(c.markers, next)
	c.markers = keyed(next)
	c.renderer.Apply(ops)
}

// StationTraffic returns the current derived counters for one station, for
// tooltip and detail lookups. The bool reports whether the station exists.
func (c *Controller) StationTraffic(ctx context.Context, id string) (models.StationTraffic, bool, error) {
	var (
		row models.StationTraffic
		ok  bool
	)
	err := c.send(ctx, func() { row, ok = c.stats[id] })
	return row, ok, err
}

func keyed(markers []models.Marker) map[string]models.Marker {
	out := make(map[string]models.Marker, len(markers))
	for _, m := range markers {
		out[m.ID] = m
	}
	return out
}
