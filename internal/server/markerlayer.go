package server

import (
	"sort"
	"sync"

	"github.com/BrightonLiu-zZ/bikewatching/internal/models"
	"github.com/BrightonLiu-zZ/bikewatching/internal/view"
)

// MarkerLayer is the rendering collaborator on the server side: it retains
// the current keyed marker set produced by the controller and serves
// snapshots to the map frontend. Add and update both bind the full marker
// by id, so element identity survives attribute changes.
type MarkerLayer struct {
	mu      sync.RWMutex
	markers map[string]models.Marker
}

// NewMarkerLayer returns an empty layer.
func NewMarkerLayer() *MarkerLayer {
	return &MarkerLayer{markers: make(map[string]models.Marker)}
}

// Apply consumes one recompute pass worth of keyed operations.
func (l *MarkerLayer) Apply(ops []view.Op) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, op := range ops {
		switch op.Kind {
		case view.OpAdd, view.OpUpdate:
			l.markers[op.Marker.ID] = op.Marker
		case view.OpRemove:
			delete(l.markers, op.Marker.ID)
		}
	}
}

// Snapshot returns a copy of the current marker set, ordered by id.
func (l *MarkerLayer) Snapshot() []models.Marker {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Marker, 0, len(l.markers))
	for _, m := range l.markers {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
