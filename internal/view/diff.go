package view

import "github.com/BrightonLiu-zZ/bikewatching/internal/models"

// OpKind classifies a marker operation.
type OpKind string

const (
	OpAdd    OpKind = "add"
	OpUpdate OpKind = "update"
	OpRemove OpKind = "remove"
)

// Op is one instruction for the marker layer. Add and Update carry the full
// marker; Remove carries only the id.
type Op struct {
	Kind   OpKind
	Marker models.Marker
}

// Renderer is the marker layer collaborator. It receives keyed operations
// and owns element creation, in-place attribute updates and removal. Ops
// within one Apply call belong to a single recompute pass.
type Renderer interface {
	Apply(ops []Op)
}

// diffMarkers joins the new marker set against the previously rendered one
// by station id: existing keys become updates so the renderer mutates
// elements in place (preserving attached handlers), new keys become adds,
// vanished keys become removes. Order follows the input set, removes last.
func diffMarkers(prev map[string]models.Marker, next []models.Marker) []Op {
	ops := make([]Op, 0, len(next))
	seen := make(map[string]bool, len(next))
	for _, m := range next {
		seen[m.ID] = true
		kind := OpAdd
		if _, ok := prev[m.ID]; ok {
			kind = OpUpdate
		}
		ops = append(ops, Op{Kind: kind, Marker: m})
	}
	for id := range prev {
		if !seen[id] {
			ops = append(ops, Op{Kind: OpRemove, Marker: models.Marker{ID: id}})
		}
	}
	return ops
}
