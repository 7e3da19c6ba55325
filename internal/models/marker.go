package models

// Marker is one renderable station circle: screen position from the
// projector plus the visual attributes from the encoder. Markers are keyed
// by station id so the renderer can update elements in place.
type Marker struct {
	ID         string  `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Radius     float64 `json:"radius"`
	FlowBucket float64 `json:"flowBucket"`
	Tooltip    string  `json:"tooltip"`
}
