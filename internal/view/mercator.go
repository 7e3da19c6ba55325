package view

import "math"

// Projector maps a geographic position to screen-space pixels for the
// current viewport.
type Projector interface {
	Project(lon, lat float64) (x, y float64)
}

// Viewport describes the visible map area: center, zoom level and pixel
// dimensions. A pan, zoom or resize produces a new Viewport.
type Viewport struct {
	CenterLon float64 `json:"lon"`
	CenterLat float64 `json:"lat"`
	Zoom      float64 `json:"zoom"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
}

// Mercator projects lon/lat to viewport pixels using the Web Mercator
// projection at 256px tiles.
type Mercator struct {
	vp Viewport
}

// NewMercator returns a projector for the given viewport.
func NewMercator(vp Viewport) Mercator {
	return Mercator{vp: vp}
}

// Project returns the pixel position of a coordinate relative to the
// viewport's top-left corner.
func (m Mercator) Project(lon, lat float64) (x, y float64) {
	wx, wy := worldCoords(lon, lat, m.vp.Zoom)
	cx, cy := worldCoords(m.vp.CenterLon, m.vp.CenterLat, m.vp.Zoom)
	return wx - cx + m.vp.Width/2, wy - cy + m.vp.Height/2
}

func worldCoords(lon, lat float64, zoom float64) (x, y float64) {
	worldSize := 256 * math.Pow(2, zoom)
	phi := lat * math.Pi / 180

	x = (lon + 180) / 360 * worldSize
	y = (1 - math.Log(math.Tan(phi)+1/math.Cos(phi))/math.Pi) / 2 * worldSize
	return x, y
}
