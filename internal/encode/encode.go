// Package encode maps aggregated station traffic to visual attributes:
// circle radius, flow-color bucket and tooltip text.
package encode

import (
	"fmt"
	"math"

	"github.com/BrightonLiu-zZ/bikewatching/internal/models"
)

// Radius output ranges. Filtering leaves fewer, sparser trips on screen, so
// the filtered range starts above zero and reaches higher to keep the
// remaining circles legible.
const (
	unfilteredMinRadius = 0
	unfilteredMaxRadius = 25
	filteredMinRadius   = 3
	filteredMaxRadius   = 50
)

// RadiusScale maps totalTraffic to a circle radius using a square-root
// scale, so circle area stays proportional to traffic. The domain maximum
// must come from the currently displayed station set, not the unfiltered
// one, otherwise circles over-saturate while a filter is active.
type RadiusScale struct {
	domainMax float64
	rangeMin  float64
	rangeMax  float64
}

// NewRadiusScale builds the scale for one render pass. The output range
// depends on whether a time filter is active.
func NewRadiusScale(rows []models.StationTraffic, filter models.TimeFilter) RadiusScale {
	s := RadiusScale{
		rangeMin: unfilteredMinRadius,
		rangeMax: unfilteredMaxRadius,
	}
	if !filter.IsAny() {
		s.rangeMin = filteredMinRadius
		s.rangeMax = filteredMaxRadius
	}
	for _, row := range rows {
		if float64(row.TotalTraffic) > s.domainMax {
			s.domainMax = float64(row.TotalTraffic)
		}
	}
	return s
}

// Radius returns the radius for a traffic count. An all-zero station set
// (empty domain) maps everything to the range minimum.
func (s RadiusScale) Radius(totalTraffic int) float64 {
	if s.domainMax == 0 {
		return s.rangeMin
	}
	frac := math.Sqrt(float64(totalTraffic) / s.domainMax)
	return s.rangeMin + frac*(s.rangeMax-s.rangeMin)
}

// Range returns the scale's output bounds.
func (s RadiusScale) Range() (min, max float64) {
	return s.rangeMin, s.rangeMax
}

// FlowBucket quantizes a station's departure share into one of three
// buckets: 0 (arrival-heavy), 0.5 (balanced), 1 (departure-heavy). A
// station with no traffic is balanced, not arrival- or departure-heavy.
func FlowBucket(row models.StationTraffic) float64 {
	ratio := 0.5
	if row.TotalTraffic > 0 {
		ratio = float64(row.Departures) / float64(row.TotalTraffic)
	}
	switch {
	case ratio < 1.0/3.0:
		return 0
	case ratio < 2.0/3.0:
		return 0.5
	default:
		return 1
	}
}

// Tooltip formats the hover text for a station's current counters.
func Tooltip(row models.StationTraffic) string {
	return fmt.Sprintf("%d trips (%d departures, %d arrivals)",
		row.TotalTraffic, row.Departures, row.Arrivals)
}
