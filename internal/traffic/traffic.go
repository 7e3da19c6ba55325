// Package traffic reduces the trip history into per-station counters and
// selects the trips relevant to a point-in-time query. Everything here is a
// pure function over its arguments: no package state, no input mutation.
package traffic

import "github.com/BrightonLiu-zZ/bikewatching/internal/models"

// Aggregate computes arrival/departure/total counters for every station,
// from scratch, in input order. Trips referencing station ids outside the
// input set still land in the frequency maps but have no station to attach
// to; that is expected source-data noise, not an error.
func Aggregate(stations []models.Station, trips []models.Trip) []models.StationTraffic {
	departures := make(map[string]int, len(stations))
	arrivals := make(map[string]int, len(stations))
	for _, trip := range trips {
		departures[trip.StartStationID]++
		arrivals[trip.EndStationID]++
	}

	out := make([]models.StationTraffic, len(stations))
	for i, st := range stations {
		dep := departures[st.ID]
		arr := arrivals[st.ID]
		out[i] = models.StationTraffic{
			StationID:    st.ID,
			Arrivals:     arr,
			Departures:   dep,
			TotalTraffic: arr + dep,
		}
	}
	return out
}

// windowMinutes is the half-width of the time filter window, inclusive.
const windowMinutes = 60

// FilterByTime returns the trips whose start or end minute-of-day lies
// within 60 minutes of t. The any-time sentinel returns the input slice
// unchanged.
//
// Distance is linear, not circular: the window does not wrap across
// midnight, so t=10 will not match a trip at minute 1430 even though they
// are 40 minutes apart on the clock. That asymmetry near the edges of the
// day is the documented behavior.
func FilterByTime(trips []models.Trip, t models.TimeFilter) []models.Trip {
	if t.IsAny() {
		return trips
	}

	out := make([]models.Trip, 0, len(trips))
	for _, trip := range trips {
		if withinWindow(models.MinuteOfDay(trip.StartedAt), int(t)) ||
			withinWindow(models.MinuteOfDay(trip.EndedAt), int(t)) {
			out = append(out, trip)
		}
	}
	return out
}

func withinWindow(minute, t int) bool {
	d := minute - t
	if d < 0 {
		d = -d
	}
	return d <= windowMinutes
}
