package models

import "time"

// Trip is a single ride from the trip history table. Records are read-only
// after load; the full collection is retained so time filters can be
// reapplied against it for the lifetime of the process.
type Trip struct {
	ID             string    `db:"ride_id" json:"id"`
	StartStationID string    `db:"start_station_id" json:"startStationId"`
	EndStationID   string    `db:"end_station_id" json:"endStationId"`
	StartedAt      time.Time `db:"started_at" json:"startedAt"`
	EndedAt        time.Time `db:"ended_at" json:"endedAt"`
}

// MinutesInDay is the number of minutes in a day; valid minute-of-day
// values are [0, MinutesInDay-1].
const MinutesInDay = 24 * 60

// MinuteOfDay reduces a timestamp to hour*60 + minute, discarding the date
// and seconds.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// TimeFilter selects trips near a minute of day. Negative values are the
// "any time" sentinel the slider reports for its parked position.
type TimeFilter int

// TimeFilterAny is the designated "no time filter" sentinel.
const TimeFilterAny TimeFilter = -1

// IsAny reports whether the filter is the any-time sentinel. Values at or
// above MinutesInDay are not the sentinel and are deliberately not
// rejected: they are normal values that match no trip's window and render
// as all-zero traffic.
func (f TimeFilter) IsAny() bool {
	return f < 0
}
