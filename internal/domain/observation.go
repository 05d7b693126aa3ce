package domain

import (
	"sort"
	"time"
)

// DateLayout is the canonical text form of a date_id.
const DateLayout = "2006-01-02"

// ObservationRecord is one (series, date) measurement flowing through the pipeline.
type ObservationRecord struct {
	SeriesID    string
	DateID      time.Time
	Value       float64
	ReleaseDate *time.Time
}

// DateDimensionRow is derived from the dates present in a batch of observations.
type DateDimensionRow struct {
	DateID  time.Time
	Year    int
	Quarter int
	Month   int
}

// FactObservationRow is the persisted form of an ObservationRecord.
type FactObservationRow struct {
	ObservationRecord
	FetchedAt time.Time
}

// RawPayload is the upstream response body together with where it came from.
type RawPayload struct {
	Body     string
	Endpoint string
	Attempt  int
}

// NewDate truncates to a calendar date in UTC.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf drops the clock part of t, keeping its calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// QuarterOf maps a month to its calendar quarter (1-4).
func QuarterOf(m time.Month) int {
	return (int(m)-1)/3 + 1
}

// DimensionFor builds the date dimension row for a single date.
func DimensionFor(date time.Time) DateDimensionRow {
	date = DateOf(date)
	return DateDimensionRow{
		DateID:  date,
		Year:    date.Year(),
		Quarter: QuarterOf(date.Month()),
		Month:   int(date.Month()),
	}
}

// DateDimensions returns one row per distinct date in records, ascending.
func DateDimensions(records []ObservationRecord) []DateDimensionRow {
	seen := make(map[time.Time]struct{}, len(records))
	rows := make([]DateDimensionRow, 0, len(records))
	for _, rec := range records {
		date := DateOf(rec.DateID)
		if _, ok := seen[date]; ok {
			continue
		}
		seen[date] = struct{}{}
		rows = append(rows, DimensionFor(date))
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].DateID.Before(rows[j].DateID)
	})
	return rows
}
