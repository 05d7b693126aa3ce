package normalize

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"EconomicPulse/internal/domain"
)

// ParseStats summarises what happened to the rows of one table.
type ParseStats struct {
	Rows          int
	Kept          int
	Malformed     int
	MissingSeries int
	BadDate       int
	BadValue      int
	LenientDates  bool
}

// Dropped is the number of data rows excluded from the output.
func (s ParseStats) Dropped() int {
	return s.Rows - s.Kept
}

type rawRow struct {
	series string
	date   string
	value  string
}

// Parse converts an extracted table into observation records. Rows with a
// missing series, date, or value are dropped rather than failing the batch.
// An empty result is valid; a table narrower than three columns is a
// *domain.ShapeError and a date column with no parseable entry at all is
// domain.ErrUnparseableDates.
func Parse(table string) ([]domain.ObservationRecord, ParseStats, error) {
	var stats ParseStats

	rows, err := readRows(table, &stats)
	if err != nil {
		return nil, stats, err
	}
	stats.Rows = len(rows) + stats.Malformed

	dates, lenient := parseDates(rows)
	stats.LenientDates = lenient

	var parsedDates int
	for _, d := range dates {
		if !d.IsZero() {
			parsedDates++
		}
	}
	if len(rows) > 0 && parsedDates == 0 {
		return nil, stats, fmt.Errorf("%w (sample %q)", domain.ErrUnparseableDates, rows[0].date)
	}

	records := make([]domain.ObservationRecord, 0, len(rows))
	for i, row := range rows {
		series := strings.TrimSpace(row.series)
		if series == "" {
			stats.MissingSeries++
			continue
		}
		if dates[i].IsZero() {
			stats.BadDate++
			continue
		}
		value, ok := parseValue(row.value)
		if !ok {
			stats.BadValue++
			continue
		}

		records = append(records, domain.ObservationRecord{
			SeriesID: series,
			DateID:   dates[i],
			Value:    value,
		})
	}
	stats.Kept = len(records)

	return records, stats, nil
}

func readRows(table string, stats *ParseStats) ([]rawRow, error) {
	reader := csv.NewReader(strings.NewReader(table))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var (
		rows    []rawRow
		layout  columnLayout
		started bool
	)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				stats.Malformed++
				continue
			}
			return nil, fmt.Errorf("read table: %w", err)
		}

		if !started {
			started = true
			if len(record) < 3 {
				return nil, &domain.ShapeError{Columns: len(record), Header: record}
			}
			var isHeader bool
			layout, isHeader = detectLayout(record)
			if isHeader {
				continue
			}
		}

		if len(record) < layout.width() {
			stats.Malformed++
			continue
		}

		rows = append(rows, rawRow{
			series: record[layout.series],
			date:   record[layout.date],
			value:  record[layout.value],
		})
	}

	if !started {
		return nil, &domain.ShapeError{Columns: 0}
	}

	return rows, nil
}

// parseDates applies the strict layout to the whole column and falls back to
// the lenient parser only if the strict pass matched nothing.
func parseDates(rows []rawRow) ([]time.Time, bool) {
	dates := make([]time.Time, len(rows))

	matched := 0
	for i, row := range rows {
		if d, ok := parseStrictDate(row.date); ok {
			dates[i] = d
			matched++
		}
	}
	if matched > 0 || len(rows) == 0 {
		return dates, false
	}

	for i, row := range rows {
		if d, ok := parseLenientDate(row.date); ok {
			dates[i] = d
		}
	}
	return dates, true
}
