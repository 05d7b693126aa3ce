package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnparseableDates marks a table whose date column yielded no date at all.
	ErrUnparseableDates = errors.New("no parseable dates in payload")
	// ErrNoData is returned by the freshness check when a series has no rows.
	ErrNoData = errors.New("no data loaded")
	// ErrStaleData is returned by the freshness check when the latest date is too old.
	ErrStaleData = errors.New("data too old")
)

// FetchFailure reports that every endpoint and retry was exhausted.
type FetchFailure struct {
	Endpoints []string
	Attempts  int
	LastErr   error
	Preview   string
}

func (e *FetchFailure) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("fetch failed after %d attempts across %d endpoints", e.Attempts, len(e.Endpoints))
	if e.LastErr != nil {
		msg += ": " + e.LastErr.Error()
	}
	if e.Preview != "" {
		msg += fmt.Sprintf(" (response preview: %q)", e.Preview)
	}
	return msg
}

func (e *FetchFailure) Unwrap() error { return e.LastErr }

// ShapeError means the payload parsed as delimited text but has too few columns.
type ShapeError struct {
	Columns int
	Header  []string
}

func (e *ShapeError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("unexpected table shape: %d columns, need at least 3 (first row: %s)",
		e.Columns, strings.Join(e.Header, ","))
}

// SchemaError rejects a batch handed to the sink before any write happens.
type SchemaError struct {
	Index  int
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("observation %d: field %s %s", e.Index, e.Field, e.Reason)
}

// FreshnessError wraps ErrNoData or ErrStaleData with the checked series.
type FreshnessError struct {
	Kind     error
	SeriesID string
	Msg      string
}

func (e *FreshnessError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return fmt.Sprintf("validation failed for %s: %s", e.SeriesID, e.Kind)
	}
	return fmt.Sprintf("validation failed for %s: %s (%s)", e.SeriesID, e.Kind, e.Msg)
}

func (e *FreshnessError) Unwrap() error { return e.Kind }
