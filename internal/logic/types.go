// Package logic contains pure business logic for power state tracking.
// This package has NO I/O dependencies (no GPIO, storage, network, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// PowerState represents the logical state of the mains supply.
type PowerState string

const (
	StateOn  PowerState = "ON"
	StateOff PowerState = "OFF"
)

// StateOf converts a signal reading into a PowerState.
func StateOf(powerOn bool) PowerState {
	if powerOn {
		return StateOn
	}
	return StateOff
}

// On reports whether s is StateOn.
func (s PowerState) On() bool {
	return s == StateOn
}

// TimestampLayout is the layout of the timestamp column of a stored record.
const TimestampLayout = "2006-01-02 15:04:05"

// recordSeparator splits the timestamp column from the state column.
const recordSeparator = ", "

// ErrMalformedRecord is returned when a stored record line cannot be parsed.
var ErrMalformedRecord = errors.New("malformed record")

// Record is a single observed transition. Immutable once written.
type Record struct {
	// Timestamp has second resolution and is kept in local time.
	Timestamp time.Time
	// PowerOn is the state the supply transitioned to.
	PowerOn bool
}

// NewRecord creates a record truncated to second resolution.
func NewRecord(t time.Time, powerOn bool) Record {
	return Record{Timestamp: t.Truncate(time.Second), PowerOn: powerOn}
}

// State returns the record's state as a PowerState.
func (r Record) State() PowerState {
	return StateOf(r.PowerOn)
}

// FormatRecord renders a record as a single storage line without a newline,
// e.g. "2026-01-01 12:00:00, false".
func FormatRecord(r Record) string {
	return r.Timestamp.Format(TimestampLayout) + recordSeparator + fmt.Sprintf("%t", r.PowerOn)
}

// ParseRecord parses a storage line produced by FormatRecord.
// Timestamps are interpreted in loc; a nil loc means time.Local.
func ParseRecord(line string, loc *time.Location) (Record, error) {
	ts, state, ok := strings.Cut(strings.TrimRight(line, "\r\n"), ",")
	if !ok {
		return Record{}, fmt.Errorf("%w: no separator in %q", ErrMalformedRecord, line)
	}

	t, err := parseTimestamp(ts, loc)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	var on bool
	switch strings.TrimSpace(state) {
	case "true":
		on = true
	case "false":
		on = false
	default:
		return Record{}, fmt.Errorf("%w: bad state %q", ErrMalformedRecord, state)
	}

	return Record{Timestamp: t, PowerOn: on}, nil
}

func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(TimestampLayout, strings.TrimSpace(s), loc)
}
