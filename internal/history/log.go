package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/power-monitor/internal/logic"
)

// DefaultCapacity is the number of transitions kept.
const DefaultCapacity = 5

// Log is a fixed-capacity, insertion-ordered transition log. Every mutation
// reads the whole log, changes it in memory and writes it back in one
// WriteAll, so no partial record is ever observable.
type Log struct {
	storage  Storage
	path     string
	capacity int
	loc      *time.Location
	log      zerolog.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithLocation sets the zone stored timestamps are interpreted in.
// The default is time.Local.
func WithLocation(loc *time.Location) Option {
	return func(l *Log) { l.loc = loc }
}

// WithLogger sets the logger used to report malformed rows.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Log) { l.log = logger }
}

// New creates a Log stored at path with the given capacity.
func New(storage Storage, path string, capacity int, opts ...Option) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l := &Log{
		storage:  storage,
		path:     path,
		capacity: capacity,
		loc:      time.Local,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Capacity returns the maximum number of records kept.
func (l *Log) Capacity() int {
	return l.capacity
}

// Path returns the storage path of the log.
func (l *Log) Path() string {
	return l.path
}

// LoadAll reconstructs the log from storage. Parsing stops at the first
// malformed row; everything from that row on is discarded. If more than
// Capacity valid rows remain, only the newest Capacity are returned.
func (l *Log) LoadAll() ([]logic.Record, error) {
	lines, err := l.storage.ReadAll(l.path)
	if err != nil {
		return nil, fmt.Errorf("read log %s: %w", l.path, err)
	}

	records := make([]logic.Record, 0, len(lines))
	for i, line := range lines {
		rec, err := logic.ParseRecord(line, l.loc)
		if err != nil {
			l.log.Warn().Err(err).Int("row", i).Int("discarded", len(lines)-i).
				Msg("malformed log row, truncating")
			break
		}
		records = append(records, rec)
	}

	if len(records) > l.capacity {
		l.log.Warn().Int("rows", len(records)).Int("capacity", l.capacity).
			Msg("oversized log, keeping newest rows")
		records = records[len(records)-l.capacity:]
	}
	return records, nil
}

// Last returns the most recently appended record. ok is false when the log
// is empty.
func (l *Log) Last() (rec logic.Record, ok bool, err error) {
	records, err := l.LoadAll()
	if err != nil || len(records) == 0 {
		return logic.Record{}, false, err
	}
	return records[len(records)-1], true, nil
}

// Tail is the end of the stored log as written, before any parsing.
type Tail struct {
	// Last is the last non-blank stored line, or "" for an empty log.
	Last string
	// Prev is the line before Last, or "".
	Prev string
	// Record is Last parsed. It is only meaningful when Clean is set.
	Record logic.Record
	// Clean reports that every stored row parsed, so Record is the record
	// that ReplaceLast would overwrite.
	Clean bool
}

// Tail returns the raw end of the log. Unlike LoadAll it keeps a malformed
// tail row so callers can report it.
func (l *Log) Tail() (Tail, error) {
	lines, err := l.storage.ReadAll(l.path)
	if err != nil {
		return Tail{}, fmt.Errorf("read log %s: %w", l.path, err)
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	var t Tail
	n := len(lines)
	if n == 0 {
		return t, nil
	}
	t.Last = lines[n-1]
	if n >= 2 {
		t.Prev = lines[n-2]
	}

	t.Clean = true
	for i, line := range lines {
		rec, err := logic.ParseRecord(line, l.loc)
		if err != nil {
			t.Clean = false
			break
		}
		if i == n-1 {
			t.Record = rec
		}
	}
	return t, nil
}

// Append adds rec at the tail, evicting the oldest record when the log is
// full, and persists the result.
func (l *Log) Append(rec logic.Record) error {
	records, err := l.LoadAll()
	if err != nil {
		return err
	}
	return l.write(appendBounded(records, rec, l.capacity))
}

// ReplaceLast overwrites the tail record, or appends when the log is empty.
func (l *Log) ReplaceLast(rec logic.Record) error {
	records, err := l.LoadAll()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return l.write([]logic.Record{rec})
	}
	records[len(records)-1] = rec
	return l.write(records)
}

func (l *Log) write(records []logic.Record) error {
	lines := make([]string, len(records))
	for i, r := range records {
		lines[i] = logic.FormatRecord(r)
	}
	if err := l.storage.WriteAll(l.path, lines); err != nil {
		return fmt.Errorf("write log %s: %w", l.path, err)
	}
	return nil
}

// appendBounded appends rec to records, dropping records[0] first when the
// slice is already at capacity.
func appendBounded(records []logic.Record, rec logic.Record, capacity int) []logic.Record {
	if len(records) >= capacity {
		copy(records, records[len(records)-capacity+1:])
		records = records[:capacity-1]
	}
	return append(records, rec)
}
