package logic

import (
	"strconv"
	"strings"
	"time"
)

// Rendered markers for durations that cannot be computed.
const (
	MarkerUnknown          = "unknown (first observation)"
	MarkerInvalidTimestamp = "invalid timestamp"
)

// ElapsedKind classifies an Elapsed result.
type ElapsedKind int

const (
	// ElapsedUnknown means there is no prior transition to diff against.
	ElapsedUnknown ElapsedKind = iota
	// ElapsedInvalid means the prior transition's timestamp is unusable.
	ElapsedInvalid
	// ElapsedKnown means Breakdown holds the elapsed time.
	ElapsedKnown
)

// Breakdown is a decomposition of a non-negative number of seconds.
type Breakdown struct {
	Days    int64
	Hours   int64
	Minutes int64
	Seconds int64
}

// NewBreakdown decomposes d into days, hours, minutes and seconds.
// Sub-second precision is dropped and negative durations become zero.
func NewBreakdown(d time.Duration) Breakdown {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	return Breakdown{
		Days:    secs / 86400,
		Hours:   secs % 86400 / 3600,
		Minutes: secs % 3600 / 60,
		Seconds: secs % 60,
	}
}

// TotalSeconds returns the number of seconds the breakdown represents.
func (b Breakdown) TotalSeconds() int64 {
	return b.Days*86400 + b.Hours*3600 + b.Minutes*60 + b.Seconds
}

// String renders the non-zero units largest first, e.g. "1 d, 1 hr, 1 min, 1 sec".
// A zero breakdown renders as "0 sec".
func (b Breakdown) String() string {
	units := []struct {
		v    int64
		name string
	}{
		{b.Days, "d"},
		{b.Hours, "hr"},
		{b.Minutes, "min"},
		{b.Seconds, "sec"},
	}

	parts := make([]string, 0, len(units))
	for _, u := range units {
		if u.v > 0 {
			parts = append(parts, strconv.FormatInt(u.v, 10)+" "+u.name)
		}
	}
	if len(parts) == 0 {
		return "0 sec"
	}
	return strings.Join(parts, ", ")
}

// Elapsed is the time since the last recorded transition.
type Elapsed struct {
	Kind      ElapsedKind
	Breakdown Breakdown
}

// String renders the elapsed time or the matching marker.
func (e Elapsed) String() string {
	switch e.Kind {
	case ElapsedKnown:
		return e.Breakdown.String()
	case ElapsedInvalid:
		return MarkerInvalidTimestamp
	default:
		return MarkerUnknown
	}
}

// Since computes the time elapsed between last and now.
// A nil record yields ElapsedUnknown; a record without a timestamp yields
// ElapsedInvalid. Clock skew that puts last in the future yields "0 sec".
func Since(last *Record, now time.Time) Elapsed {
	if last == nil {
		return Elapsed{Kind: ElapsedUnknown}
	}
	if last.Timestamp.IsZero() {
		return Elapsed{Kind: ElapsedInvalid}
	}
	return Elapsed{
		Kind:      ElapsedKnown,
		Breakdown: NewBreakdown(now.Truncate(time.Second).Sub(last.Timestamp.Truncate(time.Second))),
	}
}

// SinceLine is Since for a raw storage line. An empty line yields
// ElapsedUnknown; a line whose timestamp column fails to parse yields
// ElapsedInvalid. The state column is not inspected.
func SinceLine(line string, now time.Time) Elapsed {
	line = strings.TrimSpace(line)
	if line == "" {
		return Elapsed{Kind: ElapsedUnknown}
	}
	ts, _, ok := strings.Cut(line, ",")
	if !ok {
		return Elapsed{Kind: ElapsedInvalid}
	}
	t, err := parseTimestamp(ts, now.Location())
	if err != nil {
		return Elapsed{Kind: ElapsedInvalid}
	}
	return Since(&Record{Timestamp: t}, now)
}
