// Package status provides a thread-safe status tracker for the power-monitor daemon.
// It is written by the poll loop and read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/power-monitor/internal/logic"
	"github.com/sweeney/power-monitor/internal/monitor"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs        int64
	NotifyTimeout int64 // milliseconds
	Transport     string
	Target        string // broker URL or chat id
	HTTPAddr      string
	LogCapacity   int
}

// Counts tracks poll outcomes since startup.
type Counts struct {
	Polls            int
	Notified         int
	NotifyFailed     int
	ClockUnavailable int
	CellInvalid      int
	Recovered        int
	SignalErrors     int
	StorageErrors    int
}

func (c *Counts) add(o monitor.Outcome) {
	c.Polls++
	switch o {
	case monitor.OutcomeNotified:
		c.Notified++
	case monitor.OutcomeNotifyFailed:
		c.NotifyFailed++
	case monitor.OutcomeClockUnavailable:
		c.ClockUnavailable++
	case monitor.OutcomeCellInvalid:
		c.CellInvalid++
	case monitor.OutcomeRecovered:
		c.Recovered++
	case monitor.OutcomeSignalError:
		c.SignalErrors++
	case monitor.OutcomeStorageError:
		c.StorageErrors++
	}
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Power             logic.PowerState // empty until the first successful read
	CellCorrupt       bool
	FirstBoot         bool
	Pending           logic.PowerState // empty when nothing is pending
	PendingSince      time.Time
	Attempts          int
	LastOutcome       monitor.Outcome
	LastPoll          time.Time
	History           []logic.Record
	Counts            Counts
	StartTime         time.Time
	Now               time.Time
	NotifierConnected bool
	Network           *NetworkInfo
	Config            Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// LastTransition returns the newest logged transition, if any.
func (s Snapshot) LastTransition() (logic.Record, bool) {
	if len(s.History) == 0 {
		return logic.Record{}, false
	}
	return s.History[len(s.History)-1], true
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Observe records the result of a poll cycle and the session after it.
// Called from runLoop on every tick.
func (t *Tracker) Observe(at time.Time, res monitor.Result, sess monitor.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.Counts.add(res.Outcome)
	t.snap.LastOutcome = res.Outcome
	t.snap.LastPoll = at
	if res.Outcome != monitor.OutcomeSignalError {
		t.snap.Power = logic.StateOf(res.PowerOn)
	}
	t.setSession(sess)
}

// SetSession copies the session flags without counting a poll.
func (t *Tracker) SetSession(sess monitor.Session) {
	t.mu.Lock()
	t.setSession(sess)
	t.mu.Unlock()
}

func (t *Tracker) setSession(sess monitor.Session) {
	t.snap.CellCorrupt = sess.CellCorrupt
	t.snap.FirstBoot = sess.FirstBoot
	t.snap.Pending = ""
	if sess.Pending != nil {
		t.snap.Pending = *sess.Pending
	}
	t.snap.PendingSince = sess.PendingSince
	t.snap.Attempts = sess.Attempts
}

// SetHistory replaces the displayed transition log.
func (t *Tracker) SetHistory(records []logic.Record) {
	t.mu.Lock()
	t.snap.History = append([]logic.Record(nil), records...)
	t.mu.Unlock()
}

// SetNotifierConnected sets the notification transport connection status.
func (t *Tracker) SetNotifierConnected(connected bool) {
	t.mu.Lock()
	t.snap.NotifierConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.History = append([]logic.Record(nil), t.snap.History...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
