// Package monitor implements the poll cycle that turns probe readings into
// durable, notified power transitions.
//
// A transition is committed in two steps after the notifier confirms
// delivery: first the record is added to the transition log, then the state
// cell is rewritten. If either step fails the cell still holds the old state,
// so the next cycle detects the same transition and notifies again. A log
// tail that already carries the new state marks such an unfinished commit and
// is replaced rather than duplicated.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/power-monitor/internal/cell"
	"github.com/sweeney/power-monitor/internal/gpio"
	"github.com/sweeney/power-monitor/internal/history"
	"github.com/sweeney/power-monitor/internal/logic"
	"github.com/sweeney/power-monitor/internal/notify"
)

// ErrClockUnavailable is returned by a Clock that has no trustworthy time.
var ErrClockUnavailable = errors.New("clock unavailable")

// Clock returns the current wall-clock time.
type Clock func() (time.Time, error)

// SystemClock returns a Clock backed by time.Now that reports
// ErrClockUnavailable until the system time reaches minValid, i.e. until NTP
// has set the clock on a board without an RTC.
func SystemClock(minValid time.Time) Clock {
	return func() (time.Time, error) {
		t := time.Now()
		if t.Before(minValid) {
			return time.Time{}, fmt.Errorf("%w: system time %s is before %s", ErrClockUnavailable,
				t.Format(time.RFC3339), minValid.Format(time.RFC3339))
		}
		return t, nil
	}
}

// Outcome classifies the result of one poll cycle.
type Outcome string

const (
	OutcomeStable           Outcome = "stable"
	OutcomeNotified         Outcome = "notified"
	OutcomeNotifyFailed     Outcome = "notify_failed"
	OutcomeClockUnavailable Outcome = "clock_unavailable"
	OutcomeCellInvalid      Outcome = "cell_invalid"
	OutcomeRecovered        Outcome = "recovered"
	OutcomeSignalError      Outcome = "signal_error"
	OutcomeStorageError     Outcome = "storage_error"
)

// Result describes one poll cycle.
type Result struct {
	Outcome Outcome
	// PowerOn is the probe reading. Valid unless Outcome is OutcomeSignalError.
	PowerOn bool
	// Message is set when a notification was attempted.
	Message *logic.Message
	// Record is set when a transition was committed.
	Record *logic.Record
	// NotifyDuration is how long the notifier took, when it was called.
	NotifyDuration time.Duration
	// Err holds the underlying failure, if any.
	Err error
}

// Transitioned reports whether the cycle saw the probe disagree with the cell.
func (r Result) Transitioned() bool {
	return r.Message != nil
}

// Session is the per-process state carried from one poll cycle to the next.
type Session struct {
	// CellCorrupt is set when the cell read Invalid. While set, the normal
	// commit path never writes the cell; only reinitialisation clears it.
	CellCorrupt bool
	// FirstBoot is set when Init found the cell uninitialised.
	FirstBoot bool
	// Pending is the state of a detected transition whose notification has
	// not yet been committed, or nil.
	Pending *logic.PowerState
	// PendingSince is when Pending was first detected.
	PendingSince time.Time
	// Attempts counts notification attempts for Pending.
	Attempts int
}

// Monitor runs poll cycles against its collaborators. It is not safe for
// concurrent use; one goroutine owns it.
type Monitor struct {
	signal   gpio.Reader
	cell     *cell.Cell
	log      *history.Log
	notifier notify.Notifier
	clock    Clock
	timeout  time.Duration
	logger   zerolog.Logger
}

// Config holds a Monitor's collaborators.
type Config struct {
	Signal   gpio.Reader
	Cell     *cell.Cell
	Log      *history.Log
	Notifier notify.Notifier
	Clock    Clock
	// NotifyTimeout bounds each Send. Zero means no bound beyond ctx.
	NotifyTimeout time.Duration
	Logger        zerolog.Logger
}

// New creates a Monitor.
func New(cfg Config) *Monitor {
	return &Monitor{
		signal:   cfg.Signal,
		cell:     cfg.Cell,
		log:      cfg.Log,
		notifier: cfg.Notifier,
		clock:    cfg.Clock,
		timeout:  cfg.NotifyTimeout,
		logger:   cfg.Logger.With().Str("component", "monitor").Logger(),
	}
}

// Init prepares the cell at startup. An Invalid cell is treated as a first
// boot and set to On, on the assumption that power was present when the
// monitor was installed. A medium read failure is returned without touching
// the cell; Poll reads it again on every cycle.
func (m *Monitor) Init(sess *Session) error {
	v, err := m.cell.Read()
	if err != nil {
		return fmt.Errorf("read cell: %w", err)
	}
	if cell.IsValid(v) {
		m.logger.Info().Str("cell", v.String()).Msg("cell value is valid")
		return nil
	}

	if err := m.cell.Reinit(); err != nil {
		sess.CellCorrupt = true
		return fmt.Errorf("initialise cell: %w", err)
	}
	sess.FirstBoot = true
	m.logger.Info().Msg("cell initialised to ON")
	return nil
}

// Poll runs one cycle: read the probe, compare with the cell and, on a
// change, notify and commit.
func (m *Monitor) Poll(ctx context.Context, sess *Session) Result {
	powerOn, err := m.signal.Read()
	if err != nil {
		return Result{Outcome: OutcomeSignalError, Err: err}
	}

	if sess.CellCorrupt {
		return m.recoverCell(sess, powerOn)
	}

	v, err := m.cell.Read()
	if err != nil {
		return Result{Outcome: OutcomeStorageError, PowerOn: powerOn, Err: err}
	}
	if !cell.IsValid(v) {
		sess.CellCorrupt = true
		m.logger.Error().Str("cell", v.String()).Msg("cell content invalid, persistence suspended")
		return Result{Outcome: OutcomeCellInvalid, PowerOn: powerOn, Err: cell.ErrInvalid}
	}

	was, _ := v.State()
	if was.On() == powerOn {
		if sess.Pending != nil {
			m.logger.Info().Int("attempts", sess.Attempts).Msg("pending transition reverted before delivery")
			clearPending(sess)
		}
		return Result{Outcome: OutcomeStable, PowerOn: powerOn}
	}

	return m.transition(ctx, sess, powerOn)
}

func (m *Monitor) transition(ctx context.Context, sess *Session, powerOn bool) Result {
	now, err := m.clock()
	if err != nil {
		m.logger.Warn().Err(err).Msg("transition detected but clock unavailable, skipping cycle")
		return Result{Outcome: OutcomeClockUnavailable, PowerOn: powerOn, Err: err}
	}

	state := logic.StateOf(powerOn)
	if sess.Pending == nil || *sess.Pending != state {
		sess.Pending = &state
		sess.PendingSince = now
		sess.Attempts = 0
	}
	sess.Attempts++

	previous, unfinished, err := m.previous(powerOn)
	if err != nil {
		return Result{Outcome: OutcomeStorageError, PowerOn: powerOn, Err: err}
	}

	msg := logic.NewMessageAfterLine(powerOn, previous, now)
	res := Result{PowerOn: powerOn, Message: &msg}

	sendCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	m.logger.Info().Str("state", string(state)).Str("elapsed", msg.Elapsed.String()).
		Int("attempt", sess.Attempts).Msg("status change detected, sending notification")

	start := time.Now()
	err = m.notifier.Send(sendCtx, msg)
	res.NotifyDuration = time.Since(start)
	if err != nil {
		m.logger.Warn().Err(err).Int("attempt", sess.Attempts).Msg("notification failed, will retry")
		res.Outcome = OutcomeNotifyFailed
		res.Err = err
		return res
	}

	rec := logic.NewRecord(now, powerOn)
	if err := m.commit(rec, unfinished); err != nil {
		m.logger.Error().Err(err).Msg("commit failed after notification, will notify again")
		res.Outcome = OutcomeStorageError
		res.Err = err
		return res
	}

	m.logger.Info().Str("state", string(state)).Str("id", msg.ID).Msg("transition committed")
	clearPending(sess)
	res.Outcome = OutcomeNotified
	res.Record = &rec
	return res
}

// previous returns the stored line the elapsed time is measured from, which
// is the raw last row even when it does not parse. unfinished reports that
// the last row parsed, the whole log is clean and it already records
// powerOn, i.e. an earlier attempt logged this transition but never
// committed the cell.
func (m *Monitor) previous(powerOn bool) (line string, unfinished bool, err error) {
	tail, err := m.log.Tail()
	if err != nil {
		return "", false, err
	}
	if tail.Last == "" {
		return "", false, nil
	}
	if tail.Clean && tail.Record.PowerOn == powerOn {
		return tail.Prev, true, nil
	}
	if !tail.Clean {
		m.logger.Warn().Str("row", tail.Last).Msg("transition log is damaged, measuring from its last row")
	}
	return tail.Last, false, nil
}

// commit persists a delivered transition: log first, then cell.
func (m *Monitor) commit(rec logic.Record, unfinished bool) error {
	var err error
	if unfinished {
		err = m.log.ReplaceLast(rec)
	} else {
		err = m.log.Append(rec)
	}
	if err != nil {
		return err
	}

	return m.cell.Write(rec.State())
}

// recoverCell runs the reinitialisation path for a corrupt cell.
func (m *Monitor) recoverCell(sess *Session, powerOn bool) Result {
	if err := m.cell.Reinit(); err != nil {
		m.logger.Error().Err(err).Msg("cell recovery failed, persistence still suspended")
		return Result{Outcome: OutcomeCellInvalid, PowerOn: powerOn, Err: err}
	}
	sess.CellCorrupt = false
	m.logger.Warn().Msg("cell reinitialised to ON, resuming")
	return Result{Outcome: OutcomeRecovered, PowerOn: powerOn}
}

func clearPending(sess *Session) {
	sess.Pending = nil
	sess.PendingSince = time.Time{}
	sess.Attempts = 0
}
