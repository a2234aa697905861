package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/power-monitor/internal/logic"
	"github.com/sweeney/power-monitor/internal/monitor"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{PollMs: 5000, Transport: "mqtt", Target: "tcp://localhost:1883", HTTPAddr: ":80", LogCapacity: 5}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.PollMs != 5000 {
		t.Errorf("Config.PollMs: got %d, want 5000", snap.Config.PollMs)
	}
	if snap.Power != "" {
		t.Errorf("expected empty Power initially, got %q", snap.Power)
	}
	if snap.NotifierConnected {
		t.Error("expected NotifierConnected=false initially")
	}
}

func TestObserveCountsOutcomes(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	outcomes := []monitor.Outcome{
		monitor.OutcomeStable,
		monitor.OutcomeNotifyFailed,
		monitor.OutcomeNotifyFailed,
		monitor.OutcomeNotified,
		monitor.OutcomeClockUnavailable,
		monitor.OutcomeCellInvalid,
		monitor.OutcomeRecovered,
		monitor.OutcomeStorageError,
	}
	for _, o := range outcomes {
		tr.Observe(at, monitor.Result{Outcome: o, PowerOn: false}, monitor.Session{})
	}
	tr.Observe(at, monitor.Result{Outcome: monitor.OutcomeSignalError}, monitor.Session{})

	c := tr.Snapshot().Counts
	want := Counts{
		Polls:            9,
		Notified:         1,
		NotifyFailed:     2,
		ClockUnavailable: 1,
		CellInvalid:      1,
		Recovered:        1,
		SignalErrors:     1,
		StorageErrors:    1,
	}
	if c != want {
		t.Errorf("Counts: got %+v, want %+v", c, want)
	}

	snap := tr.Snapshot()
	if snap.Power != logic.StateOff {
		t.Errorf("Power: got %q, want OFF (signal error keeps last reading)", snap.Power)
	}
	if snap.LastOutcome != monitor.OutcomeSignalError {
		t.Errorf("LastOutcome: got %q", snap.LastOutcome)
	}
	if !snap.LastPoll.Equal(at) {
		t.Errorf("LastPoll: got %v, want %v", snap.LastPoll, at)
	}
}

func TestObserveSession(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	since := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	off := logic.StateOff

	tr.Observe(since, monitor.Result{Outcome: monitor.OutcomeNotifyFailed}, monitor.Session{
		CellCorrupt:  true,
		Pending:      &off,
		PendingSince: since,
		Attempts:     3,
	})

	snap := tr.Snapshot()
	if !snap.CellCorrupt {
		t.Error("expected CellCorrupt=true")
	}
	if snap.Pending != logic.StateOff || snap.Attempts != 3 {
		t.Errorf("Pending: got %q/%d, want OFF/3", snap.Pending, snap.Attempts)
	}

	tr.SetSession(monitor.Session{})
	snap = tr.Snapshot()
	if snap.Pending != "" || snap.CellCorrupt {
		t.Errorf("expected cleared session, got pending=%q corrupt=%v", snap.Pending, snap.CellCorrupt)
	}
	if snap.Counts.Polls != 1 {
		t.Errorf("SetSession must not count a poll, got %d", snap.Counts.Polls)
	}
}

func TestSetNotifierConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetNotifierConnected(true)
	if !tr.Snapshot().NotifierConnected {
		t.Error("expected NotifierConnected=true")
	}

	tr.SetNotifierConnected(false)
	if tr.Snapshot().NotifierConnected {
		t.Error("expected NotifierConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	net := &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"}
	tr.SetNetwork(net)

	snap := tr.Snapshot()
	if snap.Network == nil || snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network: got %+v", snap.Network)
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{StartTime: start, Now: start.Add(90 * time.Minute)}
	if snap.Uptime() != 90*time.Minute {
		t.Errorf("Uptime: got %v, want 90m", snap.Uptime())
	}
}

func TestSnapshotHistoryIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	records := []logic.Record{logic.NewRecord(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), false)}
	tr.SetHistory(records)
	records[0].PowerOn = true

	snap := tr.Snapshot()
	snap.History[0].PowerOn = true

	if tr.Snapshot().History[0].PowerOn {
		t.Error("tracker history was mutated through a caller's slice")
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(90061 * time.Second)
	snap := Snapshot{
		Power:       logic.StateOn,
		LastOutcome: monitor.OutcomeNotified,
		History: []logic.Record{
			logic.NewRecord(start, false),
			logic.NewRecord(start.Add(time.Hour), true),
		},
		Counts:            Counts{Polls: 10, Notified: 2},
		StartTime:         start,
		Now:               now,
		NotifierConnected: true,
		Config:            Config{PollMs: 5000, Transport: "mqtt", Target: "tcp://broker:1883", HTTPAddr: ":80", LogCapacity: 5},
	}

	var sj StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &sj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	s := sj.Status
	if s.Power != "ON" {
		t.Errorf("Power: got %q, want ON", s.Power)
	}
	if s.UptimeSeconds != 90061 {
		t.Errorf("UptimeSeconds: got %d", s.UptimeSeconds)
	}
	if len(s.History) != 2 {
		t.Fatalf("History: got %d entries, want 2", len(s.History))
	}
	if s.History[0].Ago != "1 d, 1 hr, 1 min, 1 sec" {
		t.Errorf("History[0].Ago: got %q", s.History[0].Ago)
	}
	if s.LastTransition == nil || s.LastTransition.State != "ON" || s.LastTransition.Ago != "1 d, 1 min, 1 sec" {
		t.Errorf("LastTransition: got %+v", s.LastTransition)
	}
	if s.Pending != nil {
		t.Errorf("Pending: got %+v, want nil", s.Pending)
	}
	if !s.Notifier.Connected || s.Notifier.Transport != "mqtt" {
		t.Errorf("Notifier: got %+v", s.Notifier)
	}
	if s.Counts.Polls != 10 || s.Counts.Notified != 2 {
		t.Errorf("Counts: got %+v", s.Counts)
	}
	if s.Config.LogCapacity != 5 {
		t.Errorf("Config.LogCapacity: got %d", s.Config.LogCapacity)
	}
	if s.Network != nil {
		t.Error("expected no network block")
	}
}

func TestFormatJSONUnknownAndPending(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Pending:      logic.StateOff,
		PendingSince: now,
		Attempts:     2,
		StartTime:    now,
		Now:          now,
		Network:      &NetworkInfo{Type: "wifi", SSID: "Home"},
	}

	var sj StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &sj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sj.Status.Power != "UNKNOWN" {
		t.Errorf("Power: got %q, want UNKNOWN", sj.Status.Power)
	}
	if sj.Status.Pending == nil || sj.Status.Pending.Attempts != 2 || sj.Status.Pending.State != "OFF" {
		t.Errorf("Pending: got %+v", sj.Status.Pending)
	}
	if sj.Status.LastTransition != nil {
		t.Error("expected no last transition")
	}
	if sj.Status.History == nil {
		t.Error("history should be an empty array, not null")
	}
	if sj.Status.Network == nil || sj.Status.Network.SSID != "Home" {
		t.Errorf("Network: got %+v", sj.Status.Network)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.Observe(time.Now(), monitor.Result{Outcome: monitor.OutcomeStable, PowerOn: j%2 == 0}, monitor.Session{})
				tr.SetHistory([]logic.Record{logic.NewRecord(time.Now(), i%2 == 0)})
				tr.SetNotifierConnected(j%2 == 0)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = FormatJSON(tr.Snapshot())
			}
		}()
	}
	wg.Wait()

	if got := tr.Snapshot().Counts.Polls; got != 1000 {
		t.Errorf("Polls: got %d, want 1000", got)
	}
}
