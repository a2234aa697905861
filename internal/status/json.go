package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/power-monitor/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Power          string           `json:"power"`
	CellCorrupt    bool             `json:"cell_corrupt"`
	FirstBoot      bool             `json:"first_boot"`
	Pending        *PendingJSON     `json:"pending,omitempty"`
	LastOutcome    string           `json:"last_outcome,omitempty"`
	LastTransition *TransitionJSON  `json:"last_transition,omitempty"`
	History        []TransitionJSON `json:"history"`
	UptimeSeconds  int64            `json:"uptime_seconds"`
	StartTime      string           `json:"start_time"`
	Timestamp      string           `json:"timestamp"`
	Notifier       NotifierStatus   `json:"notifier"`
	Counts         CountsJSON       `json:"poll_counts"`
	Network        *NetworkJSON     `json:"network,omitempty"`
	Config         ConfigJSON       `json:"config"`
}

// PendingJSON describes a transition awaiting delivery.
type PendingJSON struct {
	State    string `json:"state"`
	Since    string `json:"since"`
	Attempts int    `json:"attempts"`
}

// TransitionJSON is the JSON representation of a logged transition.
type TransitionJSON struct {
	Timestamp string `json:"timestamp"`
	State     string `json:"state"`
	Ago       string `json:"ago"`
}

// NotifierStatus reports the notification transport state.
type NotifierStatus struct {
	Connected bool   `json:"connected"`
	Transport string `json:"transport"`
	Target    string `json:"target,omitempty"`
}

// CountsJSON is the JSON representation of poll outcome counts.
type CountsJSON struct {
	Polls            int `json:"polls"`
	Notified         int `json:"notified"`
	NotifyFailed     int `json:"notify_failed"`
	ClockUnavailable int `json:"clock_unavailable"`
	CellInvalid      int `json:"cell_invalid"`
	Recovered        int `json:"recovered"`
	SignalErrors     int `json:"signal_errors"`
	StorageErrors    int `json:"storage_errors"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs          int64  `json:"poll_ms"`
	NotifyTimeoutMs int64  `json:"notify_timeout_ms"`
	HTTPAddr        string `json:"http_addr"`
	LogCapacity     int    `json:"log_capacity"`
}

func transitionJSON(r logic.Record, now time.Time) TransitionJSON {
	return TransitionJSON{
		Timestamp: r.Timestamp.Format(time.RFC3339),
		State:     string(r.State()),
		Ago:       logic.Since(&r, now).String(),
	}
}

func buildInner(snap Snapshot) StatusInner {
	power := string(snap.Power)
	if power == "" {
		power = "UNKNOWN"
	}

	inner := StatusInner{
		Power:         power,
		CellCorrupt:   snap.CellCorrupt,
		FirstBoot:     snap.FirstBoot,
		LastOutcome:   string(snap.LastOutcome),
		History:       make([]TransitionJSON, 0, len(snap.History)),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Notifier: NotifierStatus{
			Connected: snap.NotifierConnected,
			Transport: snap.Config.Transport,
			Target:    snap.Config.Target,
		},
		Counts: CountsJSON{
			Polls:            snap.Counts.Polls,
			Notified:         snap.Counts.Notified,
			NotifyFailed:     snap.Counts.NotifyFailed,
			ClockUnavailable: snap.Counts.ClockUnavailable,
			CellInvalid:      snap.Counts.CellInvalid,
			Recovered:        snap.Counts.Recovered,
			SignalErrors:     snap.Counts.SignalErrors,
			StorageErrors:    snap.Counts.StorageErrors,
		},
		Config: ConfigJSON{
			PollMs:          snap.Config.PollMs,
			NotifyTimeoutMs: snap.Config.NotifyTimeout,
			HTTPAddr:        snap.Config.HTTPAddr,
			LogCapacity:     snap.Config.LogCapacity,
		},
	}

	if snap.Pending != "" {
		inner.Pending = &PendingJSON{
			State:    string(snap.Pending),
			Since:    snap.PendingSince.UTC().Format(time.RFC3339),
			Attempts: snap.Attempts,
		}
	}

	for _, r := range snap.History {
		inner.History = append(inner.History, transitionJSON(r, snap.Now))
	}
	if last, ok := snap.LastTransition(); ok {
		tj := transitionJSON(last, snap.Now)
		inner.LastTransition = &tj
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}
