// Package notify delivers transition notifications to a human, with
// abstraction for testing.
//
// A Notifier reports success only once the transport has acknowledged the
// message. Any error, including a timeout, means "not sent" and the caller
// will try again on its next cycle.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sweeney/power-monitor/internal/logic"
)

// Notifier sends transition notifications.
type Notifier interface {
	// Send delivers msg and blocks until it is acknowledged, ctx is done, or
	// the transport gives up.
	Send(ctx context.Context, msg logic.Message) error

	// Close releases transport resources.
	Close() error
}

// ConnectionStatus reports whether a transport's connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Payload is the JSON structure published for a transition.
type Payload struct {
	Power PowerPayload `json:"power"`
}

// PowerPayload contains the transition details.
type PowerPayload struct {
	ID             string `json:"id"`
	Timestamp      string `json:"timestamp"`
	State          string `json:"state"`
	Text           string `json:"text"`
	Elapsed        string `json:"elapsed"`
	ElapsedSeconds *int64 `json:"elapsed_seconds,omitempty"`
}

// FormatPayload creates the JSON payload for msg.
func FormatPayload(msg logic.Message, texts logic.Texts) ([]byte, error) {
	p := PowerPayload{
		ID:        msg.ID,
		Timestamp: msg.DetectedAt.UTC().Format(time.RFC3339),
		State:     string(msg.State),
		Text:      msg.Text(texts),
		Elapsed:   msg.Elapsed.String(),
	}
	if msg.Elapsed.Kind == logic.ElapsedKnown {
		secs := msg.Elapsed.Breakdown.TotalSeconds()
		p.ElapsedSeconds = &secs
	}
	return json.Marshal(Payload{Power: p})
}
