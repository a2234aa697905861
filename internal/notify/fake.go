package notify

import (
	"context"

	"github.com/sweeney/power-monitor/internal/logic"
)

// FakeNotifier records sent messages for test assertions.
type FakeNotifier struct {
	// Messages contains every message that was sent successfully.
	Messages []logic.Message

	// Attempts contains every message Send was called with, including failures.
	Attempts []logic.Message

	// SendError, if set, will be returned by Send.
	SendError error

	// FailNext makes the next FailNext calls to Send fail with SendError
	// (or errFakeFailure when SendError is nil).
	FailNext int

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

type fakeError string

func (e fakeError) Error() string { return string(e) }

const errFakeFailure = fakeError("simulated send failure")

// NewFakeNotifier creates a FakeNotifier for testing.
func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{Connected: true}
}

// Send records msg.
func (f *FakeNotifier) Send(ctx context.Context, msg logic.Message) error {
	f.Attempts = append(f.Attempts, msg)

	if err := ctx.Err(); err != nil {
		return err
	}
	if f.FailNext > 0 {
		f.FailNext--
		if f.SendError != nil {
			return f.SendError
		}
		return errFakeFailure
	}
	if f.SendError != nil {
		return f.SendError
	}

	f.Messages = append(f.Messages, msg)
	return nil
}

// Close marks the notifier as closed.
func (f *FakeNotifier) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake notifier is "connected".
func (f *FakeNotifier) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded messages and injected failures.
func (f *FakeNotifier) Reset() {
	f.Messages = nil
	f.Attempts = nil
	f.SendError = nil
	f.FailNext = 0
	f.Closed = false
}
