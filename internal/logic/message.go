package logic

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Texts holds the human-readable parts of a notification.
type Texts struct {
	PowerOn      string // headline when power returns
	PowerOff     string // headline when power is lost
	WithPower    string // label for the duration of the previous ON period
	WithoutPower string // label for the duration of the previous OFF period
}

// DefaultTexts returns the stock notification texts.
func DefaultTexts() Texts {
	return Texts{
		PowerOn:      "Power is on💡",
		PowerOff:     "Power is out⚡",
		WithPower:    "time with power",
		WithoutPower: "time without power",
	}
}

// transitionNamespace scopes transition IDs generated by this daemon.
var transitionNamespace = uuid.MustParse("6f1d5e0c-3b8a-4f57-9c61-2a4b8e7d9f10")

// Message describes a detected transition to be sent to a human.
type Message struct {
	// ID identifies the transition, not the attempt. Every retry of the same
	// transition carries the same ID so receivers can deduplicate.
	ID         string
	State      PowerState
	DetectedAt time.Time
	Elapsed    Elapsed
}

// NewMessage builds the message for a transition into powerOn.
// previous is the record the elapsed time was measured from, if any.
func NewMessage(powerOn bool, previous *Record, detectedAt time.Time) Message {
	return Message{
		ID:         TransitionID(previous, powerOn),
		State:      StateOf(powerOn),
		DetectedAt: detectedAt,
		Elapsed:    Since(previous, detectedAt),
	}
}

// NewMessageAfterLine builds the message for a transition into powerOn,
// measuring from the raw stored line. An empty line means no prior
// transition; a line whose timestamp does not parse yields the invalid
// timestamp marker.
func NewMessageAfterLine(powerOn bool, line string, detectedAt time.Time) Message {
	line = strings.TrimSpace(line)
	key := "initial"
	if line != "" {
		key = line
	}
	return Message{
		ID:         transitionID(key, powerOn),
		State:      StateOf(powerOn),
		DetectedAt: detectedAt,
		Elapsed:    SinceLine(line, detectedAt),
	}
}

// Text renders the message body, e.g.
//
//	Power is out⚡
//	time with power: 2 hr, 5 min
func (m Message) Text(t Texts) string {
	if m.State.On() {
		return t.PowerOn + "\n" + t.WithoutPower + ": " + m.Elapsed.String()
	}
	return t.PowerOff + "\n" + t.WithPower + ": " + m.Elapsed.String()
}

// TransitionID derives a stable identifier for the transition that follows
// previous and ends in powerOn.
func TransitionID(previous *Record, powerOn bool) string {
	key := "initial"
	if previous != nil {
		key = FormatRecord(*previous)
	}
	return transitionID(key, powerOn)
}

func transitionID(previous string, powerOn bool) string {
	key := previous + "->" + string(StateOf(powerOn))
	return uuid.NewSHA1(transitionNamespace, []byte(key)).String()
}
