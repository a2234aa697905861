// Package cell provides the non-volatile state cell: a single byte that
// survives reboots and holds the last reported power state.
//
// The byte uses a redundant encoding so that an erased, zeroed, bit-rotted or
// torn cell decodes as Invalid instead of a plausible state.
package cell

import (
	"errors"
	"fmt"

	"github.com/sweeney/power-monitor/internal/logic"
)

// Reserved encodings. They differ in four bits so that a single flipped bit
// can never turn one state into the other.
const (
	EncodedOn  byte = 0xA5
	EncodedOff byte = 0x3C
)

// Value is the decoded content of the cell.
type Value int

const (
	Invalid Value = iota
	On
	Off
)

// String returns a readable name for v.
func (v Value) String() string {
	switch v {
	case On:
		return "ON"
	case Off:
		return "OFF"
	default:
		return "INVALID"
	}
}

// IsValid reports whether v holds a trusted power state. Consumers must check
// it before acting on a read.
func IsValid(v Value) bool {
	return v == On || v == Off
}

// State converts a valid value into a PowerState. It returns false for Invalid.
func (v Value) State() (logic.PowerState, bool) {
	switch v {
	case On:
		return logic.StateOn, true
	case Off:
		return logic.StateOff, true
	default:
		return "", false
	}
}

// Decode maps a raw byte to a Value.
func Decode(b byte) Value {
	switch b {
	case EncodedOn:
		return On
	case EncodedOff:
		return Off
	default:
		return Invalid
	}
}

// Encode maps a power state to its reserved byte.
func Encode(s logic.PowerState) byte {
	if s.On() {
		return EncodedOn
	}
	return EncodedOff
}

// ErrInvalid is returned by Reinit when the cell does not read back valid
// after being rewritten.
var ErrInvalid = errors.New("cell: invalid content")

// Medium is a byte-addressable non-volatile store.
type Medium interface {
	// ReadByteAt returns the byte at addr.
	ReadByteAt(addr int) (byte, error)
	// WriteByteAt durably commits b at addr. When it returns nil the value
	// must survive a power loss.
	WriteByteAt(addr int, b byte) error
}

// Cell is the state cell at a fixed address of a Medium.
type Cell struct {
	medium Medium
	addr   int
}

// New creates a Cell at addr on medium.
func New(medium Medium, addr int) *Cell {
	return &Cell{medium: medium, addr: addr}
}

// Addr returns the cell's address.
func (c *Cell) Addr() int {
	return c.addr
}

// Read decodes the stored byte. A medium failure is returned as an error;
// unrecognised content is returned as Invalid with a nil error.
func (c *Cell) Read() (Value, error) {
	b, err := c.medium.ReadByteAt(c.addr)
	if err != nil {
		return Invalid, fmt.Errorf("read cell at %d: %w", c.addr, err)
	}
	return Decode(b), nil
}

// ReadRaw returns the undecoded byte, for diagnostics.
func (c *Cell) ReadRaw() (byte, error) {
	return c.medium.ReadByteAt(c.addr)
}

// Write encodes and commits s.
func (c *Cell) Write(s logic.PowerState) error {
	if err := c.medium.WriteByteAt(c.addr, Encode(s)); err != nil {
		return fmt.Errorf("write cell at %d: %w", c.addr, err)
	}
	return nil
}

// Reinit resets the cell to On and verifies the read-back. This is the only
// path that may clear a corruption condition.
func (c *Cell) Reinit() error {
	if err := c.Write(logic.StateOn); err != nil {
		return err
	}
	v, err := c.Read()
	if err != nil {
		return err
	}
	if v != On {
		return fmt.Errorf("%w: read back %s after reinit", ErrInvalid, v)
	}
	return nil
}
