// Package gpio reads the mains-presence probe. The real implementation uses
// the Linux GPIO character device; FakeReader scripts readings for tests.
package gpio

import "errors"

// Reader reads the power probe.
type Reader interface {
	// Read returns true when external power is present.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Defaults for the probe line.
const (
	DefaultChip = "gpiochip0"
	DefaultLine = 4
)

var (
	// ErrUnsupported is returned by NewRealReader off Linux.
	ErrUnsupported = errors.New("gpio: requires the Linux GPIO character device")
	// ErrClosed is returned by Read after Close.
	ErrClosed = errors.New("gpio: reader closed")
)
