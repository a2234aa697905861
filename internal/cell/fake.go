package cell

import "fmt"

// FakeMedium is an in-memory Medium for tests. Its contents survive across
// Cells built on it, which is how tests simulate a restart.
type FakeMedium struct {
	Bytes []byte

	// ReadError, if set, is returned by ReadByteAt.
	ReadError error
	// WriteError, if set, is returned by WriteByteAt and nothing is written.
	WriteError error

	// Writes counts successful writes.
	Writes int
}

// NewFakeMedium creates an erased medium of size bytes.
func NewFakeMedium(size int) *FakeMedium {
	b := make([]byte, size)
	for i := range b {
		b[i] = erased
	}
	return &FakeMedium{Bytes: b}
}

// ReadByteAt returns the byte at addr.
func (f *FakeMedium) ReadByteAt(addr int) (byte, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if addr < 0 || addr >= len(f.Bytes) {
		return 0, fmt.Errorf("address %d out of range", addr)
	}
	return f.Bytes[addr], nil
}

// WriteByteAt stores b at addr.
func (f *FakeMedium) WriteByteAt(addr int, b byte) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	if addr < 0 || addr >= len(f.Bytes) {
		return fmt.Errorf("address %d out of range", addr)
	}
	f.Bytes[addr] = b
	f.Writes++
	return nil
}
