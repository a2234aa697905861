package gpio

import "errors"

// FakeReader plays back a script of probe readings. Once the script is
// exhausted the final reading holds, like a line that stays where it was.
type FakeReader struct {
	// Samples is the script; true means power present.
	Samples []bool

	// ReadError, if set, fails every Read.
	ReadError error

	// Reads counts Read calls, including failed ones.
	Reads int

	// Closed is set by Close. Reads after Close fail with ErrClosed.
	Closed bool

	pos int
}

// NewFakeReader creates a FakeReader that plays samples in order.
func NewFakeReader(samples ...bool) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next reading in the script.
func (f *FakeReader) Read() (bool, error) {
	f.Reads++
	switch {
	case f.Closed:
		return false, ErrClosed
	case f.ReadError != nil:
		return false, f.ReadError
	case len(f.Samples) == 0:
		return false, errors.New("fake probe: empty script")
	}

	v := f.Samples[f.pos]
	if f.pos < len(f.Samples)-1 {
		f.pos++
	}
	return v, nil
}

// Set holds the probe at powerOn from the next Read on.
func (f *FakeReader) Set(powerOn bool) {
	f.Samples = []bool{powerOn}
	f.pos = 0
}

// Close marks the reader closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Rewind restarts the script and reopens the reader.
func (f *FakeReader) Rewind() {
	f.pos = 0
	f.Closed = false
}
