//go:build !linux

package gpio

// RealReader has no backing device off Linux.
type RealReader struct{}

// NewRealReader always fails with ErrUnsupported off Linux, so the state and
// run commands report a clear error on a development machine.
func NewRealReader(chipName string, offset int, activeLow bool) (*RealReader, error) {
	return nil, ErrUnsupported
}

func (r *RealReader) Read() (bool, error) { return false, ErrUnsupported }

func (r *RealReader) Close() error { return nil }
