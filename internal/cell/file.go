package cell

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// erased is the content of a fresh cell file, matching erased flash.
const erased = 0xFF

// FileMedium is a fixed-size file used as an EEPROM. Each write touches a
// single byte in place and is followed by fsync.
type FileMedium struct {
	f    *os.File
	size int
}

// OpenFile opens or creates a medium of size bytes at path. A new or short
// file is padded with 0xFF.
func OpenFile(path string, size int) (*FileMedium, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cell file size must be positive, got %d", size)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open cell file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat cell file: %w", err)
	}

	if have := int(info.Size()); have < size {
		pad := make([]byte, size-have)
		for i := range pad {
			pad[i] = erased
		}
		if _, err := f.WriteAt(pad, int64(have)); err != nil {
			f.Close()
			return nil, fmt.Errorf("pad cell file: %w", err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, fmt.Errorf("sync cell file: %w", err)
		}
	}

	return &FileMedium{f: f, size: size}, nil
}

// ReadByteAt returns the byte at addr.
func (m *FileMedium) ReadByteAt(addr int) (byte, error) {
	if err := m.check(addr); err != nil {
		return 0, err
	}
	buf := make([]byte, 1)
	if _, err := m.f.ReadAt(buf, int64(addr)); err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	return buf[0], nil
}

// WriteByteAt writes b at addr and syncs the file.
func (m *FileMedium) WriteByteAt(addr int, b byte) error {
	if err := m.check(addr); err != nil {
		return err
	}
	if _, err := m.f.WriteAt([]byte{b}, int64(addr)); err != nil {
		return err
	}
	return m.f.Sync()
}

// Close releases the file.
func (m *FileMedium) Close() error {
	return m.f.Close()
}

func (m *FileMedium) check(addr int) error {
	if addr < 0 || addr >= m.size {
		return fmt.Errorf("address %d out of range [0,%d)", addr, m.size)
	}
	return nil
}
