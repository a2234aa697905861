// Package history provides the bounded transition log: the newest few power
// transitions, stored as text lines on flash-backed storage.
package history

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage is a line-oriented store. WriteAll replaces the whole content.
type Storage interface {
	// ReadAll returns the lines stored at path without trailing newlines.
	// A path that has never been written returns no lines and no error.
	ReadAll(path string) ([]string, error)
	// WriteAll atomically replaces the content at path with lines.
	WriteAll(path string, lines []string) error
}

// FileStorage stores each path as a file under Dir.
type FileStorage struct {
	Dir string
}

// NewFileStorage creates Dir if needed and returns a FileStorage rooted there.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStorage{Dir: dir}, nil
}

// ReadAll reads the file at path.
func (s *FileStorage) ReadAll(path string) ([]string, error) {
	data, err := os.ReadFile(s.resolve(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	return lines, sc.Err()
}

// WriteAll writes lines to a temporary file in the same directory, syncs it
// and renames it over path, so readers see either the old or the new content.
func (s *FileStorage) WriteAll(path string, lines []string) error {
	target := s.resolve(path)

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		w.WriteString(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return err
	}

	if err := syncDir(filepath.Dir(target)); err != nil {
		return fmt.Errorf("persist rename of %s: %w", path, err)
	}
	return nil
}

// syncDir flushes a directory entry so a completed rename survives power
// loss. Tests replace it.
var syncDir = func(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		d.Close()
		return err
	}
	return d.Close()
}

func (s *FileStorage) resolve(path string) string {
	if filepath.IsAbs(path) || s.Dir == "" {
		return path
	}
	return filepath.Join(s.Dir, path)
}

// FakeStorage is an in-memory Storage for tests. Contents outlive the Log that
// wrote them, which is how tests simulate a restart.
type FakeStorage struct {
	Files map[string][]string

	// ReadError, if set, is returned by ReadAll.
	ReadError error
	// WriteError, if set, is returned by WriteAll and nothing is stored.
	WriteError error

	// Writes counts successful WriteAll calls.
	Writes int
}

// NewFakeStorage creates an empty FakeStorage.
func NewFakeStorage() *FakeStorage {
	return &FakeStorage{Files: make(map[string][]string)}
}

// ReadAll returns a copy of the lines stored at path.
func (f *FakeStorage) ReadAll(path string) ([]string, error) {
	if f.ReadError != nil {
		return nil, f.ReadError
	}
	return append([]string(nil), f.Files[path]...), nil
}

// WriteAll replaces the lines stored at path.
func (f *FakeStorage) WriteAll(path string, lines []string) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Files[path] = append([]string(nil), lines...)
	f.Writes++
	return nil
}
