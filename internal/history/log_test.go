package history

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/power-monitor/internal/logic"
)

const testPath = "timestamps.txt"

var base = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func rec(i int) logic.Record {
	return logic.NewRecord(base.Add(time.Duration(i)*time.Minute), i%2 == 0)
}

func newTestLog(s Storage, capacity int) *Log {
	return New(s, testPath, capacity, WithLocation(time.UTC))
}

func TestEmptyLog(t *testing.T) {
	l := newTestLog(NewFakeStorage(), 5)

	records, err := l.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, records)

	_, ok, err := l.Last()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAppendBelowCapacity(t *testing.T) {
	s := NewFakeStorage()
	l := newTestLog(s, 5)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Append(rec(i)))
	}

	records, err := l.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, []logic.Record{rec(0), rec(1), rec(2)}, records)

	last, ok, err := l.Last()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec(2), last)

	assert.Equal(t, []string{
		"2026-01-01 12:00:00, true",
		"2026-01-01 12:01:00, false",
		"2026-01-01 12:02:00, true",
	}, s.Files[testPath])
	assert.Equal(t, 3, s.Writes, "one write per mutation")
}

func TestAppendEvictsOldest(t *testing.T) {
	const capacity = 5
	l := newTestLog(NewFakeStorage(), capacity)

	for i := 0; i <= capacity; i++ {
		require.NoError(t, l.Append(rec(i)))
	}

	records, err := l.LoadAll()
	require.NoError(t, err)
	require.Len(t, records, capacity)
	for i, r := range records {
		assert.Equal(t, rec(i+1), r, "position %d", i)
	}
	assert.NotContains(t, records, rec(0))
}

func TestAppendManyKeepsNewest(t *testing.T) {
	l := newTestLog(NewFakeStorage(), 3)
	for i := 0; i < 20; i++ {
		require.NoError(t, l.Append(rec(i)))
	}
	records, err := l.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, []logic.Record{rec(17), rec(18), rec(19)}, records)
}

func TestCapacityOne(t *testing.T) {
	l := newTestLog(NewFakeStorage(), 1)
	require.NoError(t, l.Append(rec(0)))
	require.NoError(t, l.Append(rec(1)))

	records, err := l.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, []logic.Record{rec(1)}, records)
}

func TestLoadStopsAtMalformedRow(t *testing.T) {
	s := NewFakeStorage()
	s.Files[testPath] = []string{
		"2026-01-01 12:00:00, true",
		"2026-01-01 12:01:00, false",
		"2026-01-01 12:0",
		"2026-01-01 12:03:00, true",
	}
	l := newTestLog(s, 5)

	records, err := l.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, []logic.Record{rec(0), rec(1)}, records)

	last, ok, err := l.Last()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec(1), last)
}

func TestAppendAfterMalformedRowRewritesCleanLog(t *testing.T) {
	s := NewFakeStorage()
	s.Files[testPath] = []string{"2026-01-01 12:00:00, true", "junk", "2026-01-01 12:03:00, true"}
	l := newTestLog(s, 5)

	require.NoError(t, l.Append(rec(1)))
	assert.Equal(t, []string{"2026-01-01 12:00:00, true", "2026-01-01 12:01:00, false"}, s.Files[testPath])
}

func TestLoadTruncatesOversized(t *testing.T) {
	s := NewFakeStorage()
	for i := 0; i < 8; i++ {
		s.Files[testPath] = append(s.Files[testPath], logic.FormatRecord(rec(i)))
	}
	l := newTestLog(s, 5)

	records, err := l.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, []logic.Record{rec(3), rec(4), rec(5), rec(6), rec(7)}, records)
}

func TestReplaceLast(t *testing.T) {
	l := newTestLog(NewFakeStorage(), 5)

	require.NoError(t, l.ReplaceLast(rec(0)), "empty log appends")
	require.NoError(t, l.Append(rec(1)))
	require.NoError(t, l.ReplaceLast(rec(3)))

	records, err := l.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, []logic.Record{rec(0), rec(3)}, records)
}

func TestStorageErrors(t *testing.T) {
	s := NewFakeStorage()
	l := newTestLog(s, 5)
	require.NoError(t, l.Append(rec(0)))

	s.WriteError = errors.New("disk full")
	require.Error(t, l.Append(rec(1)))
	s.WriteError = nil

	records, err := l.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, []logic.Record{rec(0)}, records, "failed append leaves log unchanged")

	s.ReadError = errors.New("unmounted")
	_, _, err = l.Last()
	require.Error(t, err)
	require.Error(t, l.Append(rec(1)))
}

func TestFileStorageRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s, err := NewFileStorage(dir)
	require.NoError(t, err)

	lines, err := s.ReadAll(testPath)
	require.NoError(t, err)
	assert.Empty(t, lines, "missing file reads as empty")

	want := []string{"2026-01-01 12:00:00, true", "2026-01-01 12:01:00, false"}
	require.NoError(t, s.WriteAll(testPath, want))

	got, err := s.ReadAll(testPath)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	raw, err := os.ReadFile(filepath.Join(dir, testPath))
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01 12:00:00, true\n2026-01-01 12:01:00, false\n", string(raw))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileStorageDirSyncFailure(t *testing.T) {
	orig := syncDir
	t.Cleanup(func() { syncDir = orig })
	syncDir = func(string) error { return errors.New("fsync: input/output error") }

	s, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	err = s.WriteAll(testPath, []string{"2026-01-01 12:00:00, true"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist rename")

	err = newTestLog(s, 5).Append(rec(0))
	assert.Error(t, err, "append reports the unconfirmed write")
}

func TestFileStorageWithLog(t *testing.T) {
	s, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		require.NoError(t, newTestLog(s, 5).Append(rec(i)))
	}

	// Reopen as after a reboot.
	records, err := newTestLog(s, 5).LoadAll()
	require.NoError(t, err)
	assert.Equal(t, []logic.Record{rec(2), rec(3), rec(4), rec(5), rec(6)}, records)
}

func TestFileStorageCRLF(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, testPath), []byte("2026-01-01 12:00:00, true\r\n"), 0o644))

	s, err := NewFileStorage(dir)
	require.NoError(t, err)
	records, err := newTestLog(s, 5).LoadAll()
	require.NoError(t, err)
	assert.Equal(t, []logic.Record{rec(0)}, records)
}

func TestTail(t *testing.T) {
	s := NewFakeStorage()
	l := newTestLog(s, 5)

	tail, err := l.Tail()
	require.NoError(t, err)
	assert.Equal(t, Tail{}, tail, "empty log")

	require.NoError(t, l.Append(rec(0)))
	require.NoError(t, l.Append(rec(1)))
	tail, err = l.Tail()
	require.NoError(t, err)
	assert.True(t, tail.Clean)
	assert.Equal(t, "2026-01-01 12:01:00, false", tail.Last)
	assert.Equal(t, "2026-01-01 12:00:00, true", tail.Prev)
	assert.Equal(t, rec(1), tail.Record)
}

func TestTailKeepsMalformedLastRow(t *testing.T) {
	s := NewFakeStorage()
	s.Files[testPath] = []string{"2026-01-01 12:00:00, true", "2026-01-01 12:xx:00, false", ""}
	l := newTestLog(s, 5)

	tail, err := l.Tail()
	require.NoError(t, err)
	assert.False(t, tail.Clean)
	assert.Equal(t, "2026-01-01 12:xx:00, false", tail.Last, "trailing blank line skipped")
	assert.Equal(t, "2026-01-01 12:00:00, true", tail.Prev)
}

func TestTailNotCleanWhenEarlierRowMalformed(t *testing.T) {
	s := NewFakeStorage()
	s.Files[testPath] = []string{"junk", "2026-01-01 12:01:00, false"}

	tail, err := newTestLog(s, 5).Tail()
	require.NoError(t, err)
	assert.False(t, tail.Clean)
	assert.Equal(t, "2026-01-01 12:01:00, false", tail.Last)
}
