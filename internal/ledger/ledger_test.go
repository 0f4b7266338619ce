package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pingwatch/pkg/logx"
)

var testNow = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir(), logx.Nop(), WithClock(func() time.Time { return testNow }))
}

func date(daysAgo int) string {
	return testNow.AddDate(0, 0, -daysAgo).Format(DateFormat)
}

func TestMissingFileReadsEmpty(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	assert.False(t, s.WasDispatched(date(0), "09:00"))
	assert.False(t, s.RateLimited(testNow))

	// The backing file must not exist until the first successful mark.
	_, err := os.Stat(s.path())
	assert.True(t, os.IsNotExist(err))
}

func TestMarkAndReadBack(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, s.MarkDispatched(date(0), "09:00"))
	assert.True(t, s.WasDispatched(date(0), "09:00"))
	assert.False(t, s.WasDispatched(date(0), "14:00"))
	assert.False(t, s.WasDispatched(date(1), "09:00"))
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, s.MarkDispatched(date(0), "09:00"))
	require.NoError(t, s.MarkDispatched(date(0), "14:00"))
	require.NoError(t, s.MarkDispatched(date(1), "19:00"))

	// A fresh store over the same directory sees the identical mapping.
	s2 := New(s.dir, logx.Nop(), WithClock(func() time.Time { return testNow }))
	assert.True(t, s2.WasDispatched(date(0), "09:00"))
	assert.True(t, s2.WasDispatched(date(0), "14:00"))
	assert.True(t, s2.WasDispatched(date(1), "19:00"))
}

func TestMarkIdempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, s.MarkDispatched(date(0), "09:00"))
	before, err := os.ReadFile(s.path())
	require.NoError(t, err)

	require.NoError(t, s.MarkDispatched(date(0), "09:00"))
	after, err := os.ReadFile(s.path())
	require.NoError(t, err)

	assert.JSONEq(t, string(before), string(after))
	assert.True(t, s.WasDispatched(date(0), "09:00"))
}

func TestPruneRetention(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, s.MarkDispatched(date(8), "09:00"))
	require.NoError(t, s.MarkDispatched(date(3), "09:00"))
	require.NoError(t, s.MarkDispatched(date(0), "09:00"))

	// The 8-day-old entry was dropped by the last write; 3-day-old and
	// today survive.
	assert.False(t, s.WasDispatched(date(8), "09:00"))
	assert.True(t, s.WasDispatched(date(3), "09:00"))
	assert.True(t, s.WasDispatched(date(0), "09:00"))
}

func TestPruneKeepsSevenDayBoundary(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, s.MarkDispatched(date(7), "09:00"))
	require.NoError(t, s.MarkDispatched(date(0), "14:00"))

	assert.True(t, s.WasDispatched(date(7), "09:00"))
}

func TestRateLimited(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		key  string
		want bool
	}{
		{name: "45 minutes ago", key: "09:15", want: true},
		{name: "75 minutes ago", key: "08:45", want: false},
		{name: "exactly now", key: "10:00", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			require.NoError(t, s.MarkDispatched(date(0), tt.key))
			assert.Equal(t, tt.want, s.RateLimited(testNow))
		})
	}
}

func TestRateLimitedSkipsUnparseable(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(s.dir, 0o700))

	raw := Data{
		"not-a-date": {"09:00": true},
		date(0):      {"bogus": true},
	}
	b, err := json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.path(), b, 0o600))

	assert.False(t, s.RateLimited(testNow))
}

func TestCorruptionRecovery(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(s.dir, 0o700))
	require.NoError(t, os.WriteFile(s.path(), []byte("{not json"), 0o600))

	// Reads fail open.
	assert.False(t, s.WasDispatched(date(0), "09:00"))

	// The bad file was moved aside, not deleted.
	_, err := os.Stat(s.path() + ".backup")
	require.NoError(t, err)

	// A write after recovery starts from an empty ledger.
	require.NoError(t, s.MarkDispatched(date(0), "09:00"))
	assert.True(t, s.WasDispatched(date(0), "09:00"))
}

func TestConcurrentMarksLoseNothing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("%02d:00", i)
			errs[i] = s.MarkDispatched(date(0), key)
		}()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.True(t, s.WasDispatched(date(0), fmt.Sprintf("%02d:00", i)), "lost key %02d:00", i)
	}
}

func TestFilePermissionsAndLockCleanup(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, s.MarkDispatched(date(0), "09:00"))

	fi, err := os.Stat(s.path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	// Lock file is removed after release.
	_, err = os.Stat(s.lockPath())
	assert.True(t, os.IsNotExist(err))

	// No stray temp files left behind.
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestWriteFailureIsErrWrite(t *testing.T) {
	t.Parallel()
	// Point the store at a path whose parent cannot be created.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	s := New(filepath.Join(blocker, "state"), logx.Nop())
	err := s.MarkDispatched(date(0), "09:00")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrite)
}
