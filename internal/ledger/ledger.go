// Package ledger is the durable record of which (date, window) pairs have
// already been dispatched. It is the only shared state between invocations:
// any number of processes may read or write the backing file concurrently,
// so every write is serialized under an exclusive advisory lock and lands
// via atomic rename. Reads are lock-free; they may be slightly stale but
// can never observe a torn write.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"pingwatch/pkg/logx"
)

const (
	ledgerFileName = "dispatches.json"

	// retentionDays bounds how far back entries are kept. Pruning compares
	// date strings lexically, which is safe for the YYYY-MM-DD format.
	retentionDays = 7
)

// DateFormat is the ledger's top-level key format.
const DateFormat = "2006-01-02"

// ErrWrite marks a failed ledger write. After ErrWrite the dispatch state
// of the window is unknown: callers must not retry-dispatch it.
var ErrWrite = errors.New("ledger write failed")

// Data is the on-disk shape: date -> "HH:MM" -> dispatched.
type Data map[string]map[string]bool

// Store reads and writes the dispatch ledger confined to a single state
// directory.
type Store struct {
	dir string
	log logx.Logger
	now func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock substitutes the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store rooted at dir. The directory and the ledger file are
// created lazily on the first successful MarkDispatched.
func New(dir string, log logx.Logger, opts ...Option) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Store{dir: dir, log: log, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) path() string     { return filepath.Join(s.dir, ledgerFileName) }
func (s *Store) lockPath() string { return s.path() + ".lock" }

// WasDispatched reports whether the (date, timeKey) window was already
// dispatched. Reads fail open: a missing or unreadable file reads as an
// empty ledger and never blocks scheduling.
func (s *Store) WasDispatched(date, timeKey string) bool {
	return s.read()[date][timeKey]
}

// RateLimited reports whether any dispatched entry, parsed back into a
// timestamp, falls within the trailing hour of now. Unparseable entries
// are skipped.
func (s *Store) RateLimited(now time.Time) bool {
	cutoff := now.Add(-time.Hour)
	for date, times := range s.read() {
		for key, sent := range times {
			if !sent {
				continue
			}
			ts, err := time.ParseInLocation(DateFormat+" 15:04", date+" "+key, now.Location())
			if err != nil {
				continue
			}
			if ts.After(cutoff) {
				return true
			}
		}
	}
	return false
}

// MarkDispatched records the (date, timeKey) window as dispatched.
//
// The whole read-recover-modify-prune-write cycle runs under an exclusive
// advisory lock so concurrent markers from independent processes never
// lose updates. The new content is written to a temp file in the same
// directory, synced, chmodded to 0600 and atomically renamed over the
// ledger. Failures are reported as ErrWrite.
func (s *Store) MarkDispatched(date, timeKey string) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("%w: create state dir: %v", ErrWrite, err)
	}

	lock, err := s.acquireLock()
	if err != nil {
		return fmt.Errorf("%w: acquire lock: %v", ErrWrite, err)
	}
	defer s.releaseLock(lock)

	data := s.read()
	if data[date] == nil {
		data[date] = map[string]bool{}
	}
	data[date][timeKey] = true

	s.prune(data)

	if err := s.writeLocked(data); err != nil {
		s.log.Error("ledger write failed", logx.Err(err), logx.String("path", s.path()))
		return err
	}
	return nil
}

// acquireLock takes an exclusive flock on the adjacent lock file, blocking
// until available.
//
// Because releaseLock unlinks the lock file, a waiter can end up holding a
// lock on an inode that is no longer reachable by path, which would not
// exclude the next creator. After acquiring, the fd is compared against a
// fresh stat of the path and the acquisition retried if they diverge.
func (s *Store) acquireLock() (*os.File, error) {
	for {
		f, err := os.OpenFile(s.lockPath(), os.O_CREATE|os.O_RDWR, 0o600)
		if err != nil {
			return nil, err
		}
		if err := flockExclusive(int(f.Fd())); err != nil {
			_ = f.Close()
			return nil, err
		}
		fi, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		pi, err := os.Stat(s.lockPath())
		if err == nil && os.SameFile(fi, pi) {
			return f, nil
		}
		// The file was unlinked (and possibly recreated) while we waited.
		_ = f.Close()
	}
}

// releaseLock unlinks the lock file while still holding the lock, then
// releases it. Unlinking first keeps the protocol sound: any waiter on the
// old inode notices the path changed and retries on the fresh file.
func (s *Store) releaseLock(f *os.File) {
	// Best effort; a leaked lock file is recreated on demand.
	_ = os.Remove(s.lockPath())
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	_ = f.Close()
}

func flockExclusive(fd int) error {
	for {
		err := unix.Flock(fd, unix.LOCK_EX)
		if err != unix.EINTR {
			return err
		}
	}
}

// read loads the ledger, recovering from corruption by renaming the bad
// file aside and treating the ledger as empty for this call.
func (s *Store) read() Data {
	b, err := os.ReadFile(s.path())
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Error("ledger read failed", logx.Err(err), logx.String("path", s.path()))
		}
		return Data{}
	}

	var data Data
	if err := json.Unmarshal(b, &data); err != nil {
		s.log.Error("corrupted ledger", logx.Err(err), logx.String("path", s.path()))
		backup := s.path() + ".backup"
		if rerr := os.Rename(s.path(), backup); rerr != nil {
			s.log.Error("ledger backup failed", logx.Err(rerr))
		} else {
			s.log.Info("corrupted ledger moved aside", logx.String("backup", backup))
		}
		return Data{}
	}
	if data == nil {
		return Data{}
	}
	return data
}

// prune drops dates older than the retention window. The cutoff is
// retentionDays before now, so today's entries are never removed.
func (s *Store) prune(data Data) {
	cutoff := s.now().AddDate(0, 0, -retentionDays).Format(DateFormat)
	for date := range data {
		if date < cutoff {
			delete(data, date)
		}
	}
}

func (s *Store) writeLocked(data Data) error {
	tmp, err := os.CreateTemp(s.dir, ".dispatches_*.json.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", ErrWrite, err)
	}
	tmpPath := tmp.Name()

	cleanup := func() { _ = os.Remove(tmpPath) }

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: marshal: %v", ErrWrite, err)
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: write temp: %v", ErrWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: sync: %v", ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: close temp: %v", ErrWrite, err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		cleanup()
		return fmt.Errorf("%w: chmod: %v", ErrWrite, err)
	}
	if err := os.Rename(tmpPath, s.path()); err != nil {
		cleanup()
		return fmt.Errorf("%w: rename: %v", ErrWrite, err)
	}
	return nil
}
