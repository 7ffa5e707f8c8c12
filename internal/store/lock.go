package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gocloud.dev/gcerrors"

	"github.com/rshade/bulkops/internal/logging"
)

// ErrLocked is returned by Lock while another holder owns the record.
var ErrLocked = errors.New("batch is locked")

// LockTTL is how long a lock is honored. A lock older than this was left by
// a holder that died mid-step and is taken over.
const LockTTL = 15 * time.Minute

const lockExtension = ".lock"

// Unlock releases a lock taken with Lock.
type Unlock func() error

// lease is the content of a lock file or object.
type lease struct {
	Owner      string    `json:"owner"`
	AcquiredAt time.Time `json:"acquired_at"`
}

func newLease() lease {
	return lease{Owner: logging.NewID(), AcquiredAt: time.Now().UTC()}
}

func (l lease) stale(now time.Time) bool {
	return now.Sub(l.AcquiredAt) > LockTTL
}

func readLease(data []byte) (lease, bool) {
	var l lease
	if err := json.Unmarshal(data, &l); err != nil || l.Owner == "" {
		return lease{}, false
	}
	return l, true
}

// Lock takes the lock of id. Exclusive creation of "<id>.lock" makes the lock
// hold across every process sharing the directory.
func (s *FileStore) Lock(_ context.Context, id string) (Unlock, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	path := filepath.Join(s.directory, id+lockExtension)
	l := newLease()
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal lock: %w", err)
	}

	for range 2 {
		f, openErr := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if openErr == nil {
			_, writeErr := f.Write(data)
			closeErr := f.Close()
			if err := errors.Join(writeErr, closeErr); err != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("failed to write lock file: %w", err)
			}
			return func() error { return s.unlock(path, l.Owner) }, nil
		}
		if !os.IsExist(openErr) {
			return nil, fmt.Errorf("failed to create lock file: %w", openErr)
		}
		if !s.staleLock(path) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, id)
		}
		_ = os.Remove(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrLocked, id)
}

// staleLock treats unreadable lock files by their age.
func (s *FileStore) staleLock(path string) bool {
	now := time.Now()
	data, err := os.ReadFile(path)
	if err != nil {
		return os.IsNotExist(err)
	}
	if l, ok := readLease(data); ok {
		return l.stale(now)
	}
	info, err := os.Stat(path)
	return err == nil && now.Sub(info.ModTime()) > LockTTL
}

func (s *FileStore) unlock(path, owner string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read lock file: %w", err)
	}
	if l, ok := readLease(data); ok && l.Owner != owner {
		// Taken over after going stale; the new holder owns it now.
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// Lock takes the lock of id by writing a lease object and reading it back.
// Buckets without conditional writes cannot make this atomic, so two hosts
// racing within one write round trip may both win.
func (s *BlobStore) Lock(ctx context.Context, id string) (Unlock, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	key := s.prefix + id + lockExtension

	current, err := s.bucket.ReadAll(ctx, key)
	switch {
	case err == nil:
		if l, ok := readLease(current); ok && !l.stale(time.Now()) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, id)
		}
	case gcerrors.Code(err) != gcerrors.NotFound:
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	l := newLease()
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal lock: %w", err)
	}
	if err := s.bucket.WriteAll(ctx, key, data, nil); err != nil {
		return nil, fmt.Errorf("write %s: %w", key, err)
	}
	back, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if got, ok := readLease(back); !ok || got.Owner != l.Owner {
		return nil, fmt.Errorf("%w: %s", ErrLocked, id)
	}

	return func() error {
		// The caller's context may be done by now.
		rctx := context.WithoutCancel(ctx)
		held, readErr := s.bucket.ReadAll(rctx, key)
		if readErr != nil {
			if gcerrors.Code(readErr) == gcerrors.NotFound {
				return nil
			}
			return fmt.Errorf("read %s: %w", key, readErr)
		}
		if got, ok := readLease(held); ok && got.Owner != l.Owner {
			return nil
		}
		if delErr := s.bucket.Delete(rctx, key); delErr != nil && gcerrors.Code(delErr) != gcerrors.NotFound {
			return fmt.Errorf("delete %s: %w", key, delErr)
		}
		return nil
	}, nil
}
