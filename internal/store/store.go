package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Common store errors.
var (
	ErrNotFound  = errors.New("batch not found")
	ErrExpired   = errors.New("batch expired")
	ErrInvalidID = errors.New("invalid batch id")
)

// Store persists run records.
type Store interface {
	Load(ctx context.Context, id string) (*Record, error)
	Save(ctx context.Context, r *Record) error
	// Delete is idempotent.
	Delete(ctx context.Context, id string) error
	// List returns every unexpired record, newest first.
	List(ctx context.Context) ([]*Record, error)
	// CleanupExpired removes expired records and reports how many.
	CleanupExpired(ctx context.Context) (int, error)
	// Lock serializes work on one record across every process sharing the
	// store. It fails with ErrLocked while another holder owns the record.
	Lock(ctx context.Context, id string) (Unlock, error)
	Close() error
}

// ValidateID rejects ids that are empty or could escape the store.
func ValidateID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\:.`) || strings.TrimSpace(id) != id {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// sortNewestFirst orders records by creation time, newest first, then id.
func sortNewestFirst(records []*Record) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID > records[j].ID
	})
}

// FileStore keeps one file per run in a directory. It is safe for concurrent
// use within a process.
type FileStore struct {
	directory string
	codec     Codec

	mu sync.RWMutex
}

// NewFileStore creates the directory if needed.
func NewFileStore(directory string, codec Codec) (*FileStore, error) {
	if directory == "" {
		return nil, errors.New("state directory cannot be empty")
	}
	if codec == nil {
		codec = JSONCodec{}
	}
	if err := os.MkdirAll(directory, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{directory: directory, codec: codec}, nil
}

// Directory returns the state directory.
func (s *FileStore) Directory() string {
	return s.directory
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.directory, id+s.codec.Extension())
}

// Load reads the record of id. Expired records are removed and reported as
// ErrExpired.
func (s *FileStore) Load(_ context.Context, id string) (*Record, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	r, err := s.read(s.path(id))
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if r.IsExpired() {
		s.mu.Lock()
		_ = os.Remove(s.path(id))
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrExpired, id)
	}
	return r, nil
}

func (s *FileStore) read(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSuffix(filepath.Base(path), s.codec.Extension()))
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	var r Record
	if err := s.codec.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Save writes r atomically: to a temporary file first, then renamed over the
// previous version.
func (s *FileStore) Save(_ context.Context, r *Record) error {
	if r == nil {
		return errors.New("record cannot be nil")
	}
	if err := ValidateID(r.ID); err != nil {
		return err
	}
	data, err := s.codec.Marshal(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filePath := s.path(r.ID)
	tempPath := filePath + ".tmp"
	if writeErr := os.WriteFile(tempPath, data, 0o600); writeErr != nil {
		return fmt.Errorf("failed to write state file: %w", writeErr)
	}
	if renameErr := os.Rename(tempPath, filePath); renameErr != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename state file: %w", renameErr)
	}
	return nil
}

// Delete removes the record of id.
func (s *FileStore) Delete(_ context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete state file: %w", err)
	}
	return nil
}

// List implements Store.
func (s *FileStore) List(_ context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*Record
	err := s.walk(func(_ string, r *Record) {
		if !r.IsExpired() {
			records = append(records, r)
		}
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(records)
	return records, nil
}

// CleanupExpired implements Store.
func (s *FileStore) CleanupExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	err := s.walk(func(path string, r *Record) {
		if r.IsExpired() && os.Remove(path) == nil {
			removed++
		}
	})
	return removed, err
}

// walk visits every readable record file. Unreadable files are skipped.
func (s *FileStore) walk(fn func(path string, r *Record)) error {
	entries, err := os.ReadDir(s.directory)
	if err != nil {
		return fmt.Errorf("failed to read state directory: %w", err)
	}
	ext := s.codec.Extension()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		path := filepath.Join(s.directory, entry.Name())
		r, readErr := s.read(path)
		if readErr != nil {
			continue
		}
		fn(path, r)
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}
