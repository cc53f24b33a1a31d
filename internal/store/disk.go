package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DiskStore keeps sample assets as sample<i>.wav files in one directory.
type DiskStore struct {
	dir      string
	count    int
	maxBytes int64
}

var _ Store = (*DiskStore)(nil)

// NewDiskStore creates the data directory if needed.
func NewDiskStore(dir string, count int, maxBytes int64) (*DiskStore, error) {
	if count < 1 {
		return nil, fmt.Errorf("sample count must be at least 1, got %d", count)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sample dir: %w", err)
	}
	return &DiskStore{dir: dir, count: count, maxBytes: maxBytes}, nil
}

// Count returns the number of sample slots.
func (s *DiskStore) Count() int {
	return s.count
}

func (s *DiskStore) path(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf("sample%d.wav", index))
}

// Exists reports whether an asset file is present for the index.
func (s *DiskStore) Exists(index int) bool {
	if index < 0 || index >= s.count {
		return false
	}
	_, err := os.Stat(s.path(index))
	return err == nil
}

// Path returns the asset file location.
func (s *DiskStore) Path(index int) (string, error) {
	if index < 0 || index >= s.count {
		return "", fmt.Errorf("index %d: %w", index, ErrBadIndex)
	}
	p := s.path(index)
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("sample %d: %w", index, ErrNotFound)
	}
	return p, nil
}

// BeginUpload stages a new asset as sample<i>.wav.partial. The declared
// size is checked against the per-sample limit and the free space before
// any byte is written; Write enforces the same limit on the actual data.
func (s *DiskStore) BeginUpload(index int, size int64) (Upload, error) {
	if index < 0 || index >= s.count {
		return nil, fmt.Errorf("index %d: %w", index, ErrBadIndex)
	}
	if size > s.maxBytes {
		return nil, fmt.Errorf("declared %d bytes, limit %d: %w", size, s.maxBytes, ErrTooLarge)
	}
	free, err := s.RemainingCapacity()
	if err != nil {
		return nil, fmt.Errorf("check capacity: %w", err)
	}
	if size > free {
		return nil, fmt.Errorf("declared %d bytes, %d free: %w", size, free, ErrTooLarge)
	}

	staged := s.path(index) + ".partial"
	f, err := os.Create(staged)
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	return &diskUpload{f: f, staged: staged, final: s.path(index), limit: s.maxBytes}, nil
}

// Remove deletes the asset for the index.
func (s *DiskStore) Remove(index int) error {
	if index < 0 || index >= s.count {
		return fmt.Errorf("index %d: %w", index, ErrBadIndex)
	}
	if err := os.Remove(s.path(index)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("sample %d: %w", index, ErrNotFound)
		}
		return fmt.Errorf("remove sample %d: %w", index, err)
	}
	return nil
}

// EnsureDefaults writes the built-in jingle into every empty slot.
func (s *DiskStore) EnsureDefaults() error {
	for i := 0; i < s.count; i++ {
		if s.Exists(i) {
			continue
		}
		if err := os.WriteFile(s.path(i), DefaultSample(i), 0o644); err != nil {
			return fmt.Errorf("write default sample %d: %w", i, err)
		}
	}
	return nil
}

// Reset removes every asset (and any stale staged upload) and restores
// the built-in defaults.
func (s *DiskStore) Reset() error {
	for i := 0; i < s.count; i++ {
		os.Remove(s.path(i) + ".partial")
		if err := os.Remove(s.path(i)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove sample %d: %w", i, err)
		}
	}
	return s.EnsureDefaults()
}

// diskUpload writes staged data and renames it over the asset on Commit.
type diskUpload struct {
	f       *os.File
	staged  string
	final   string
	limit   int64
	written int64
	done    bool
}

func (u *diskUpload) Write(p []byte) (int, error) {
	if u.written+int64(len(p)) > u.limit {
		return 0, fmt.Errorf("upload exceeds %d bytes: %w", u.limit, ErrTooLarge)
	}
	n, err := u.f.Write(p)
	u.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("write staged upload: %w", err)
	}
	return n, nil
}

func (u *diskUpload) Commit() error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.f.Close(); err != nil {
		os.Remove(u.staged)
		return fmt.Errorf("close staged upload: %w", err)
	}
	if err := os.Rename(u.staged, u.final); err != nil {
		os.Remove(u.staged)
		return fmt.Errorf("commit upload: %w", err)
	}
	return nil
}

func (u *diskUpload) Abort() error {
	if u.done {
		return nil
	}
	u.done = true
	u.f.Close()
	if err := os.Remove(u.staged); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("discard staged upload: %w", err)
	}
	return nil
}
