package store

import (
	"bytes"
	"fmt"
)

// FakeStore is an in-memory Store for tests. It applies the same
// validation as DiskStore and starts with every slot prefilled by its
// built-in jingle.
type FakeStore struct {
	Slots    int
	MaxBytes int64
	Free     int64

	// Samples holds the committed asset bytes per index.
	Samples map[int][]byte

	RemovedIndices []int
	DefaultsCalls  int
	ResetCalls     int

	// Error injection for testing failure paths.
	BeginUploadError error
	CapacityError    error
	ResetError       error
}

var _ Store = (*FakeStore)(nil)

// NewFakeStore creates a FakeStore with all slots filled.
func NewFakeStore(slots int) *FakeStore {
	f := &FakeStore{
		Slots:    slots,
		MaxBytes: 80000,
		Free:     1 << 20,
		Samples:  make(map[int][]byte),
	}
	for i := 0; i < slots; i++ {
		f.Samples[i] = DefaultSample(i)
	}
	return f
}

// Count returns the number of sample slots.
func (f *FakeStore) Count() int {
	return f.Slots
}

// Exists reports whether an asset is present for the index.
func (f *FakeStore) Exists(index int) bool {
	_, ok := f.Samples[index]
	return ok
}

// Path returns a synthetic location for the asset.
func (f *FakeStore) Path(index int) (string, error) {
	if index < 0 || index >= f.Slots {
		return "", fmt.Errorf("index %d: %w", index, ErrBadIndex)
	}
	if !f.Exists(index) {
		return "", fmt.Errorf("sample %d: %w", index, ErrNotFound)
	}
	return fmt.Sprintf("fake://sample%d.wav", index), nil
}

// BeginUpload validates like DiskStore and stages an in-memory upload.
func (f *FakeStore) BeginUpload(index int, size int64) (Upload, error) {
	if f.BeginUploadError != nil {
		return nil, f.BeginUploadError
	}
	if index < 0 || index >= f.Slots {
		return nil, fmt.Errorf("index %d: %w", index, ErrBadIndex)
	}
	if size > f.MaxBytes {
		return nil, fmt.Errorf("declared %d bytes, limit %d: %w", size, f.MaxBytes, ErrTooLarge)
	}
	if size > f.Free {
		return nil, fmt.Errorf("declared %d bytes, %d free: %w", size, f.Free, ErrTooLarge)
	}
	return &fakeUpload{store: f, index: index}, nil
}

// Remove deletes the asset and records the index.
func (f *FakeStore) Remove(index int) error {
	if index < 0 || index >= f.Slots {
		return fmt.Errorf("index %d: %w", index, ErrBadIndex)
	}
	if !f.Exists(index) {
		return fmt.Errorf("sample %d: %w", index, ErrNotFound)
	}
	delete(f.Samples, index)
	f.RemovedIndices = append(f.RemovedIndices, index)
	return nil
}

// RemainingCapacity returns Free or the injected error.
func (f *FakeStore) RemainingCapacity() (int64, error) {
	if f.CapacityError != nil {
		return 0, f.CapacityError
	}
	return f.Free, nil
}

// EnsureDefaults fills empty slots with the built-in jingles.
func (f *FakeStore) EnsureDefaults() error {
	f.DefaultsCalls++
	for i := 0; i < f.Slots; i++ {
		if _, ok := f.Samples[i]; !ok {
			f.Samples[i] = DefaultSample(i)
		}
	}
	return nil
}

// Reset wipes all assets and restores the defaults.
func (f *FakeStore) Reset() error {
	f.ResetCalls++
	if f.ResetError != nil {
		return f.ResetError
	}
	f.Samples = make(map[int][]byte)
	return f.EnsureDefaults()
}

type fakeUpload struct {
	store *FakeStore
	index int
	buf   bytes.Buffer
	done  bool
}

func (u *fakeUpload) Write(p []byte) (int, error) {
	if int64(u.buf.Len()+len(p)) > u.store.MaxBytes {
		return 0, fmt.Errorf("upload exceeds %d bytes: %w", u.store.MaxBytes, ErrTooLarge)
	}
	return u.buf.Write(p)
}

func (u *fakeUpload) Commit() error {
	if u.done {
		return nil
	}
	u.done = true
	u.store.Samples[u.index] = append([]byte(nil), u.buf.Bytes()...)
	return nil
}

func (u *fakeUpload) Abort() error {
	u.done = true
	return nil
}
