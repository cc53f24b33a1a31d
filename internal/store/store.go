// Package store persists the playable sample assets. The real
// implementation keeps one WAV file per sample index in a data directory;
// missing indices are filled from built-in jingles so playback always has
// something to play.
package store

import (
	"errors"
	"io"
)

// Sentinel errors surfaced to requesters.
var (
	// ErrBadIndex means the sample index is outside [0, Count).
	ErrBadIndex = errors.New("sample index out of range")
	// ErrNotFound means no asset exists for the index.
	ErrNotFound = errors.New("sample not found")
	// ErrTooLarge means an upload exceeds the per-sample limit or the
	// remaining capacity.
	ErrTooLarge = errors.New("sample too large")
)

// Store provides access to the sample assets.
type Store interface {
	// Count returns the number of sample slots.
	Count() int

	// Exists reports whether an asset is present for the index.
	Exists(index int) bool

	// Path returns the playable location of the asset.
	// Returns ErrBadIndex or ErrNotFound.
	Path(index int) (string, error)

	// BeginUpload validates index, declared size and remaining capacity,
	// then stages a new asset. The staged data only replaces the old
	// asset on Commit.
	BeginUpload(index int, size int64) (Upload, error)

	// Remove deletes the asset for the index.
	Remove(index int) error

	// RemainingCapacity returns the free bytes available for uploads.
	RemainingCapacity() (int64, error)

	// EnsureDefaults writes the built-in jingle into every empty slot.
	EnsureDefaults() error

	// Reset removes all assets and restores the built-in defaults.
	Reset() error
}

// Upload is a staged asset write.
type Upload interface {
	io.Writer

	// Commit atomically replaces the asset with the staged data.
	Commit() error

	// Abort discards the staged data.
	Abort() error
}
