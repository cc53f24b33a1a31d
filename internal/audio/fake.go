package audio

import (
	"errors"
	"sync"
)

// FakeSink records playback requests for tests. A started playback stays
// active until FinishPlayback is called. The methods are safe to call
// from a test while a control loop polls the sink; direct field access
// is only safe in single-goroutine tests.
type FakeSink struct {
	mu sync.Mutex

	Playing bool
	Plays   []string
	Closed  bool

	// PlayError, when set, is returned by Play.
	PlayError error
}

var _ Sink = (*FakeSink)(nil)

// NewFakeSink creates an idle FakeSink.
func NewFakeSink() *FakeSink {
	return &FakeSink{}
}

// Play records the path and marks the sink playing.
func (f *FakeSink) Play(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PlayError != nil {
		return f.PlayError
	}
	if f.Playing {
		return errors.New("playback already running")
	}
	f.Plays = append(f.Plays, path)
	f.Playing = true
	return nil
}

// IsPlaying reports whether a playback is running.
func (f *FakeSink) IsPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Playing
}

// FinishPlayback ends the current playback.
func (f *FakeSink) FinishPlayback() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Playing = false
}

// Close marks the sink closed.
func (f *FakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	f.Playing = false
	return nil
}

// Reset clears all recorded state.
func (f *FakeSink) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Playing = false
	f.Plays = nil
	f.Closed = false
	f.PlayError = nil
}
