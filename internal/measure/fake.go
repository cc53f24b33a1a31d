package measure

import "time"

// FakeStreamer records pushed readings for tests. Readings pushed while
// the streamer is stopped are dropped, like the real transports.
type FakeStreamer struct {
	Started bool
	Stopped bool
	Pushed  []uint16

	// StartError, when set, is returned by Start.
	StartError error
}

var _ Streamer = (*FakeStreamer)(nil)

// NewFakeStreamer creates a stopped FakeStreamer.
func NewFakeStreamer() *FakeStreamer {
	return &FakeStreamer{}
}

// Start marks the streamer running.
func (f *FakeStreamer) Start() error {
	if f.StartError != nil {
		return f.StartError
	}
	f.Started = true
	return nil
}

// Push records the reading while running.
func (f *FakeStreamer) Push(raw uint16, now time.Time) {
	if !f.Started {
		return
	}
	f.Pushed = append(f.Pushed, raw)
}

// Stop marks the streamer stopped.
func (f *FakeStreamer) Stop() error {
	f.Started = false
	f.Stopped = true
	return nil
}

// Reset clears all recorded state.
func (f *FakeStreamer) Reset() {
	f.Started = false
	f.Stopped = false
	f.Pushed = nil
	f.StartError = nil
}
