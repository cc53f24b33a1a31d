// Package audio plays the WAV sample assets. The real sink drives a
// GStreamer pipeline on the device; tests use the fake.
package audio

// Sink plays one asset at a time.
type Sink interface {
	// Play starts asynchronous playback of the asset at path. Starting
	// a playback while one is running is an error.
	Play(path string) error

	// IsPlaying reports whether playback is currently running.
	IsPlaying() bool

	// Close stops playback and releases the output device.
	Close() error
}
