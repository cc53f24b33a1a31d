// Package measure streams raw sensor readings to debugging clients
// while the device is in measurement mode.
package measure

import (
	"errors"
	"time"
)

// Streamer forwards raw readings to an attached debugging client.
type Streamer interface {
	// Start begins accepting clients. Calling Start on a running
	// streamer is a no-op.
	Start() error

	// Push offers one raw reading. The streamer decides whether and
	// where to send it; Push never blocks the caller.
	Push(raw uint16, now time.Time)

	// Stop releases the transport and forgets the client.
	Stop() error
}

// Multi fans readings out to several streamers.
type Multi []Streamer

var _ Streamer = (Multi)(nil)

// Start starts every streamer. Streamers that started stay running even
// when a later one fails.
func (m Multi) Start() error {
	var errs []error
	for _, s := range m {
		if err := s.Start(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Push forwards the reading to every streamer.
func (m Multi) Push(raw uint16, now time.Time) {
	for _, s := range m {
		s.Push(raw, now)
	}
}

// Stop stops every streamer.
func (m Multi) Stop() error {
	var errs []error
	for _, s := range m {
		if err := s.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
