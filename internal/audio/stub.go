//go:build !linux || !cgo

package audio

import (
	"context"
	"errors"
)

// GstSink requires linux; this stub lets non-linux builds compile.
type GstSink struct{}

func NewGstSink() (*GstSink, error) {
	return nil, errors.New("audio playback requires linux")
}

func (s *GstSink) Play(path string) error {
	return errors.New("audio playback requires linux")
}

func (s *GstSink) IsPlaying() bool { return false }

func (s *GstSink) Service(ctx context.Context) {}

func (s *GstSink) Close() error { return nil }
