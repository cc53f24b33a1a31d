//go:build linux && cgo

package audio

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
)

// GstSink plays WAV files through a GStreamer pipeline:
//
//	filesrc → wavparse → audioconvert → audioresample → autoaudiosink
//
// Service must run alongside to pump the pipeline bus; playback ends on
// EOS or a pipeline error.
type GstSink struct {
	mu       sync.Mutex
	pipeline *gst.Pipeline
	filesrc  *gst.Element
	playing  bool
}

var _ Sink = (*GstSink)(nil)

// NewGstSink builds the playback pipeline. It stays in NULL state until
// the first Play.
func NewGstSink() (*GstSink, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	filesrc, err := gst.NewElement("filesrc")
	if err != nil {
		return nil, fmt.Errorf("create filesrc: %w", err)
	}
	wavparse, err := gst.NewElement("wavparse")
	if err != nil {
		return nil, fmt.Errorf("create wavparse: %w", err)
	}
	convert, err := gst.NewElement("audioconvert")
	if err != nil {
		return nil, fmt.Errorf("create audioconvert: %w", err)
	}
	resample, err := gst.NewElement("audioresample")
	if err != nil {
		return nil, fmt.Errorf("create audioresample: %w", err)
	}
	out, err := gst.NewElement("autoaudiosink")
	if err != nil {
		return nil, fmt.Errorf("create autoaudiosink: %w", err)
	}

	pipeline.AddMany(filesrc, wavparse, convert, resample, out)
	if err := gst.ElementLinkMany(filesrc, wavparse, convert, resample, out); err != nil {
		return nil, fmt.Errorf("link pipeline elements: %w", err)
	}

	return &GstSink{pipeline: pipeline, filesrc: filesrc}, nil
}

// Play points the pipeline at path and starts it.
func (s *GstSink) Play(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		return fmt.Errorf("playback already running")
	}
	// filesrc only accepts a new location in NULL state.
	if err := s.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("reset pipeline: %w", err)
	}
	s.filesrc.SetProperty("location", path)
	if err := s.pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	s.playing = true
	return nil
}

// IsPlaying reports whether a playback is running.
func (s *GstSink) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Service pumps the pipeline bus until ctx is cancelled.
func (s *GstSink) Service(ctx context.Context) {
	bus := s.pipeline.GetPipelineBus()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			s.finish()
		case gst.MessageError:
			gerr := msg.ParseError()
			log.Printf("audio: pipeline error: %s (%s)", gerr.Error(), gerr.DebugString())
			s.finish()
		}
	}
}

func (s *GstSink) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pipeline.SetState(gst.StateNull); err != nil {
		log.Printf("audio: stop pipeline: %v", err)
	}
	s.playing = false
}

// Close stops playback and releases the pipeline.
func (s *GstSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	if err := s.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("stop pipeline: %w", err)
	}
	return nil
}
