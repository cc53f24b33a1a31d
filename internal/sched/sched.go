// Package sched contains the device mode scheduler, the single-threaded
// control loop at the heart of the coinbox daemon. The loop owns the spike
// detector, the sample selector and every piece of hardware state; HTTP
// handlers and other goroutines talk to it exclusively through a request
// queue, so no mode transition ever races a detector step.
package sched

import (
	"errors"
	"fmt"
	"time"

	"github.com/TuDo-Makerspace/Coinbox/internal/audio"
	"github.com/TuDo-Makerspace/Coinbox/internal/events"
	"github.com/TuDo-Makerspace/Coinbox/internal/gpio"
	"github.com/TuDo-Makerspace/Coinbox/internal/logic"
	"github.com/TuDo-Makerspace/Coinbox/internal/measure"
	"github.com/TuDo-Makerspace/Coinbox/internal/netctl"
	"github.com/TuDo-Makerspace/Coinbox/internal/power"
	"github.com/TuDo-Makerspace/Coinbox/internal/ringlog"
	"github.com/TuDo-Makerspace/Coinbox/internal/sensor"
	"github.com/TuDo-Makerspace/Coinbox/internal/status"
	"github.com/TuDo-Makerspace/Coinbox/internal/store"
)

// Mode is the device operating mode.
type Mode int

const (
	// ModeBoot suppresses all sensor input for a grace period after
	// startup, giving an operator a guaranteed window to reach CONFIG
	// before any coin can trigger normal operation.
	ModeBoot Mode = iota

	// ModeReady is normal operation before the first coin. Networking
	// and the configuration surface are still up.
	ModeReady

	// ModeNormal is normal operation after the first coin. Networking
	// is torn down and only comes back via the reactivation timer.
	ModeNormal

	// ModeConfig serves sample uploads and device settings. The
	// detector does not tick.
	ModeConfig

	// ModeMeasure streams raw sensor readings to the telemetry sinks
	// for threshold calibration.
	ModeMeasure

	// ModeRestart quiesces all subsystems and reboots the device after
	// a short grace delay.
	ModeRestart
)

func (m Mode) String() string {
	switch m {
	case ModeBoot:
		return "BOOT"
	case ModeReady:
		return "READY"
	case ModeNormal:
		return "NORMAL"
	case ModeConfig:
		return "CONFIG"
	case ModeMeasure:
		return "MEASURE"
	case ModeRestart:
		return "RESTART"
	default:
		return fmt.Sprintf("MODE(%d)", int(m))
	}
}

var (
	// ErrWrongMode rejects a request the current device mode forbids.
	ErrWrongMode = errors.New("wrong mode for request")

	// ErrBusy rejects a playback request while another sample plays.
	ErrBusy = errors.New("playback already running")

	// ErrShuttingDown rejects requests once the control loop has
	// stopped draining the queue.
	ErrShuttingDown = errors.New("daemon is shutting down")
)

type reqKind int

const (
	reqEnterConfig reqKind = iota
	reqEnterMeasure
	reqRestart
	reqResetSamples
	reqPlaySample
	reqBeginUpload
)

// request travels from an HTTP handler into the control loop. The loop
// answers exactly once on reply.
type request struct {
	kind  reqKind
	index int
	size  int64
	reply chan response
}

type response struct {
	upload store.Upload
	err    error
}

// Config carries the scheduler timing knobs. Durations of zero or below
// disable the reactivation timer and the heartbeat; the other fields
// accept zero as an immediate deadline.
type Config struct {
	// BootGrace is how long after startup sensor input stays suppressed.
	BootGrace time.Duration

	// ConfigTimeout forces RESTART after this much CONFIG inactivity.
	ConfigTimeout time.Duration

	// Reactivate brings networking back this long after the last coin.
	Reactivate time.Duration

	// RestartGrace is the quiesce delay before the device resets.
	RestartGrace time.Duration

	// Cooldown is both the coin debounce window and the quiet period
	// after playback before the detector resumes.
	Cooldown time.Duration

	// Heartbeat is the interval between heartbeat events.
	Heartbeat time.Duration
}

// Deps are the collaborators the scheduler drives. Sensor, Detector,
// Selector, Sink, Store and Restarter must be set; everything else may be
// nil and is skipped.
type Deps struct {
	Sensor    sensor.Source
	Detector  *logic.Detector
	Selector  *logic.Selector
	Sink      audio.Sink
	Amp       gpio.Switch
	Store     store.Store
	Events    events.Publisher
	ConnState events.ConnectionStatus
	Network   netctl.Controller
	Telemetry measure.Streamer
	Tracker   *status.Tracker
	Restarter power.Restarter
	RawRing   *ringlog.Values
	AvgRing   *ringlog.Values
}

// Scheduler owns all loop state. Only the goroutine running Run touches
// the mutable fields; concurrent access happens through the request
// queue and through the collaborators that are safe by themselves.
type Scheduler struct {
	cfg  Config
	deps Deps

	requests chan request
	done     chan struct{}

	mode          Mode
	startTime     time.Time
	bootUntil     time.Time
	configUntil   time.Time
	restartAt     time.Time
	lastCoin      time.Time
	cooldownUntil time.Time
	reactivateAt  time.Time
	nextHeartbeat time.Time
	wasPlaying    bool
	coins         int
}

// New creates a scheduler. Run must be called before any request method.
func New(cfg Config, deps Deps) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		deps:     deps,
		requests: make(chan request, 16),
		done:     make(chan struct{}),
		mode:     ModeBoot,
	}
}

// EnterConfig moves the device into CONFIG mode, or refreshes the
// inactivity timeout when already there.
func (s *Scheduler) EnterConfig() error {
	return s.submit(request{kind: reqEnterConfig}).err
}

// EnterMeasure moves the device into MEASURE mode.
func (s *Scheduler) EnterMeasure() error {
	return s.submit(request{kind: reqEnterMeasure}).err
}

// Restart moves the device into RESTART mode. The reset itself fires
// after the configured grace delay, once playback has drained.
func (s *Scheduler) Restart() error {
	return s.submit(request{kind: reqRestart}).err
}

// ResetSamples restores the built-in default samples. CONFIG only.
func (s *Scheduler) ResetSamples() error {
	return s.submit(request{kind: reqResetSamples}).err
}

// PlaySample starts playback of the given sample slot.
func (s *Scheduler) PlaySample(index int) error {
	return s.submit(request{kind: reqPlaySample, index: index}).err
}

// BeginUpload stages a sample upload. CONFIG only. The caller streams
// the body into the returned handle and commits or aborts it without
// further involvement of the control loop.
func (s *Scheduler) BeginUpload(index int, size int64) (store.Upload, error) {
	resp := s.submit(request{kind: reqBeginUpload, index: index, size: size})
	return resp.upload, resp.err
}

// Coins returns the number of coins accepted since startup. Only
// meaningful once Run has exited; live counts come from the tracker.
func (s *Scheduler) Coins() int {
	return s.coins
}

func (s *Scheduler) submit(r request) response {
	r.reply = make(chan response, 1)
	select {
	case s.requests <- r:
	case <-s.done:
		return response{err: ErrShuttingDown}
	}
	select {
	case resp := <-r.reply:
		return resp
	case <-s.done:
		return response{err: ErrShuttingDown}
	}
}
