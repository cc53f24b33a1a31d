package sched

import (
	"fmt"
	"log"
	"os"
	"syscall"
	"time"

	"github.com/TuDo-Makerspace/Coinbox/internal/events"
	"github.com/TuDo-Makerspace/Coinbox/internal/store"
)

// Run drives the control loop until a shutdown signal arrives or the
// restarter fires. Each tick drains the request queue, services the
// current mode and refreshes the status tracker. now is injected so
// tests can control time.
func (s *Scheduler) Run(now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	defer close(s.done)

	s.begin(now())

	for {
		select {
		case sg := <-sig:
			s.shutdown(now(), sg)
			return nil
		case <-tick:
			t := now()
			s.drainRequests(t)
			if s.step(t) {
				return nil
			}
			s.updateTracker(t)
		}
	}
}

// begin initializes loop state at the first observed time.
func (s *Scheduler) begin(t time.Time) {
	s.startTime = t
	s.mode = ModeBoot
	s.bootUntil = t.Add(s.cfg.BootGrace)
	if s.cfg.Heartbeat > 0 {
		s.nextHeartbeat = t.Add(s.cfg.Heartbeat)
	}
	log.Printf("sched: boot grace, ignoring sensor input for %v", s.cfg.BootGrace)
}

func (s *Scheduler) shutdown(t time.Time, sg os.Signal) {
	log.Printf("sched: received %v, shutting down", sg)
	if s.mode == ModeMeasure {
		s.stopTelemetry()
	}
	if err := s.setAmp(false); err != nil {
		log.Printf("sched: amp off: %v", err)
	}
	reason := "UNKNOWN"
	switch sg {
	case syscall.SIGINT:
		reason = "SIGINT"
	case syscall.SIGTERM:
		reason = "SIGTERM"
	}
	s.publishSystem(events.SystemEvent{
		Timestamp: t,
		Event:     "SHUTDOWN",
		Reason:    reason,
		Retained:  true,
	})
}

// drainRequests answers every queued request before the mode is
// serviced, so a tick never observes a half-applied transition.
func (s *Scheduler) drainRequests(t time.Time) {
	for {
		select {
		case r := <-s.requests:
			r.reply <- s.handle(r, t)
		default:
			return
		}
	}
}

func (s *Scheduler) handle(r request, t time.Time) response {
	switch r.kind {
	case reqEnterConfig:
		return response{err: s.enterConfig(t)}
	case reqEnterMeasure:
		return response{err: s.enterMeasure(t)}
	case reqRestart:
		return response{err: s.enterRestart(t, "requested")}
	case reqResetSamples:
		return response{err: s.resetSamples(t)}
	case reqPlaySample:
		return response{err: s.playRequested(r.index, t)}
	case reqBeginUpload:
		up, err := s.beginUpload(r.index, r.size, t)
		return response{upload: up, err: err}
	default:
		return response{err: fmt.Errorf("unknown request kind %d", r.kind)}
	}
}

// enterConfig is also valid during the boot grace: the grace period
// exists precisely so an operator can reach CONFIG before the first
// coin locks the device into normal operation.
func (s *Scheduler) enterConfig(t time.Time) error {
	switch s.mode {
	case ModeConfig:
		s.configUntil = t.Add(s.cfg.ConfigTimeout)
		log.Printf("sched: config timeout refreshed")
		return nil
	case ModeBoot, ModeReady, ModeNormal:
		s.configUntil = t.Add(s.cfg.ConfigTimeout)
		s.setMode(ModeConfig, t)
		return nil
	default:
		return fmt.Errorf("cannot enter config from %s: %w", s.mode, ErrWrongMode)
	}
}

func (s *Scheduler) enterMeasure(t time.Time) error {
	switch s.mode {
	case ModeMeasure:
		return nil
	case ModeBoot, ModeReady, ModeNormal:
		if s.deps.Telemetry != nil {
			if err := s.deps.Telemetry.Start(); err != nil {
				log.Printf("sched: telemetry start: %v", err)
			}
		}
		s.setMode(ModeMeasure, t)
		return nil
	default:
		return fmt.Errorf("cannot enter measure from %s: %w", s.mode, ErrWrongMode)
	}
}

func (s *Scheduler) enterRestart(t time.Time, why string) error {
	switch s.mode {
	case ModeRestart:
		return nil
	case ModeBoot:
		return fmt.Errorf("cannot restart from %s: %w", s.mode, ErrWrongMode)
	}
	if s.mode == ModeMeasure {
		s.stopTelemetry()
	}
	if s.deps.Network != nil {
		s.deps.Network.RequestDown()
	}
	s.restartAt = t.Add(s.cfg.RestartGrace)
	s.setMode(ModeRestart, t)
	log.Printf("sched: restart scheduled (%s)", why)
	return nil
}

func (s *Scheduler) resetSamples(t time.Time) error {
	if s.mode != ModeConfig {
		return fmt.Errorf("factory reset only allowed in config mode, not %s: %w", s.mode, ErrWrongMode)
	}
	s.configUntil = t.Add(s.cfg.ConfigTimeout)
	if err := s.deps.Store.Reset(); err != nil {
		return fmt.Errorf("reset samples: %w", err)
	}
	log.Printf("sched: samples reset to factory defaults")
	return nil
}

func (s *Scheduler) playRequested(index int, t time.Time) error {
	switch s.mode {
	case ModeConfig:
		s.configUntil = t.Add(s.cfg.ConfigTimeout)
	case ModeReady, ModeNormal:
	default:
		return fmt.Errorf("cannot play in %s: %w", s.mode, ErrWrongMode)
	}
	if s.deps.Sink.IsPlaying() {
		return ErrBusy
	}
	return s.startPlayback(index, t)
}

func (s *Scheduler) beginUpload(index int, size int64, t time.Time) (store.Upload, error) {
	if s.mode != ModeConfig {
		return nil, fmt.Errorf("upload only allowed in config mode, not %s: %w", s.mode, ErrWrongMode)
	}
	s.configUntil = t.Add(s.cfg.ConfigTimeout)
	up, err := s.deps.Store.BeginUpload(index, size)
	if err != nil {
		return nil, err
	}
	log.Printf("sched: upload started for sample %d (%d bytes)", index, size)
	return up, nil
}

// setMode records a transition and publishes it. Entering the same mode
// again is a no-op.
func (s *Scheduler) setMode(to Mode, t time.Time) {
	from := s.mode
	if from == to {
		return
	}
	s.mode = to
	log.Printf("sched: mode %s -> %s", from, to)
	if s.deps.Events == nil {
		return
	}
	ev := events.ModeEvent{Timestamp: t, From: from.String(), To: to.String()}
	if err := s.deps.Events.PublishMode(ev); err != nil {
		log.Printf("sched: publish mode event: %v", err)
	}
}

func (s *Scheduler) setAmp(on bool) error {
	if s.deps.Amp == nil {
		return nil
	}
	return s.deps.Amp.Set(on)
}

func (s *Scheduler) publishSystem(ev events.SystemEvent) {
	if s.deps.Events == nil {
		return
	}
	if err := s.deps.Events.PublishSystem(ev); err != nil {
		log.Printf("sched: publish %s event: %v", ev.Event, err)
	}
}

func (s *Scheduler) stopTelemetry() {
	if s.deps.Telemetry == nil {
		return
	}
	if err := s.deps.Telemetry.Stop(); err != nil {
		log.Printf("sched: telemetry stop: %v", err)
	}
}
