package sched

import (
	"log"
	"time"

	"github.com/TuDo-Makerspace/Coinbox/internal/events"
	"github.com/TuDo-Makerspace/Coinbox/internal/status"
)

// step services the current mode for one tick. It returns true once the
// restarter has fired and the loop must exit.
func (s *Scheduler) step(t time.Time) bool {
	s.servicePlayback(t)
	s.serviceHeartbeat(t)

	switch s.mode {
	case ModeBoot:
		if !t.Before(s.bootUntil) {
			s.setMode(ModeReady, t)
			log.Printf("sched: ready, waiting for first coin")
		}

	case ModeReady, ModeNormal:
		s.serviceDetection(t)
		s.serviceReactivation(t)

	case ModeConfig:
		if !t.Before(s.configUntil) {
			log.Printf("sched: config mode timed out")
			if err := s.enterRestart(t, "config timeout"); err != nil {
				log.Printf("sched: config timeout restart: %v", err)
			}
		}

	case ModeMeasure:
		s.serviceMeasure(t)

	case ModeRestart:
		if !t.Before(s.restartAt) && !s.deps.Sink.IsPlaying() {
			return s.fireRestart(t)
		}
	}
	return false
}

// servicePlayback notices the end of a playback, switches the amplifier
// off and arms the post-playback cooldown. It runs in every mode so a
// preview started from CONFIG still releases the amp.
func (s *Scheduler) servicePlayback(t time.Time) {
	if !s.wasPlaying || s.deps.Sink.IsPlaying() {
		return
	}
	s.wasPlaying = false
	s.cooldownUntil = t.Add(s.cfg.Cooldown)
	if err := s.setAmp(false); err != nil {
		log.Printf("sched: amp off: %v", err)
	}
}

// serviceDetection runs the coin detection pipeline for one tick. While
// audio plays the detector keeps stepping with baseline adaptation
// vetoed, but any event it emits is discarded: the speaker couples into
// the analog front end and readings taken during playback cannot be
// trusted. After playback a short cooldown passes with no stepping at
// all before detection resumes.
func (s *Scheduler) serviceDetection(t time.Time) {
	playing := s.deps.Sink.IsPlaying()
	if !playing && t.Before(s.cooldownUntil) {
		return
	}

	raw, err := s.deps.Sensor.Read()
	if err != nil {
		log.Printf("sched: sensor read: %v", err)
		return
	}
	if s.deps.RawRing != nil {
		s.deps.RawRing.Push(raw)
	}

	res := s.deps.Detector.Step(raw, t, !playing)
	if res.Stepped && s.deps.AvgRing != nil {
		s.deps.AvgRing.Push(res.Averaged)
	}
	if !res.Coin {
		return
	}
	if playing {
		log.Printf("sched: coin event during playback discarded")
		return
	}
	if !s.lastCoin.IsZero() && t.Sub(s.lastCoin) < s.cfg.Cooldown {
		log.Printf("sched: coin event within debounce window discarded")
		return
	}
	s.acceptCoin(t)
}

// acceptCoin runs the full coin pipeline: count it, pick a sample, leave
// READY, publish the event, tear down networking and start playback. A
// missing asset falls back to the default sample in slot 0.
func (s *Scheduler) acceptCoin(t time.Time) {
	s.coins++
	s.lastCoin = t

	index, ok := s.deps.Selector.Pick()
	if !ok {
		log.Printf("sched: sample weights corrupted, falling back to sample 0")
	}
	if !s.deps.Store.Exists(index) && index != 0 {
		log.Printf("sched: sample %d missing, falling back to sample 0", index)
		index = 0
	}
	log.Printf("sched: coin %d accepted, sample %d", s.coins, index)

	if s.mode == ModeReady {
		s.setMode(ModeNormal, t)
	}

	if s.deps.Events != nil {
		ev := events.CoinEvent{Timestamp: t, Sample: index, Count: s.coins}
		if err := s.deps.Events.PublishCoin(ev); err != nil {
			log.Printf("sched: publish coin event: %v", err)
		}
	}

	if s.deps.Network != nil && s.deps.Network.Active() {
		log.Printf("sched: network teardown on coin")
		s.publishSystem(events.SystemEvent{
			Timestamp: t,
			Event:     "NETWORK_DOWN",
			Reason:    "COIN",
		})
		s.deps.Network.RequestDown()
	}
	// Every coin pushes the reactivation deadline out again, so the
	// radio stays quiet while coins are actively dropping.
	if s.cfg.Reactivate > 0 {
		s.reactivateAt = t.Add(s.cfg.Reactivate)
	}

	if err := s.startPlayback(index, t); err != nil {
		log.Printf("sched: coin playback: %v", err)
	}
}

// startPlayback resolves the asset path, powers the amplifier and hands
// the file to the audio sink.
func (s *Scheduler) startPlayback(index int, t time.Time) error {
	path, err := s.deps.Store.Path(index)
	if err != nil {
		return err
	}
	if err := s.setAmp(true); err != nil {
		log.Printf("sched: amp on: %v", err)
	}
	if err := s.deps.Sink.Play(path); err != nil {
		if aerr := s.setAmp(false); aerr != nil {
			log.Printf("sched: amp off: %v", aerr)
		}
		return err
	}
	s.wasPlaying = true
	log.Printf("sched: playing sample %d", index)
	return nil
}

// serviceReactivation brings networking back once the deadline has
// passed and no playback is in flight. The deadline stays armed while a
// sample plays and is retried on the next tick.
func (s *Scheduler) serviceReactivation(t time.Time) {
	if s.reactivateAt.IsZero() || t.Before(s.reactivateAt) {
		return
	}
	if s.deps.Sink.IsPlaying() {
		return
	}
	s.reactivateAt = time.Time{}
	if s.deps.Network == nil || s.deps.Network.Active() {
		return
	}
	log.Printf("sched: reactivating network services")
	s.publishSystem(events.SystemEvent{
		Timestamp: t,
		Event:     "NETWORK_UP",
		Reason:    "REACTIVATE",
	})
	s.deps.Network.RequestUp()
}

// serviceMeasure forwards one raw reading per tick to the telemetry
// sinks. The detector is not involved, so readings flow at the loop
// rate regardless of its averaging window.
func (s *Scheduler) serviceMeasure(t time.Time) {
	raw, err := s.deps.Sensor.Read()
	if err != nil {
		log.Printf("sched: sensor read: %v", err)
		return
	}
	if s.deps.RawRing != nil {
		s.deps.RawRing.Push(raw)
	}
	if s.deps.Telemetry != nil {
		s.deps.Telemetry.Push(raw, t)
	}
}

func (s *Scheduler) serviceHeartbeat(t time.Time) {
	if s.cfg.Heartbeat <= 0 || t.Before(s.nextHeartbeat) {
		return
	}
	s.nextHeartbeat = t.Add(s.cfg.Heartbeat)
	hb := &events.HeartbeatInfo{
		UptimeSeconds: int64(t.Sub(s.startTime) / time.Second),
		Coins:         s.coins,
		Mode:          s.mode.String(),
	}
	log.Printf("sched: heartbeat uptime=%ds coins=%d mode=%s", hb.UptimeSeconds, hb.Coins, s.mode)
	s.publishSystem(events.SystemEvent{
		Timestamp: t,
		Event:     "HEARTBEAT",
		Heartbeat: hb,
	})
}

// fireRestart performs the final reset at the end of the RESTART grace
// period. A restarter failure still stops the loop; the service manager
// brings the daemon back up, which matches the intent of a reset.
func (s *Scheduler) fireRestart(t time.Time) bool {
	s.publishSystem(events.SystemEvent{
		Timestamp: t,
		Event:     "SHUTDOWN",
		Reason:    "RESTART",
		Retained:  true,
	})
	if err := s.setAmp(false); err != nil {
		log.Printf("sched: amp off: %v", err)
	}
	log.Printf("sched: restart grace elapsed, resetting device")
	if err := s.deps.Restarter.Restart(); err != nil {
		log.Printf("sched: restart failed, exiting for service manager respawn: %v", err)
	}
	return true
}

func (s *Scheduler) updateTracker(t time.Time) {
	tr := s.deps.Tracker
	if tr == nil {
		return
	}
	tr.Update(status.Tick{
		Mode:          s.mode.String(),
		Detector:      s.deps.Detector.State(),
		Baseline:      s.deps.Detector.Baseline(),
		Baselined:     s.deps.Detector.Seeded(),
		Coins:         s.coins,
		LastCoin:      s.lastCoin,
		Playing:       s.deps.Sink.IsPlaying(),
		NetworkActive: s.deps.Network != nil && s.deps.Network.Active(),
	})
	if s.deps.ConnState != nil {
		tr.SetMQTTConnected(s.deps.ConnState.IsConnected())
	}
}
