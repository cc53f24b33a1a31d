package internal

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/TuDo-Makerspace/Coinbox/internal/audio"
	"github.com/TuDo-Makerspace/Coinbox/internal/events"
	"github.com/TuDo-Makerspace/Coinbox/internal/gpio"
	"github.com/TuDo-Makerspace/Coinbox/internal/logic"
	"github.com/TuDo-Makerspace/Coinbox/internal/measure"
	"github.com/TuDo-Makerspace/Coinbox/internal/netctl"
	"github.com/TuDo-Makerspace/Coinbox/internal/power"
	"github.com/TuDo-Makerspace/Coinbox/internal/ringlog"
	"github.com/TuDo-Makerspace/Coinbox/internal/sched"
	"github.com/TuDo-Makerspace/Coinbox/internal/sensor"
	"github.com/TuDo-Makerspace/Coinbox/internal/status"
	"github.com/TuDo-Makerspace/Coinbox/internal/store"
)

// stepClock hands out scripted times. Every call advances the clock by
// one step, matching the loop's single now() call per tick, so the
// simulated timeline is fixed by the number of ticks alone.
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newStepClock(start time.Time, step time.Duration) *stepClock {
	return &stepClock{t: start, step: step}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

// rig wires the scheduler to fakes and runs the real loop goroutine with
// a hand-fed tick channel. The tick channel is unbuffered, so at most
// one tick is ever in flight and all assertions made after the loop has
// returned observe a settled state.
type rig struct {
	t *testing.T

	clock     *stepClock
	src       *sensor.FakeSource
	sink      *audio.FakeSink
	amp       *gpio.FakeSwitch
	assets    *store.FakeStore
	pub       *events.FakePublisher
	net       *netctl.FakeController
	stream    *measure.FakeStreamer
	restarter *power.FakeRestarter
	tracker   *status.Tracker
	raw       *ringlog.Values
	avg       *ringlog.Values
	sched     *sched.Scheduler

	tick chan time.Time
	sig  chan os.Signal
	done chan error
}

const rigStep = 2 * time.Millisecond

func newRig(t *testing.T, cfg sched.Config) *rig {
	t.Helper()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := &rig{
		t:         t,
		clock:     newStepClock(base, rigStep),
		src:       sensor.NewFakeSource([]uint16{500}),
		sink:      audio.NewFakeSink(),
		amp:       &gpio.FakeSwitch{},
		assets:    store.NewFakeStore(3),
		pub:       events.NewFakePublisher(),
		net:       netctl.NewFakeController(true),
		stream:    measure.NewFakeStreamer(),
		restarter: power.NewFakeRestarter(),
		tracker:   status.NewTracker(base, status.Config{Samples: 3, MainProbability: 70}),
		raw:       ringlog.NewValues(512),
		avg:       ringlog.NewValues(512),
		tick:      make(chan time.Time),
		sig:       make(chan os.Signal, 1),
		done:      make(chan error, 1),
	}

	det := logic.NewDetector(logic.DetectorConfig{
		SpikeThreshold: 200,
		SpikeMax:       90 * time.Millisecond,
		SamplePeriod:   rigStep,
		LowThreshold:   7,
		HighThreshold:  750,
		BlockHold:      2 * time.Second,
		AverageWindow:  1,
		BaselineAlpha:  0.02,
	})
	sel := logic.NewSelector(3, 70, func(int) int { return 0 })

	r.sched = sched.New(cfg, sched.Deps{
		Sensor:    r.src,
		Detector:  det,
		Selector:  sel,
		Sink:      r.sink,
		Amp:       r.amp,
		Store:     r.assets,
		Events:    r.pub,
		ConnState: r.pub,
		Network:   r.net,
		Telemetry: r.stream,
		Tracker:   r.tracker,
		Restarter: r.restarter,
		RawRing:   r.raw,
		AvgRing:   r.avg,
	})

	go func() { r.done <- r.sched.Run(r.clock.Now, r.tick, r.sig) }()
	return r
}

// ticks feeds n ticks into the loop. The send of tick n+1 only completes
// after tick n has been fully processed.
func (r *rig) ticks(n int) {
	for i := 0; i < n; i++ {
		r.tick <- time.Time{}
	}
}

// call submits a request off the loop goroutine and feeds ticks until
// the loop has answered it.
func (r *rig) call(f func() error) error {
	r.t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- f() }()
	for i := 0; i < 1000; i++ {
		// Yield so the request goroutine is not starved by the
		// tick rendezvous on a single-P runtime.
		runtime.Gosched()
		select {
		case err := <-errCh:
			return err
		case r.tick <- time.Time{}:
		}
	}
	r.t.Fatal("request was never answered")
	return nil
}

// beginUpload is call for the one request that returns a value.
func (r *rig) beginUpload(index int, size int64) (store.Upload, error) {
	r.t.Helper()
	type reply struct {
		up  store.Upload
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		up, err := r.sched.BeginUpload(index, size)
		ch <- reply{up, err}
	}()
	for i := 0; i < 1000; i++ {
		// Yield so the request goroutine is not starved by the
		// tick rendezvous on a single-P runtime.
		runtime.Gosched()
		select {
		case rep := <-ch:
			return rep.up, rep.err
		case r.tick <- time.Time{}:
		}
	}
	r.t.Fatal("upload request was never answered")
	return nil, nil
}

// stop sends SIGTERM and waits for the loop to return.
func (r *rig) stop() error {
	r.t.Helper()
	r.sig <- syscall.SIGTERM
	return r.wait()
}

// drain feeds ticks until the loop exits on its own.
func (r *rig) drain() error {
	r.t.Helper()
	for i := 0; i < 1000; i++ {
		select {
		case err := <-r.done:
			return err
		case r.tick <- time.Time{}:
		}
	}
	r.t.Fatal("loop never exited")
	return nil
}

func (r *rig) wait() error {
	r.t.Helper()
	select {
	case err := <-r.done:
		return err
	case <-time.After(2 * time.Second):
		r.t.Fatal("loop did not return")
		return nil
	}
}

// systemEvent returns the first system event with the given name, or
// fails the test.
func (r *rig) systemEvent(name string) events.SystemEvent {
	r.t.Helper()
	for _, ev := range r.pub.SystemEvents {
		if ev.Event == name {
			return ev
		}
	}
	r.t.Fatalf("no %s event published, got %+v", name, r.pub.SystemEvents)
	return events.SystemEvent{}
}

// TestIntegrationCoinFlow drives the loop from boot through one coin:
// detection, playback, network teardown and the delayed reactivation,
// all on the scripted clock.
func TestIntegrationCoinFlow(t *testing.T) {
	r := newRig(t, sched.Config{
		BootGrace:     10 * time.Millisecond,
		ConfigTimeout: 30 * time.Minute,
		Reactivate:    40 * time.Millisecond,
		RestartGrace:  20 * time.Millisecond,
		Cooldown:      4 * time.Millisecond,
	})

	// Resting level around 500, one coin shadow, then quiet again.
	r.src.Samples = []uint16{500, 500, 500, 250, 520}

	// Five ticks of boot grace, one tick to leave BOOT, then the
	// script: three resting readings, the dip and the recovery. The
	// coin lands on tick 10 at base+20ms.
	r.ticks(13)
	r.sink.FinishPlayback()
	r.ticks(22)

	if err := r.stop(); err != nil {
		t.Fatalf("loop returned error: %v", err)
	}

	// One coin, played from slot 0.
	if len(r.pub.CoinEvents) != 1 {
		t.Fatalf("expected 1 coin event, got %d", len(r.pub.CoinEvents))
	}
	coin := r.pub.CoinEvents[0]
	if coin.Count != 1 || coin.Sample != 0 {
		t.Errorf("coin event = %+v, want count 1 sample 0", coin)
	}
	wantCoin := `{"coin":{"timestamp":"2026-01-01T12:00:00Z","sample":0,"count":1}}`
	if got := string(r.pub.CoinPayloads[0]); got != wantCoin {
		t.Errorf("unexpected coin payload:\ngot:  %s\nwant: %s", got, wantCoin)
	}

	if want := []string{"fake://sample0.wav"}; len(r.sink.Plays) != 1 || r.sink.Plays[0] != want[0] {
		t.Errorf("plays = %v, want %v", r.sink.Plays, want)
	}
	if len(r.amp.History) == 0 || !r.amp.History[0] {
		t.Errorf("amp history = %v, want power-on first", r.amp.History)
	}
	if r.amp.On {
		t.Error("amp still on after shutdown")
	}

	// BOOT -> READY -> NORMAL.
	if len(r.pub.ModeEvents) != 2 {
		t.Fatalf("expected 2 mode events, got %+v", r.pub.ModeEvents)
	}
	if r.pub.ModeEvents[0].From != "BOOT" || r.pub.ModeEvents[0].To != "READY" {
		t.Errorf("mode event 0 = %+v", r.pub.ModeEvents[0])
	}
	if r.pub.ModeEvents[1].From != "READY" || r.pub.ModeEvents[1].To != "NORMAL" {
		t.Errorf("mode event 1 = %+v", r.pub.ModeEvents[1])
	}

	// Teardown on the coin, reactivation once the box went quiet,
	// shutdown last.
	down := r.systemEvent("NETWORK_DOWN")
	if down.Reason != "COIN" {
		t.Errorf("NETWORK_DOWN reason = %q, want COIN", down.Reason)
	}
	up := r.systemEvent("NETWORK_UP")
	if up.Reason != "REACTIVATE" {
		t.Errorf("NETWORK_UP reason = %q, want REACTIVATE", up.Reason)
	}
	last := r.pub.SystemEvents[len(r.pub.SystemEvents)-1]
	if last.Event != "SHUTDOWN" || last.Reason != "SIGTERM" || !last.Retained {
		t.Errorf("last system event = %+v, want retained SHUTDOWN/SIGTERM", last)
	}

	if r.net.DownRequests != 1 || r.net.UpRequests != 1 || !r.net.Up {
		t.Errorf("network = %+v, want one teardown, one reactivation, up", r.net)
	}

	snap := r.tracker.Snapshot()
	if snap.Mode != "NORMAL" {
		t.Errorf("tracker mode = %q, want NORMAL", snap.Mode)
	}
	if snap.Coins != 1 {
		t.Errorf("tracker coins = %d, want 1", snap.Coins)
	}
	if snap.Playing {
		t.Error("tracker still reports playback")
	}
	if !snap.NetworkActive {
		t.Error("tracker reports network down after reactivation")
	}
	if !snap.Baselined {
		t.Error("tracker reports unsettled baseline")
	}
	if snap.Detector != logic.StateIdle {
		t.Errorf("tracker detector = %s, want IDLE", snap.Detector)
	}
	if !snap.MQTTConnected {
		t.Error("tracker reports broker disconnected")
	}

	// The dip that minted the coin is visible in the raw ring.
	found := false
	for _, v := range r.raw.Snapshot() {
		if v == 250 {
			found = true
			break
		}
	}
	if !found {
		t.Error("coin dip missing from raw ring")
	}
}

// TestIntegrationConfigLifecycle exercises the operator path: enter
// CONFIG, replace a sample, preview it, then restart the device.
func TestIntegrationConfigLifecycle(t *testing.T) {
	r := newRig(t, sched.Config{
		BootGrace:     4 * time.Millisecond,
		ConfigTimeout: 10 * time.Second,
		RestartGrace:  6 * time.Millisecond,
		Cooldown:      4 * time.Millisecond,
	})

	if err := r.call(r.sched.EnterConfig); err != nil {
		t.Fatalf("EnterConfig: %v", err)
	}

	body := []byte("jingle")
	up, err := r.beginUpload(1, int64(len(body)))
	if err != nil {
		t.Fatalf("BeginUpload: %v", err)
	}
	if _, err := up.Write(body); err != nil {
		t.Fatalf("upload write: %v", err)
	}
	if err := up.Commit(); err != nil {
		t.Fatalf("upload commit: %v", err)
	}

	if err := r.call(func() error { return r.sched.PlaySample(1) }); err != nil {
		t.Fatalf("PlaySample: %v", err)
	}
	r.sink.FinishPlayback()

	if err := r.call(r.sched.Restart); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if err := r.drain(); err != nil {
		t.Fatalf("loop returned error: %v", err)
	}

	if r.restarter.Calls != 1 {
		t.Errorf("restarter calls = %d, want 1", r.restarter.Calls)
	}
	if got := string(r.assets.Samples[1]); got != "jingle" {
		t.Errorf("sample 1 = %q, want the uploaded body", got)
	}
	if len(r.sink.Plays) != 1 || r.sink.Plays[0] != "fake://sample1.wav" {
		t.Errorf("plays = %v, want the preview of sample 1", r.sink.Plays)
	}

	if len(r.pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %+v", r.pub.SystemEvents)
	}
	ev := r.pub.SystemEvents[0]
	if ev.Event != "SHUTDOWN" || ev.Reason != "RESTART" || !ev.Retained {
		t.Errorf("system event = %+v, want retained SHUTDOWN/RESTART", ev)
	}

	if r.net.Up || r.net.DownRequests != 1 {
		t.Errorf("network = %+v, want torn down for restart", r.net)
	}
	if got := r.tracker.Snapshot().Mode; got != "RESTART" {
		t.Errorf("tracker mode = %q, want RESTART", got)
	}

	var sawConfig, sawRestart bool
	for _, ev := range r.pub.ModeEvents {
		switch ev.To {
		case "CONFIG":
			sawConfig = true
		case "RESTART":
			sawRestart = true
		}
	}
	if !sawConfig || !sawRestart {
		t.Errorf("mode events = %+v, want transitions into CONFIG and RESTART", r.pub.ModeEvents)
	}
}

// TestIntegrationMeasureFlow checks that measurement mode streams raw
// readings to the telemetry sinks until shutdown stops them.
func TestIntegrationMeasureFlow(t *testing.T) {
	r := newRig(t, sched.Config{
		BootGrace:     4 * time.Millisecond,
		ConfigTimeout: 10 * time.Second,
		RestartGrace:  6 * time.Millisecond,
		Cooldown:      4 * time.Millisecond,
	})
	r.src.Samples = []uint16{480}

	if err := r.call(r.sched.EnterMeasure); err != nil {
		t.Fatalf("EnterMeasure: %v", err)
	}
	r.ticks(10)

	if err := r.stop(); err != nil {
		t.Fatalf("loop returned error: %v", err)
	}

	if !r.stream.Started {
		t.Error("telemetry was never started")
	}
	if !r.stream.Stopped {
		t.Error("telemetry was not stopped on shutdown")
	}
	if len(r.stream.Pushed) < 10 {
		t.Errorf("pushed %d readings, want at least 10", len(r.stream.Pushed))
	}
	for i, v := range r.stream.Pushed {
		if v != 480 {
			t.Fatalf("pushed[%d] = %d, want 480", i, v)
		}
	}
}

// TestIntegrationPublishFailureDoesNotBlockCoins verifies a broken
// broker connection costs only the event stream, never the jukebox.
func TestIntegrationPublishFailureDoesNotBlockCoins(t *testing.T) {
	r := newRig(t, sched.Config{
		BootGrace:     10 * time.Millisecond,
		ConfigTimeout: 30 * time.Minute,
		RestartGrace:  20 * time.Millisecond,
		Cooldown:      4 * time.Millisecond,
	})
	r.pub.PublishError = fmt.Errorf("connection lost")
	r.src.Samples = []uint16{500, 500, 500, 250, 520}

	r.ticks(13)
	r.sink.FinishPlayback()
	r.ticks(5)

	if err := r.stop(); err != nil {
		t.Fatalf("loop returned error: %v", err)
	}

	if len(r.sink.Plays) != 1 || r.sink.Plays[0] != "fake://sample0.wav" {
		t.Errorf("plays = %v, want the coin jingle despite publish failures", r.sink.Plays)
	}
	if got := r.tracker.Snapshot().Coins; got != 1 {
		t.Errorf("coins = %d, want 1", got)
	}
	if r.net.DownRequests != 1 {
		t.Errorf("down requests = %d, want the teardown to happen anyway", r.net.DownRequests)
	}
}

// TestIntegrationCoinPayloadFormat verifies the exact JSON structure.
func TestIntegrationCoinPayloadFormat(t *testing.T) {
	publisher := events.NewFakePublisher()
	err := publisher.PublishCoin(events.CoinEvent{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Sample:    2,
		Count:     41,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"coin":{"timestamp":"2026-02-02T22:18:12Z","sample":2,"count":41}}`
	if got := string(publisher.CoinPayloads[0]); got != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", got, expected)
	}
}

// TestIntegrationModePayloadFormat verifies the exact JSON structure.
func TestIntegrationModePayloadFormat(t *testing.T) {
	publisher := events.NewFakePublisher()
	err := publisher.PublishMode(events.ModeEvent{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		From:      "READY",
		To:        "NORMAL",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"mode":{"timestamp":"2026-02-02T22:18:12Z","from":"READY","to":"NORMAL"}}`
	if got := string(publisher.ModePayloads[0]); got != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", got, expected)
	}
}

// TestIntegrationStartupPayloadFormat verifies the exact JSON structure
// for the retained startup event.
func TestIntegrationStartupPayloadFormat(t *testing.T) {
	publisher := events.NewFakePublisher()
	err := publisher.PublishSystem(events.SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 8, 0, 0, 0, time.UTC),
		Event:     "STARTUP",
		Config: &events.SystemConfig{
			SamplePeriodUs:  2000,
			SpikeThreshold:  100,
			Samples:         3,
			MainProbability: 70,
			Broker:          "tcp://192.168.0.10:1883",
		},
		Retained: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T08:00:00Z","event":"STARTUP","config":{"sample_period_us":2000,"spike_threshold":100,"samples":3,"main_probability":70,"broker":"tcp://192.168.0.10:1883"}}}`
	if got := string(publisher.SystemPayloads[0]); got != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", got, expected)
	}
}

// TestIntegrationShutdownPayloadFormat verifies the exact JSON structure
// for shutdown events.
func TestIntegrationShutdownPayloadFormat(t *testing.T) {
	publisher := events.NewFakePublisher()
	err := publisher.PublishSystem(events.SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 15, 30, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
		Retained:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T15:30:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if got := string(publisher.SystemPayloads[0]); got != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", got, expected)
	}
}

// TestIntegrationHeartbeatPayloadFormat verifies the exact JSON
// structure for heartbeat events.
func TestIntegrationHeartbeatPayloadFormat(t *testing.T) {
	publisher := events.NewFakePublisher()
	err := publisher.PublishSystem(events.SystemEvent{
		Timestamp: time.Date(2026, 2, 4, 9, 15, 0, 0, time.UTC),
		Event:     "HEARTBEAT",
		Heartbeat: &events.HeartbeatInfo{
			UptimeSeconds: 3600,
			Coins:         12,
			Mode:          "NORMAL",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-04T09:15:00Z","event":"HEARTBEAT","heartbeat":{"uptime_seconds":3600,"coins":12,"mode":"NORMAL"}}}`
	if got := string(publisher.SystemPayloads[0]); got != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", got, expected)
	}
}

// TestIntegrationHeartbeatAfterCoins verifies the heartbeat carries the
// counters accumulated by the loop.
func TestIntegrationHeartbeatAfterCoins(t *testing.T) {
	r := newRig(t, sched.Config{
		BootGrace:     10 * time.Millisecond,
		ConfigTimeout: 30 * time.Minute,
		RestartGrace:  20 * time.Millisecond,
		Cooldown:      4 * time.Millisecond,
		Heartbeat:     30 * time.Millisecond,
	})
	r.src.Samples = []uint16{500, 500, 500, 250, 520}

	r.ticks(13)
	r.sink.FinishPlayback()
	r.ticks(10)

	if err := r.stop(); err != nil {
		t.Fatalf("loop returned error: %v", err)
	}

	hb := r.systemEvent("HEARTBEAT")
	if hb.Heartbeat == nil {
		t.Fatal("heartbeat event has no counters")
	}
	if hb.Heartbeat.Coins != 1 {
		t.Errorf("heartbeat coins = %d, want 1", hb.Heartbeat.Coins)
	}
	if hb.Heartbeat.Mode != "NORMAL" {
		t.Errorf("heartbeat mode = %q, want NORMAL", hb.Heartbeat.Mode)
	}
}
