package logic

import "time"

// Detector turns a stream of raw light-sensor readings into discrete coin
// events. A falling transient deeper than SpikeThreshold arms a spike; a
// matching upward recovery completes it and emits exactly one event. The
// absolute plausibility band doubles as a lid-open guard: implausible
// readings suspend detection instead of producing events.
type Detector struct {
	cfg      DetectorConfig
	baseline *Baseline
	state    State

	lastStep time.Time
	avgSum   int
	avgCount int

	spikeStart  time.Time
	prevReading uint16
	maxRecovery int

	blockUntil time.Time
}

// NewDetector creates a detector in BLOCKING state. With the block-until
// deadline unset, the first plausible reading releases it to IDLE.
func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.AverageWindow < 1 {
		cfg.AverageWindow = 1
	}
	return &Detector{
		cfg:      cfg,
		baseline: NewBaseline(cfg.BaselineAlpha),
		state:    StateBlocking,
	}
}

// Step feeds one raw sample taken at now into the detector. Calls closer
// together than SamplePeriod are ignored, and with pre-averaging enabled
// the state machine only advances once the window is full. updateBaseline
// lets the caller veto baseline adaptation (audio playing); the veto never
// disables the plausibility guard itself.
func (d *Detector) Step(raw uint16, now time.Time, updateBaseline bool) Result {
	if !d.lastStep.IsZero() && now.Sub(d.lastStep) < d.cfg.SamplePeriod {
		return Result{}
	}
	d.lastStep = now

	d.avgSum += int(raw)
	d.avgCount++
	if d.avgCount < d.cfg.AverageWindow {
		return Result{}
	}
	reading := uint16(d.avgSum / d.avgCount)
	d.avgSum, d.avgCount = 0, 0

	res := Result{Stepped: true, Averaged: reading}

	switch d.state {
	case StateBlocking:
		if updateBaseline {
			d.baseline.Update(reading)
		}
		if d.implausible(reading) {
			d.blockUntil = now.Add(d.cfg.BlockHold)
		} else if !now.Before(d.blockUntil) {
			d.state = StateIdle
		}

	case StateIdle:
		if d.implausible(reading) {
			d.block(now)
			break
		}
		if float64(reading)-d.baseline.Value() < -float64(d.cfg.SpikeThreshold) {
			d.state = StateSpikeStart
			d.spikeStart = now
			d.prevReading = reading
			d.maxRecovery = 0
			break
		}
		if updateBaseline {
			d.baseline.Update(reading)
		}

	case StateSpikeStart:
		if d.implausible(reading) {
			d.block(now)
			break
		}
		if recovery := int(reading) - int(d.prevReading); recovery > d.maxRecovery {
			d.maxRecovery = recovery
		}
		d.prevReading = reading
		if d.maxRecovery > d.cfg.SpikeThreshold {
			// SPIKE_END is not a resting state: emit the one coin
			// event and re-arm within the same step.
			d.state = StateIdle
			res.Coin = true
			break
		}
		if now.Sub(d.spikeStart) > d.cfg.SpikeMax {
			// No recovery in time: a light-level change, not a coin.
			d.block(now)
		}

	case StateSpikeEnd:
		// Unreachable as a stored state, SPIKE_END resolves inside the
		// emitting step. Recover to IDLE if it ever leaks.
		d.state = StateIdle
	}

	return res
}

// implausible reports whether the reading or the seeded baseline falls
// outside the configured absolute band.
func (d *Detector) implausible(reading uint16) bool {
	if reading < d.cfg.LowThreshold || reading > d.cfg.HighThreshold {
		return true
	}
	if d.baseline.Seeded() {
		v := d.baseline.Value()
		if v < float64(d.cfg.LowThreshold) || v > float64(d.cfg.HighThreshold) {
			return true
		}
	}
	return false
}

func (d *Detector) block(now time.Time) {
	d.state = StateBlocking
	d.blockUntil = now.Add(d.cfg.BlockHold)
}

// State returns the current detector state.
func (d *Detector) State() State {
	return d.state
}

// Baseline returns the current resting-level estimate.
func (d *Detector) Baseline() float64 {
	return d.baseline.Value()
}

// Seeded reports whether the baseline has absorbed at least one reading.
func (d *Detector) Seeded() bool {
	return d.baseline.Seeded()
}
