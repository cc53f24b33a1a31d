// Package logic contains the pure signal-processing core of the coin
// detector: baseline tracking, the spike state machine, and the weighted
// sample selector. This package has NO external dependencies (no sensor,
// audio, OS, or time.Sleep). Time is always injectable via time.Time
// parameters.
package logic

import "time"

// State represents the detector's position in the spike state machine.
type State string

const (
	// StateBlocking suspends detection while readings are implausible
	// (lid open, sensor fault) and for a hold period afterwards.
	StateBlocking State = "BLOCKING"
	// StateIdle is the quiescent armed state.
	StateIdle State = "IDLE"
	// StateSpikeStart means a downward transient is in progress.
	StateSpikeStart State = "SPIKE_START"
	// StateSpikeEnd is transient: the spike recovered, a coin event is
	// emitted and the detector returns to IDLE within the same step.
	StateSpikeEnd State = "SPIKE_END"
)

// DetectorConfig holds the tuning constants of the spike state machine.
type DetectorConfig struct {
	// SpikeThreshold is the minimum drop below baseline (and the minimum
	// per-step recovery) that qualifies as a coin transient, in raw ADC
	// counts.
	SpikeThreshold int
	// SpikeMax is how long a started spike may run without recovering
	// before it is dismissed as a light-level change.
	SpikeMax time.Duration
	// SamplePeriod rate-limits the detector: steps arriving closer
	// together than this are ignored, independent of the caller's tick.
	SamplePeriod time.Duration
	// LowThreshold and HighThreshold bound the plausible absolute range.
	// A reading or baseline outside [Low, High] means the enclosure is
	// open or the sensor is faulty and forces BLOCKING.
	LowThreshold  uint16
	HighThreshold uint16
	// BlockHold is how long readings must stay in-band before BLOCKING
	// releases back to IDLE.
	BlockHold time.Duration
	// AverageWindow is the number of raw samples averaged before one
	// value is released to the state machine. 1 disables pre-averaging.
	AverageWindow int
	// BaselineAlpha is the exponential smoothing factor of the baseline.
	BaselineAlpha float64
}

// Result reports what a single detector step did.
type Result struct {
	// Stepped is false when the step was swallowed by the rate gate or
	// by an incomplete averaging window.
	Stepped bool
	// Averaged is the value released to the state machine this step.
	// Only meaningful when Stepped is true.
	Averaged uint16
	// Coin is true when a completed spike was recognized this step.
	Coin bool
}
