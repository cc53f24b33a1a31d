// Package status provides a thread-safe status tracker for the coinbox
// daemon. It is written by the control loop and read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/TuDo-Makerspace/Coinbox/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	SamplePeriodUs  int64
	SpikeThreshold  int
	Samples         int
	MainProbability int
	Broker          string
	HTTPPort        string
	DataDir         string
}

// Tick is the per-iteration state pushed into the tracker by the control
// loop. Mode is kept as a string to avoid importing the scheduler from
// status.
type Tick struct {
	Mode          string
	Detector      logic.State
	Baseline      float64
	Baselined     bool
	Coins         int
	LastCoin      time.Time
	Playing       bool
	NetworkActive bool
}

// Snapshot is a point-in-time view of daemon state. It is a value type,
// safe to use after the lock is released.
type Snapshot struct {
	Tick
	MQTTConnected bool
	StartTime     time.Time
	Now           time.Time
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update stores the loop state. Called from the control loop on every
// tick.
func (t *Tracker) Update(tick Tick) {
	t.mu.Lock()
	t.snap.Tick = tick
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status. The control loop
// polls the client once per tick and pushes the result here.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
