// Package events publishes device events over MQTT with abstraction for
// testing.
package events

import (
	"encoding/json"
	"time"
)

// TopicCoin is the MQTT topic for accepted coin events.
const TopicCoin = "coinbox/events/coin"

// TopicMode is the MQTT topic for mode transitions.
const TopicMode = "coinbox/events/mode"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "coinbox/events/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishCoin sends an accepted coin event to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishCoin(event CoinEvent) error

	// PublishMode sends a mode transition to the broker.
	PublishMode(event ModeEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// CoinEvent represents one accepted coin.
type CoinEvent struct {
	Timestamp time.Time
	Sample    int // index of the sample picked for playback
	Count     int // accepted coins since startup, including this one
}

// ModeEvent represents a device mode transition.
type ModeEvent struct {
	Timestamp time.Time
	From      string
	To        string
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown,
// heartbeat, network surface changes).
type SystemEvent struct {
	Timestamp time.Time
	Event     string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "NETWORK_UP", "NETWORK_DOWN"
	Reason    string // e.g., "SIGTERM", "COIN" (where applicable)
	Config    *SystemConfig
	Heartbeat *HeartbeatInfo
	Retained  bool // Whether the message should be retained by the broker
}

// SystemConfig carries the effective tuning constants, published once at
// startup.
type SystemConfig struct {
	SamplePeriodUs  int    `json:"sample_period_us"`
	SpikeThreshold  int    `json:"spike_threshold"`
	Samples         int    `json:"samples"`
	MainProbability int    `json:"main_probability"`
	Broker          string `json:"broker"`
}

// HeartbeatInfo carries periodic runtime counters.
type HeartbeatInfo struct {
	UptimeSeconds int64  `json:"uptime_seconds"`
	Coins         int    `json:"coins"`
	Mode          string `json:"mode"`
}

// CoinPayload represents the MQTT message payload for coin events.
type CoinPayload struct {
	Coin CoinPayloadInner `json:"coin"`
}

// CoinPayloadInner contains the coin event details.
type CoinPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Sample    int    `json:"sample"`
	Count     int    `json:"count"`
}

// FormatCoinPayload creates the JSON payload for a coin event.
func FormatCoinPayload(event CoinEvent) ([]byte, error) {
	payload := CoinPayload{
		Coin: CoinPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Sample:    event.Sample,
			Count:     event.Count,
		},
	}
	return json.Marshal(payload)
}

// ModePayload represents the MQTT message payload for mode transitions.
type ModePayload struct {
	Mode ModePayloadInner `json:"mode"`
}

// ModePayloadInner contains the transition details.
type ModePayloadInner struct {
	Timestamp string `json:"timestamp"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// FormatModePayload creates the JSON payload for a mode transition.
func FormatModePayload(event ModeEvent) ([]byte, error) {
	payload := ModePayload{
		Mode: ModePayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			From:      event.From,
			To:        event.To,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string         `json:"timestamp"`
	Event     string         `json:"event"`
	Reason    string         `json:"reason,omitempty"`
	Config    *SystemConfig  `json:"config,omitempty"`
	Heartbeat *HeartbeatInfo `json:"heartbeat,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
			Config:    event.Config,
			Heartbeat: event.Heartbeat,
		},
	}
	return json.Marshal(payload)
}
