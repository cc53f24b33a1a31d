package web

import (
	"encoding/json"
	"time"

	"github.com/TuDo-Makerspace/Coinbox/internal/status"
)

// StatusJSON is the JSON representation of the daemon status.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Mode          string     `json:"mode"`
	Detector      string     `json:"detector"`
	Baseline      float64    `json:"baseline"`
	Ready         bool       `json:"ready"`
	Coins         int        `json:"coins"`
	LastCoin      string     `json:"last_coin,omitempty"`
	Playing       bool       `json:"playing"`
	NetworkActive bool       `json:"network_active"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SamplePeriodUs  int64  `json:"sample_period_us"`
	SpikeThreshold  int    `json:"spike_threshold"`
	Samples         int    `json:"samples"`
	MainProbability int    `json:"main_probability"`
	Broker          string `json:"broker"`
	HTTPAddr        string `json:"http_addr"`
	DataDir         string `json:"data_dir"`
}

func formatJSON(snap status.Snapshot) []byte {
	mode := snap.Mode
	if mode == "" {
		mode = "BOOT"
	}
	det := string(snap.Detector)
	if det == "" {
		det = "BLOCKING"
	}

	sj := StatusJSON{
		Status: StatusInner{
			Mode:          mode,
			Detector:      det,
			Baseline:      snap.Baseline,
			Ready:         snap.Baselined,
			Coins:         snap.Coins,
			Playing:       snap.Playing,
			NetworkActive: snap.NetworkActive,
			UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
			StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
			Timestamp:     snap.Now.UTC().Format(time.RFC3339),
			MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
			Config: ConfigJSON{
				SamplePeriodUs:  snap.Config.SamplePeriodUs,
				SpikeThreshold:  snap.Config.SpikeThreshold,
				Samples:         snap.Config.Samples,
				MainProbability: snap.Config.MainProbability,
				Broker:          snap.Config.Broker,
				HTTPAddr:        snap.Config.HTTPPort,
				DataDir:         snap.Config.DataDir,
			},
		},
	}

	if !snap.LastCoin.IsZero() {
		sj.Status.LastCoin = snap.LastCoin.UTC().Format(time.RFC3339)
	}

	data, _ := json.MarshalIndent(sj, "", "  ")
	return data
}
