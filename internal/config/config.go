// Package config loads the daemon configuration from YAML. Every field
// has a built-in default matching the deployed device, so an empty file
// (or no file at all) yields a working setup.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/TuDo-Makerspace/Coinbox/internal/gpio"
	"github.com/TuDo-Makerspace/Coinbox/internal/sensor"
)

// Config is the complete daemon configuration.
type Config struct {
	Listen       string `yaml:"listen"`
	DataDir      string `yaml:"data_dir"`
	MDNSInstance string `yaml:"mdns_instance"`

	MQTT     MQTTConfig     `yaml:"mqtt"`
	Sensor   SensorConfig   `yaml:"sensor"`
	Detector DetectorConfig `yaml:"detector"`
	Audio    AudioConfig    `yaml:"audio"`
	Modes    ModesConfig    `yaml:"modes"`
	Measure  MeasureConfig  `yaml:"measure"`
	Debug    DebugConfig    `yaml:"debug"`
}

// MQTTConfig contains MQTT broker settings. An empty broker disables
// event publishing.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`

	// HeartbeatMs is the interval between heartbeat events. -1 disables
	// heartbeats.
	HeartbeatMs int `yaml:"heartbeat_ms"`
}

// SensorConfig contains the light sensor input settings.
type SensorConfig struct {
	// Device is the sysfs path of the ADC value node.
	Device string `yaml:"device"`
}

// DetectorConfig contains the coin detection tuning.
type DetectorConfig struct {
	SpikeThreshold      int     `yaml:"spike_threshold"`
	SpikeMaxMs          int     `yaml:"spike_max_ms"`
	SamplePeriodUs      int     `yaml:"sample_period_us"`
	LowThreshold        int     `yaml:"low_threshold"`
	HighThreshold       int     `yaml:"high_threshold"`
	ADCSamples          int     `yaml:"adc_samples"`
	BaselineAlpha       float64 `yaml:"baseline_alpha"`
	BlockAfterLidOpenMs int     `yaml:"block_after_lid_open_ms"`
}

// AudioConfig contains playback and sample storage settings.
type AudioConfig struct {
	Samples         int    `yaml:"samples"`
	MainProbability int    `yaml:"main_probability"`
	MaxSampleBytes  int64  `yaml:"max_sample_bytes"`
	CooldownMs      int    `yaml:"cooldown_ms"`
	AmpGPIOChip     string `yaml:"amp_gpio_chip"`
	AmpGPIOLine     int    `yaml:"amp_gpio_line"`
}

// ModesConfig contains the mode machine timing.
type ModesConfig struct {
	BootTimeMs        int `yaml:"boot_time_ms"`
	ConfigTimeoutMs   int `yaml:"config_timeout_ms"`
	ReactivateAfterMs int `yaml:"reactivate_after_ms"` // -1 keeps the network down until restart
	RestartGraceMs    int `yaml:"restart_grace_ms"`
}

// MeasureConfig contains the measurement mode telemetry settings.
type MeasureConfig struct {
	UDPListen         string `yaml:"udp_listen"`
	UDPSendIntervalMs int    `yaml:"udp_send_interval_ms"`
	SerialDevice      string `yaml:"serial_device"` // empty disables the serial mirror
	SerialBaud        int    `yaml:"serial_baud"`
}

// DebugConfig sizes the in-memory debug rings.
type DebugConfig struct {
	LogEntries   int `yaml:"log_entries"`
	ADCValues    int `yaml:"adc_values"`
	ADCAvgValues int `yaml:"adc_avg_values"`
}

// Default returns the built-in configuration.
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

// Load reads and parses a YAML configuration file, fills defaults and
// validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Listen == "" {
		cfg.Listen = ":80"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "/var/lib/coinbox"
	}
	if cfg.MDNSInstance == "" {
		cfg.MDNSInstance = "coinbox"
	}

	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "coinbox"
	}
	if cfg.MQTT.HeartbeatMs == 0 {
		cfg.MQTT.HeartbeatMs = 900000
	}

	if cfg.Sensor.Device == "" {
		cfg.Sensor.Device = sensor.DefaultDevice
	}

	d := &cfg.Detector
	if d.SpikeThreshold == 0 {
		d.SpikeThreshold = 100
	}
	if d.SpikeMaxMs == 0 {
		d.SpikeMaxMs = 90
	}
	if d.SamplePeriodUs == 0 {
		d.SamplePeriodUs = 2000
	}
	if d.LowThreshold == 0 {
		d.LowThreshold = 7
	}
	if d.HighThreshold == 0 {
		d.HighThreshold = 750
	}
	if d.ADCSamples == 0 {
		d.ADCSamples = 4
	}
	if d.BaselineAlpha == 0 {
		d.BaselineAlpha = 0.02
	}
	if d.BlockAfterLidOpenMs == 0 {
		d.BlockAfterLidOpenMs = 2000
	}

	a := &cfg.Audio
	if a.Samples == 0 {
		a.Samples = 3
	}
	if a.MainProbability == 0 {
		a.MainProbability = 70
	}
	if a.MaxSampleBytes == 0 {
		a.MaxSampleBytes = 80000
	}
	if a.CooldownMs == 0 {
		a.CooldownMs = 10
	}
	if a.AmpGPIOChip == "" {
		a.AmpGPIOChip = gpio.DefaultChip
	}
	if a.AmpGPIOLine == 0 {
		a.AmpGPIOLine = gpio.DefaultAmpLine
	}

	m := &cfg.Modes
	if m.BootTimeMs == 0 {
		m.BootTimeMs = 2000
	}
	if m.ConfigTimeoutMs == 0 {
		m.ConfigTimeoutMs = 1800000
	}
	if m.ReactivateAfterMs == 0 {
		m.ReactivateAfterMs = 10000
	}
	if m.RestartGraceMs == 0 {
		m.RestartGraceMs = 1000
	}

	me := &cfg.Measure
	if me.UDPListen == "" {
		me.UDPListen = ":12345"
	}
	if me.UDPSendIntervalMs == 0 {
		me.UDPSendIntervalMs = 20
	}
	if me.SerialBaud == 0 {
		me.SerialBaud = 115200
	}

	dbg := &cfg.Debug
	if dbg.LogEntries == 0 {
		dbg.LogEntries = 150
	}
	if dbg.ADCValues == 0 {
		dbg.ADCValues = 2000
	}
	if dbg.ADCAvgValues == 0 {
		dbg.ADCAvgValues = 2000
	}
}
