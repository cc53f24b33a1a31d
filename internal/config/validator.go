package config

import "fmt"

// Validate checks if the configuration is valid. It expects defaults to
// be applied already.
func Validate(cfg *Config) error {
	if cfg.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if cfg.Sensor.Device == "" {
		return fmt.Errorf("sensor.device is required")
	}

	if cfg.MQTT.HeartbeatMs < -1 {
		return fmt.Errorf("mqtt.heartbeat_ms must be >= -1 (-1 disables heartbeats)")
	}

	d := cfg.Detector
	if d.SpikeThreshold <= 0 {
		return fmt.Errorf("detector.spike_threshold must be > 0")
	}
	if d.SpikeMaxMs <= 0 {
		return fmt.Errorf("detector.spike_max_ms must be > 0")
	}
	if d.SamplePeriodUs <= 0 {
		return fmt.Errorf("detector.sample_period_us must be > 0")
	}
	if d.LowThreshold < 0 || d.HighThreshold <= d.LowThreshold {
		return fmt.Errorf("detector thresholds must satisfy 0 <= low < high")
	}
	if d.ADCSamples < 1 {
		return fmt.Errorf("detector.adc_samples must be >= 1")
	}
	if d.BaselineAlpha <= 0 || d.BaselineAlpha > 1 {
		return fmt.Errorf("detector.baseline_alpha must be in (0, 1]")
	}
	if d.BlockAfterLidOpenMs < 0 {
		return fmt.Errorf("detector.block_after_lid_open_ms must be >= 0")
	}

	a := cfg.Audio
	if a.Samples < 1 {
		return fmt.Errorf("audio.samples must be >= 1")
	}
	if a.MainProbability < 50 || a.MainProbability > 100 {
		return fmt.Errorf("audio.main_probability must be between 50 and 100")
	}
	if a.MaxSampleBytes <= 0 {
		return fmt.Errorf("audio.max_sample_bytes must be > 0")
	}
	if a.CooldownMs < 0 {
		return fmt.Errorf("audio.cooldown_ms must be >= 0")
	}

	m := cfg.Modes
	if m.BootTimeMs < 0 {
		return fmt.Errorf("modes.boot_time_ms must be >= 0")
	}
	if m.ConfigTimeoutMs <= 0 {
		return fmt.Errorf("modes.config_timeout_ms must be > 0")
	}
	if m.ReactivateAfterMs < -1 {
		return fmt.Errorf("modes.reactivate_after_ms must be >= -1 (-1 disables reactivation)")
	}
	if m.RestartGraceMs < 0 {
		return fmt.Errorf("modes.restart_grace_ms must be >= 0")
	}

	me := cfg.Measure
	if me.UDPListen == "" {
		return fmt.Errorf("measure.udp_listen is required")
	}
	if me.UDPSendIntervalMs <= 0 {
		return fmt.Errorf("measure.udp_send_interval_ms must be > 0")
	}
	if me.SerialDevice != "" && me.SerialBaud <= 0 {
		return fmt.Errorf("measure.serial_baud must be > 0")
	}

	dbg := cfg.Debug
	if dbg.LogEntries < 1 || dbg.ADCValues < 1 || dbg.ADCAvgValues < 1 {
		return fmt.Errorf("debug ring sizes must be >= 1")
	}

	return nil
}
