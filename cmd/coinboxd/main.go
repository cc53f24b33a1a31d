// Command coinboxd runs the coin-operated sound device: it samples the
// light sensor, turns shadow transients into coin events, plays jingles
// and serves the configuration API.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TuDo-Makerspace/Coinbox/internal/audio"
	"github.com/TuDo-Makerspace/Coinbox/internal/config"
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
	"github.com/TuDo-Makerspace/Coinbox/internal/web"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML configuration (empty uses built-in defaults)")
	broker := flag.String("broker", "", `Override mqtt.broker from the configuration ("off" disables)`)
	listen := flag.String("listen", "", "Override the HTTP listen address from the configuration")
	printConfig := flag.Bool("print-config", false, "Print the effective configuration and exit")

	flag.Parse()

	if err := run(*cfgPath, *broker, *listen, *printConfig); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfgPath, broker, listen string, printConfig bool) error {
	// Load configuration
	cfg := config.Default()
	if cfgPath != "" {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
	}
	switch broker {
	case "":
	case "off":
		cfg.MQTT.Broker = ""
	default:
		cfg.MQTT.Broker = broker
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if err := config.Validate(&cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Print config mode
	if printConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		os.Stdout.Write(out)
		return nil
	}

	// Mirror the log into a ring so GET /log can serve recent lines.
	lines := ringlog.NewLines(cfg.Debug.LogEntries)
	log.SetOutput(io.MultiWriter(os.Stderr, lines))
	rawRing := ringlog.NewValues(cfg.Debug.ADCValues)
	avgRing := ringlog.NewValues(cfg.Debug.ADCAvgValues)

	// Initialize the sample store. A box that cannot play anything for a
	// paid coin must not run, so missing default assets are fatal.
	assets, err := store.NewDiskStore(cfg.DataDir, cfg.Audio.Samples, cfg.Audio.MaxSampleBytes)
	if err != nil {
		return fmt.Errorf("open sample store: %w", err)
	}
	if err := assets.EnsureDefaults(); err != nil {
		return fmt.Errorf("install default samples: %w", err)
	}

	// Initialize light sensor
	src, err := sensor.NewRealSource(cfg.Sensor.Device)
	if err != nil {
		return fmt.Errorf("init light sensor: %w", err)
	}
	defer src.Close()

	// Initialize amplifier switch
	amp, err := gpio.NewRealSwitch(cfg.Audio.AmpGPIOChip, cfg.Audio.AmpGPIOLine)
	if err != nil {
		return fmt.Errorf("init amplifier gpio: %w", err)
	}
	defer amp.Close()

	// Initialize playback
	sink, err := audio.NewGstSink()
	if err != nil {
		return fmt.Errorf("init audio pipeline: %w", err)
	}
	defer sink.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sink.Service(ctx)

	detector := logic.NewDetector(logic.DetectorConfig{
		SpikeThreshold: cfg.Detector.SpikeThreshold,
		SpikeMax:       msDuration(cfg.Detector.SpikeMaxMs),
		SamplePeriod:   time.Duration(cfg.Detector.SamplePeriodUs) * time.Microsecond,
		LowThreshold:   uint16(cfg.Detector.LowThreshold),
		HighThreshold:  uint16(cfg.Detector.HighThreshold),
		BlockHold:      msDuration(cfg.Detector.BlockAfterLidOpenMs),
		AverageWindow:  cfg.Detector.ADCSamples,
		BaselineAlpha:  cfg.Detector.BaselineAlpha,
	})
	selector := logic.NewSelector(cfg.Audio.Samples, cfg.Audio.MainProbability, nil)

	// Initialize MQTT. The box keeps accepting coins without a broker,
	// so an unreachable one only costs the event stream.
	var (
		pub  events.Publisher
		conn events.ConnectionStatus
		link netctl.Link
	)
	if cfg.MQTT.Broker != "" {
		rp, err := events.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			log.Printf("mqtt: %v, continuing without events", err)
		} else {
			defer rp.Close()
			pub, conn, link = rp, rp, rp
		}
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		SamplePeriodUs:  int64(cfg.Detector.SamplePeriodUs),
		SpikeThreshold:  cfg.Detector.SpikeThreshold,
		Samples:         cfg.Audio.Samples,
		MainProbability: cfg.Audio.MainProbability,
		Broker:          cfg.MQTT.Broker,
		HTTPPort:        cfg.Listen,
		DataDir:         cfg.DataDir,
	})

	// Telemetry endpoints for measurement mode
	telemetry := measure.Multi{
		measure.NewUDPStreamer(cfg.Measure.UDPListen, msDuration(cfg.Measure.UDPSendIntervalMs)),
	}
	if cfg.Measure.SerialDevice != "" {
		telemetry = append(telemetry, measure.NewSerialMirror(cfg.Measure.SerialDevice, cfg.Measure.SerialBaud))
	}

	// The controller serves the web handlers, the handlers forward to the
	// scheduler and the scheduler drives the controller. The function
	// literal closes the cycle; websrv is assigned before anything
	// listens.
	var websrv *web.Server
	netc := netctl.NewRealController(netctl.Config{
		ListenAddr: cfg.Listen,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			websrv.Handler().ServeHTTP(w, r)
		}),
		MDNSInstance: cfg.MDNSInstance,
		Link:         link,
	})
	defer netc.Close()

	scheduler := sched.New(sched.Config{
		BootGrace:     msDuration(cfg.Modes.BootTimeMs),
		ConfigTimeout: msDuration(cfg.Modes.ConfigTimeoutMs),
		Reactivate:    optionalMs(cfg.Modes.ReactivateAfterMs),
		RestartGrace:  msDuration(cfg.Modes.RestartGraceMs),
		Cooldown:      msDuration(cfg.Audio.CooldownMs),
		Heartbeat:     optionalMs(cfg.MQTT.HeartbeatMs),
	}, sched.Deps{
		Sensor:    src,
		Detector:  detector,
		Selector:  selector,
		Sink:      sink,
		Amp:       amp,
		Store:     assets,
		Events:    pub,
		ConnState: conn,
		Network:   netc,
		Telemetry: telemetry,
		Tracker:   tracker,
		Restarter: power.NewLogin1Restarter(),
		RawRing:   rawRing,
		AvgRing:   avgRing,
	})
	websrv = web.New(scheduler, tracker, lines, rawRing, avgRing)
	netc.RequestUp()

	// Publish retained STARTUP event
	if pub != nil {
		err := pub.PublishSystem(events.SystemEvent{
			Timestamp: time.Now(),
			Event:     "STARTUP",
			Config: &events.SystemConfig{
				SamplePeriodUs:  cfg.Detector.SamplePeriodUs,
				SpikeThreshold:  cfg.Detector.SpikeThreshold,
				Samples:         cfg.Audio.Samples,
				MainProbability: cfg.Audio.MainProbability,
				Broker:          cfg.MQTT.Broker,
			},
			Retained: true,
		})
		if err != nil {
			log.Printf("publish startup event: %v", err)
		}
	}

	log.Printf("started: listen=%s data=%s sensor=%s broker=%s",
		cfg.Listen, cfg.DataDir, cfg.Sensor.Device, brokerOrOff(cfg.MQTT.Broker))

	ticker := time.NewTicker(time.Duration(cfg.Detector.SamplePeriodUs) * time.Microsecond)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return scheduler.Run(time.Now, ticker.C, sigCh)
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// optionalMs maps the "-1 disables" config idiom onto a zero duration.
func optionalMs(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func brokerOrOff(broker string) string {
	if broker == "" {
		return "off"
	}
	return broker
}
