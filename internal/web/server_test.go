package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/TuDo-Makerspace/Coinbox/internal/audio"
	"github.com/TuDo-Makerspace/Coinbox/internal/events"
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

// fixture bundles the fakes behind a served handler. The scheduler runs
// on a real millisecond ticker, so requests resolve within a few loop
// iterations.
type fixture struct {
	assets  *store.FakeStore
	sink    *audio.FakeSink
	stream  *measure.FakeStreamer
	lines   *ringlog.Lines
	raw     *ringlog.Values
	avg     *ringlog.Values
	tracker *status.Tracker
}

func newTestServer(t *testing.T) (*httptest.Server, *fixture) {
	t.Helper()

	f := &fixture{
		assets: store.NewFakeStore(3),
		sink:   audio.NewFakeSink(),
		stream: measure.NewFakeStreamer(),
		lines:  ringlog.NewLines(150),
		raw:    ringlog.NewValues(256),
		avg:    ringlog.NewValues(256),
	}
	f.tracker = status.NewTracker(time.Now(), status.Config{
		SamplePeriodUs:  2000,
		SpikeThreshold:  100,
		Samples:         3,
		MainProbability: 70,
		Broker:          "tcp://192.168.0.10:1883",
		HTTPPort:        ":80",
		DataDir:         "/var/lib/coinbox",
	})

	det := logic.NewDetector(logic.DetectorConfig{
		SpikeThreshold: 100,
		SpikeMax:       90 * time.Millisecond,
		SamplePeriod:   2 * time.Millisecond,
		LowThreshold:   7,
		HighThreshold:  750,
		BlockHold:      2 * time.Second,
		AverageWindow:  1,
		BaselineAlpha:  0.02,
	})

	pub := events.NewFakePublisher()
	sc := sched.New(sched.Config{
		ConfigTimeout: 30 * time.Minute,
		RestartGrace:  time.Hour,
		Cooldown:      10 * time.Millisecond,
	}, sched.Deps{
		Sensor:    sensor.NewFakeSource([]uint16{500}),
		Detector:  det,
		Selector:  logic.NewSelector(3, 70, nil),
		Sink:      f.sink,
		Store:     f.assets,
		Events:    pub,
		ConnState: pub,
		Network:   netctl.NewFakeController(true),
		Telemetry: f.stream,
		Tracker:   f.tracker,
		Restarter: power.NewFakeRestarter(),
		RawRing:   f.raw,
		AvgRing:   f.avg,
	})

	ticker := time.NewTicker(time.Millisecond)
	sig := make(chan os.Signal, 1)
	go sc.Run(time.Now, ticker.C, sig)
	t.Cleanup(func() {
		sig <- syscall.SIGTERM
		ticker.Stop()
	})

	// With a zero boot grace the first tick leaves BOOT; wait for it so
	// requests never race the boot transition.
	deadline := time.Now().Add(2 * time.Second)
	for f.tracker.Snapshot().Mode != "READY" {
		if time.Now().After(deadline) {
			t.Fatal("scheduler never reached READY")
		}
		time.Sleep(time.Millisecond)
	}

	srv := New(sc, f.tracker, f.lines, f.raw, f.avg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, f
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func post(t *testing.T, url string, body []byte) (int, string) {
	t.Helper()
	resp, err := http.Post(url, "application/octet-stream", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(out)
}

func TestConfigAndUploadFlow(t *testing.T) {
	ts, f := newTestServer(t)

	code, body := get(t, ts.URL+"/config")
	if code != 200 || body != "Entering Config mode...\n" {
		t.Fatalf("GET /config: %d %q", code, body)
	}

	code, body = post(t, ts.URL+"/1", []byte("hello wav"))
	if code != 200 || body != "Sample uploaded successfully\n" {
		t.Fatalf("POST /1: %d %q", code, body)
	}
	if got := string(f.assets.Samples[1]); got != "hello wav" {
		t.Errorf("stored sample = %q", got)
	}
}

func TestUploadForbiddenOutsideConfig(t *testing.T) {
	ts, f := newTestServer(t)

	code, body := post(t, ts.URL+"/1", []byte("nope"))
	if code != http.StatusForbidden || body != "Forbidden: Not in config mode\n" {
		t.Fatalf("POST /1: %d %q", code, body)
	}
	if _, ok := f.assets.Samples[1]; !ok {
		t.Error("default sample should be untouched")
	}
}

func TestUploadRejectsOversizeBody(t *testing.T) {
	ts, _ := newTestServer(t)

	if code, body := get(t, ts.URL+"/config"); code != 200 {
		t.Fatalf("GET /config: %d %q", code, body)
	}

	big := bytes.Repeat([]byte("x"), 80001)
	code, body := post(t, ts.URL+"/1", big)
	if code != http.StatusInsufficientStorage || body != "Sample exceeds 5s\n" {
		t.Fatalf("oversize POST: %d %q", code, body)
	}
}

func TestPlayRoutes(t *testing.T) {
	ts, f := newTestServer(t)

	code, body := get(t, ts.URL+"/play0")
	if code != 200 || body != "Playing sample 0\n" {
		t.Fatalf("GET /play0: %d %q", code, body)
	}
	if len(f.sink.Plays) != 1 || f.sink.Plays[0] != "fake://sample0.wav" {
		t.Errorf("plays = %v", f.sink.Plays)
	}

	// Still playing, a second request must be refused.
	code, body = get(t, ts.URL+"/play1")
	if code != http.StatusConflict || body != "Sample already playing\n" {
		t.Errorf("busy play: %d %q", code, body)
	}

	f.sink.FinishPlayback()

	code, body = get(t, ts.URL+"/play9")
	if code != http.StatusNotFound || body != "Sample not found\n" {
		t.Errorf("GET /play9: %d %q", code, body)
	}
	code, _ = get(t, ts.URL+"/playx")
	if code != http.StatusNotFound {
		t.Errorf("GET /playx: %d", code)
	}
}

func TestMeasureRouteStartsTelemetry(t *testing.T) {
	ts, f := newTestServer(t)

	code, body := get(t, ts.URL+"/measure")
	if code != 200 || body != "Entering measurement mode...\n" {
		t.Fatalf("GET /measure: %d %q", code, body)
	}
	if !f.stream.Started {
		t.Error("telemetry streamer not started")
	}

	// CONFIG is unreachable from MEASURE.
	code, body = get(t, ts.URL+"/config")
	if code != http.StatusForbidden || body != "Forbidden: Wrong mode\n" {
		t.Errorf("GET /config from measure: %d %q", code, body)
	}
}

func TestRestartRoute(t *testing.T) {
	ts, _ := newTestServer(t)

	code, body := get(t, ts.URL+"/restart")
	if code != 200 || body != "Restarting...\n" {
		t.Fatalf("GET /restart: %d %q", code, body)
	}
}

func TestResetRoute(t *testing.T) {
	ts, f := newTestServer(t)

	code, body := get(t, ts.URL+"/reset")
	if code != http.StatusForbidden || body != "Forbidden: Not in config mode\n" {
		t.Fatalf("GET /reset outside config: %d %q", code, body)
	}

	if code, _ := get(t, ts.URL+"/config"); code != 200 {
		t.Fatal("could not enter config mode")
	}
	code, body = get(t, ts.URL+"/reset")
	if code != 200 || body != "Resetting samples...\n" {
		t.Fatalf("GET /reset: %d %q", code, body)
	}
	if f.assets.ResetCalls != 1 {
		t.Errorf("reset calls = %d, want 1", f.assets.ResetCalls)
	}
}

func TestDumpFormat(t *testing.T) {
	ts, f := newTestServer(t)

	f.avg.Push(501)
	f.avg.Push(502)

	_, body := get(t, ts.URL+"/dump")
	parts := strings.SplitN(body, "Averaged:\n", 2)
	if len(parts) != 2 {
		t.Fatalf("dump missing Averaged marker: %q", body)
	}
	if !strings.Contains(parts[1], "501\n") || !strings.Contains(parts[1], "502\n") {
		t.Errorf("averaged section = %q", parts[1])
	}
	for _, line := range strings.Fields(parts[0]) {
		for _, c := range line {
			if c < '0' || c > '9' {
				t.Fatalf("non-numeric raw dump line %q", line)
			}
		}
	}
}

func TestLogRoute(t *testing.T) {
	ts, f := newTestServer(t)

	f.lines.Write([]byte("sched: coin 1 accepted, sample 0\n"))

	code, body := get(t, ts.URL+"/log")
	if code != 200 {
		t.Fatalf("GET /log: %d", code)
	}
	if !strings.Contains(body, "coin 1 accepted") {
		t.Errorf("log body = %q", body)
	}
}

func TestStatusJSON(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if sj.Status.Mode == "" {
		t.Error("mode missing from status")
	}
	if sj.Status.Config.Samples != 3 || sj.Status.Config.MainProbability != 70 {
		t.Errorf("config = %+v", sj.Status.Config)
	}
	if sj.Status.Config.Broker != "tcp://192.168.0.10:1883" {
		t.Errorf("broker = %q", sj.Status.Config.Broker)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT connected from the fake publisher")
	}
}

func TestIndexPage(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	html := string(body)
	for _, want := range []string{"TuDo Coinbox", "Mode", "Baseline", "MQTT"} {
		if !strings.Contains(html, want) {
			t.Errorf("index page missing %q", want)
		}
	}
}
