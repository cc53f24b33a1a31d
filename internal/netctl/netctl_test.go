package netctl

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"
)

type fakeLink struct {
	mu          sync.Mutex
	connects    int
	disconnects int
}

func (l *fakeLink) Connect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connects++
	return nil
}

func (l *fakeLink) Disconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disconnects++
}

func (l *fakeLink) counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connects, l.disconnects
}

func pingMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "pong")
	})
	return mux
}

func waitActive(t *testing.T, c *RealController, want bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Active() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("controller never reached active=%v", want)
}

func TestControllerServesWhileUp(t *testing.T) {
	c := NewRealController(Config{ListenAddr: "127.0.0.1:0", Handler: pingMux()})
	defer c.Close()

	c.RequestUp()
	waitActive(t, c, true)

	resp, err := http.Get("http://" + c.Addr().String() + "/ping")
	if err != nil {
		t.Fatalf("GET /ping: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "pong\n" {
		t.Errorf("GET /ping = %d %q, want 200 with pong", resp.StatusCode, body)
	}
}

func TestControllerStopsServingAfterDown(t *testing.T) {
	c := NewRealController(Config{ListenAddr: "127.0.0.1:0", Handler: pingMux()})
	defer c.Close()

	c.RequestUp()
	waitActive(t, c, true)
	addr := c.Addr().String()

	c.RequestDown()
	waitActive(t, c, false)

	client := http.Client{Timeout: 500 * time.Millisecond}
	if _, err := client.Get("http://" + addr + "/ping"); err == nil {
		t.Errorf("server still reachable after teardown")
	}
}

func TestControllerComesBackAfterDown(t *testing.T) {
	c := NewRealController(Config{ListenAddr: "127.0.0.1:0", Handler: pingMux()})
	defer c.Close()

	c.RequestUp()
	waitActive(t, c, true)
	c.RequestDown()
	waitActive(t, c, false)
	c.RequestUp()
	waitActive(t, c, true)

	resp, err := http.Get("http://" + c.Addr().String() + "/ping")
	if err != nil {
		t.Fatalf("GET /ping after reactivation: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /ping = %d, want 200", resp.StatusCode)
	}
}

func TestControllerDrivesLink(t *testing.T) {
	link := &fakeLink{}
	c := NewRealController(Config{ListenAddr: "127.0.0.1:0", Handler: pingMux(), Link: link})
	defer c.Close()

	c.RequestUp()
	waitActive(t, c, true)
	if connects, _ := link.counts(); connects != 1 {
		t.Errorf("connects = %d after up, want 1", connects)
	}

	c.RequestDown()
	waitActive(t, c, false)
	if _, disconnects := link.counts(); disconnects != 1 {
		t.Errorf("disconnects = %d after down, want 1", disconnects)
	}
}

func TestControllerCloseWithoutStart(t *testing.T) {
	c := NewRealController(Config{ListenAddr: "127.0.0.1:0", Handler: pingMux()})
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestFakeControllerTransitions(t *testing.T) {
	f := NewFakeController(true)
	if !f.Active() {
		t.Fatalf("fake should start up")
	}

	f.RequestDown()
	if f.Active() || f.DownRequests != 1 {
		t.Errorf("after RequestDown: active=%v downs=%d", f.Active(), f.DownRequests)
	}

	f.RequestUp()
	if !f.Active() || f.UpRequests != 1 {
		t.Errorf("after RequestUp: active=%v ups=%d", f.Active(), f.UpRequests)
	}
}
