package netctl

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
)

// Config wires a RealController.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string

	// Handler serves the configuration API.
	Handler http.Handler

	// MDNSInstance is the announced instance name; empty disables mDNS.
	MDNSInstance string

	// Link is the MQTT connection driven on up/down; nil disables it.
	Link Link
}

// RealController runs the services from a single goroutine. The latest
// up or down request wins; intermediate requests are dropped.
type RealController struct {
	cfg Config

	desired   chan bool
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	active bool
	addr   net.Addr

	// owned by the run goroutine
	srv      *http.Server
	announce *mdns.Server
}

var _ Controller = (*RealController)(nil)

// NewRealController starts the controller with all services down.
func NewRealController(cfg Config) *RealController {
	c := &RealController{
		cfg:     cfg,
		desired: make(chan bool, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go c.run()
	return c
}

// RequestUp asks for the services to be brought up. Never blocks.
func (c *RealController) RequestUp() { c.request(true) }

// RequestDown asks for the services to be torn down. Never blocks.
func (c *RealController) RequestDown() { c.request(false) }

// request replaces any pending request with the new one.
func (c *RealController) request(up bool) {
	for {
		select {
		case c.desired <- up:
			return
		default:
			select {
			case <-c.desired:
			default:
			}
		}
	}
}

// Active reports whether the services are up.
func (c *RealController) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Addr returns the bound HTTP address, or nil while down.
func (c *RealController) Addr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// Close tears everything down and stops the controller.
func (c *RealController) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	<-c.stopped
	return nil
}

func (c *RealController) run() {
	defer close(c.stopped)
	for {
		select {
		case <-c.done:
			c.teardown()
			return
		case up := <-c.desired:
			if up {
				c.bringUp()
			} else {
				c.teardown()
			}
		}
	}
}

// bringUp starts the HTTP server first; mDNS and the MQTT link follow
// and may fail individually without taking the server down.
func (c *RealController) bringUp() {
	if c.Active() {
		return
	}

	ln, err := net.Listen("tcp", c.cfg.ListenAddr)
	if err != nil {
		log.Printf("netctl: listen %s: %v", c.cfg.ListenAddr, err)
		return
	}
	c.srv = &http.Server{Handler: c.cfg.Handler}
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("netctl: http server: %v", err)
		}
	}(c.srv)
	log.Printf("netctl: http server listening on %s", ln.Addr())

	if c.cfg.MDNSInstance != "" {
		c.announce = announceHTTP(c.cfg.MDNSInstance, ln.Addr().(*net.TCPAddr).Port)
	}

	if c.cfg.Link != nil {
		if err := c.cfg.Link.Connect(); err != nil {
			log.Printf("netctl: mqtt link: %v", err)
		}
	}

	c.mu.Lock()
	c.active = true
	c.addr = ln.Addr()
	c.mu.Unlock()
}

// announceHTTP registers the instance as an _http._tcp service.
func announceHTTP(instance string, port int) *mdns.Server {
	service, err := mdns.NewMDNSService(instance, "_http._tcp", "", "", port, nil,
		[]string{"coinbox configuration"})
	if err != nil {
		log.Printf("netctl: mdns service: %v", err)
		return nil
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		log.Printf("netctl: mdns server: %v", err)
		return nil
	}
	log.Printf("netctl: announced %s._http._tcp on port %d", instance, port)
	return server
}

func (c *RealController) teardown() {
	if !c.Active() {
		return
	}

	if c.announce != nil {
		if err := c.announce.Shutdown(); err != nil {
			log.Printf("netctl: mdns shutdown: %v", err)
		}
		c.announce = nil
	}

	if c.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := c.srv.Shutdown(ctx); err != nil {
			log.Printf("netctl: http shutdown: %v", err)
		}
		cancel()
		c.srv = nil
	}

	if c.cfg.Link != nil {
		c.cfg.Link.Disconnect()
	}

	c.mu.Lock()
	c.active = false
	c.addr = nil
	c.mu.Unlock()
	log.Printf("netctl: network services stopped")
}
