package measure

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"
)

// UDPStreamer sends readings as ASCII lines to the last client that sent
// a datagram. Any inbound packet (re)registers the sender; sends are
// rate-limited to one per interval.
type UDPStreamer struct {
	addr     string
	interval time.Duration

	mu       sync.Mutex
	conn     net.PacketConn
	client   net.Addr
	lastSend time.Time
	done     chan struct{}
}

var _ Streamer = (*UDPStreamer)(nil)

// NewUDPStreamer creates a streamer listening on addr once started.
func NewUDPStreamer(addr string, interval time.Duration) *UDPStreamer {
	return &UDPStreamer{addr: addr, interval: interval}
}

// Start binds the socket and begins watching for clients.
func (u *UDPStreamer) Start() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn != nil {
		return nil
	}
	conn, err := net.ListenPacket("udp", u.addr)
	if err != nil {
		return fmt.Errorf("listen udp %s: %w", u.addr, err)
	}
	u.conn = conn
	u.client = nil
	u.lastSend = time.Time{}
	u.done = make(chan struct{})
	go u.readLoop(conn, u.done)
	log.Printf("measure: udp streamer listening on %s", conn.LocalAddr())
	return nil
}

// readLoop registers the sender of every inbound datagram as the client.
// The payload itself is discarded.
func (u *UDPStreamer) readLoop(conn net.PacketConn, done chan struct{}) {
	buf := make([]byte, 64)
	for {
		_, addr, err := conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-done:
			default:
				log.Printf("measure: udp read: %v", err)
			}
			return
		}
		u.mu.Lock()
		u.client = addr
		u.mu.Unlock()
	}
}

// Addr returns the bound address, or nil when stopped.
func (u *UDPStreamer) Addr() net.Addr {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil {
		return nil
	}
	return u.conn.LocalAddr()
}

// Push sends the reading to the registered client unless the rate limit
// suppresses it.
func (u *UDPStreamer) Push(raw uint16, now time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil || u.client == nil {
		return
	}
	if !u.lastSend.IsZero() && now.Sub(u.lastSend) < u.interval {
		return
	}
	u.lastSend = now
	if _, err := u.conn.WriteTo([]byte(fmt.Sprintf("%d\n", raw)), u.client); err != nil {
		log.Printf("measure: udp send: %v", err)
	}
}

// Stop closes the socket and forgets the client.
func (u *UDPStreamer) Stop() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil {
		return nil
	}
	close(u.done)
	err := u.conn.Close()
	u.conn = nil
	u.client = nil
	if err != nil {
		return fmt.Errorf("close udp streamer: %w", err)
	}
	return nil
}
