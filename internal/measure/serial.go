package measure

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// SerialMirror prints every reading as an ASCII line on a serial port,
// matching the recorder tools that expect one integer per line.
type SerialMirror struct {
	device string
	baud   int

	mu   sync.Mutex
	port io.WriteCloser
}

var _ Streamer = (*SerialMirror)(nil)

// NewSerialMirror creates a mirror for the given device, typically
// /dev/ttyUSB0 at 115200 baud.
func NewSerialMirror(device string, baud int) *SerialMirror {
	return &SerialMirror{device: device, baud: baud}
}

// Start opens the serial port.
func (s *SerialMirror) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port != nil {
		return nil
	}
	port, err := serial.OpenPort(&serial.Config{Name: s.device, Baud: s.baud})
	if err != nil {
		return fmt.Errorf("open serial %s: %w", s.device, err)
	}
	s.port = port
	log.Printf("measure: serial mirror on %s at %d baud", s.device, s.baud)
	return nil
}

// Push writes the reading. A write error disables the mirror until the
// next Start so a dead port cannot flood the log.
func (s *SerialMirror) Push(raw uint16, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return
	}
	if _, err := fmt.Fprintf(s.port, "%d\n", raw); err != nil {
		log.Printf("measure: serial write: %v, disabling mirror", err)
		s.port.Close()
		s.port = nil
	}
}

// Stop closes the serial port.
func (s *SerialMirror) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	if err != nil {
		return fmt.Errorf("close serial mirror: %w", err)
	}
	return nil
}
