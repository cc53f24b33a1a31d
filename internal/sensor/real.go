package sensor

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// RealSource reads raw samples from an IIO sysfs value node. The node is
// kept open and rewound per read, which is cheap enough for the 500 Hz
// sampling rate.
type RealSource struct {
	f   *os.File
	buf [16]byte
}

// NewRealSource opens the given sysfs node.
func NewRealSource(path string) (*RealSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sensor: %w", err)
	}
	return &RealSource{f: f}, nil
}

// Read rewinds the node and parses one decimal reading.
func (s *RealSource) Read() (uint16, error) {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewind sensor: %w", err)
	}
	n, err := s.f.Read(s.buf[:])
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("read sensor: %w", err)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(s.buf[:n])), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("parse sensor value: %w", err)
	}
	return uint16(v), nil
}

// Close releases the sysfs node.
func (s *RealSource) Close() error {
	return s.f.Close()
}
