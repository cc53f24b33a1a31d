// Package ringlog keeps bounded in-memory histories of log lines and
// sensor readings for the debug endpoints.
package ringlog

import (
	"strings"
	"sync"
)

// DefaultLineLen is the per-entry cap; longer lines are truncated.
const DefaultLineLen = 128

// Lines is a fixed-capacity ring of recent log lines. It implements
// io.Writer so it can be teed into the daemon's log output.
type Lines struct {
	mu      sync.Mutex
	entries []string
	next    int
	full    bool
	maxLen  int
}

// NewLines creates a line ring holding the most recent capacity entries.
func NewLines(capacity int) *Lines {
	if capacity < 1 {
		capacity = 1
	}
	return &Lines{entries: make([]string, capacity), maxLen: DefaultLineLen}
}

// Write records every non-empty line in p. The standard log package
// writes one record per call, so splitting on newlines here is enough.
func (l *Lines) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range strings.Split(string(p), "\n") {
		if line == "" {
			continue
		}
		l.push(line)
	}
	return len(p), nil
}

func (l *Lines) push(line string) {
	if len(line) > l.maxLen {
		line = line[:l.maxLen]
	}
	l.entries[l.next] = line
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
}

// Snapshot returns the retained lines, oldest first.
func (l *Lines) Snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.full {
		return append([]string(nil), l.entries[:l.next]...)
	}
	out := make([]string, 0, len(l.entries))
	out = append(out, l.entries[l.next:]...)
	return append(out, l.entries[:l.next]...)
}

// Values is a fixed-capacity ring of recent sensor readings.
type Values struct {
	mu   sync.Mutex
	vals []uint16
	next int
	full bool
}

// NewValues creates a value ring holding the most recent capacity
// readings.
func NewValues(capacity int) *Values {
	if capacity < 1 {
		capacity = 1
	}
	return &Values{vals: make([]uint16, capacity)}
}

// Push records one reading.
func (v *Values) Push(val uint16) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vals[v.next] = val
	v.next = (v.next + 1) % len(v.vals)
	if v.next == 0 {
		v.full = true
	}
}

// Snapshot returns the retained readings, oldest first.
func (v *Values) Snapshot() []uint16 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.full {
		return append([]uint16(nil), v.vals[:v.next]...)
	}
	out := make([]uint16, 0, len(v.vals))
	out = append(out, v.vals[v.next:]...)
	return append(out, v.vals[:v.next]...)
}
