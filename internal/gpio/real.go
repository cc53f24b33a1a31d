//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealSwitch drives an output line on actual hardware using the Linux GPIO
// character device.
type RealSwitch struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealSwitch requests the given line as an output, driven low.
func NewRealSwitch(chipName string, offset int) (*RealSwitch, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request line %d: %w", offset, err)
	}

	return &RealSwitch{chip: chip, line: line}, nil
}

// Set drives the line high or low.
func (s *RealSwitch) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := s.line.SetValue(v); err != nil {
		return fmt.Errorf("set line: %w", err)
	}
	return nil
}

// Close drives the line low and reconfigures it to input with pull-down
// (matching Pi boot defaults) before releasing, so the amplifier stays
// muted across restarts.
func (s *RealSwitch) Close() error {
	var errs []error

	if s.line != nil {
		if err := s.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear line: %w", err))
		}
		if err := s.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line: %w", err))
		}
		if err := s.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
