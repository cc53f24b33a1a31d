// Package gpio drives the amplifier-enable line with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Switch drives a single GPIO output line.
type Switch interface {
	// Set drives the line high (true) or low (false).
	Set(on bool) error

	// Close releases GPIO resources, leaving the line low.
	Close() error
}

// Default wiring (BCM numbering)
const (
	DefaultChip    = "gpiochip0"
	DefaultAmpLine = 25 // amplifier enable
)
