// Package sensor reads the analog light sensor inside the coin slot.
// The real implementation polls a Linux IIO voltage channel through sysfs.
// The fake implementation allows testing without hardware.
package sensor

// Source produces raw light-sensor readings.
type Source interface {
	// Read returns one raw sample. Values are bounded by the ADC width;
	// a disconnected or miswired sensor shows up as an out-of-band value
	// handled by the detector's plausibility guard, not as an error.
	Read() (uint16, error)

	// Close releases the underlying channel.
	Close() error
}

// DefaultDevice is the sysfs raw-value node of the first IIO voltage
// channel, where an ADC hat on a Pi typically lands.
const DefaultDevice = "/sys/bus/iio/devices/iio:device0/in_voltage0_raw"
