// Package power performs the full device reset that ends RESTART mode.
package power

// Restarter reboots the device. On the coinbox the restart path is the
// only way back from CONFIG and MEASURE, so a failed restart leaves the
// daemon to exit and be respawned by the service manager instead.
type Restarter interface {
	Restart() error
}
