//go:build linux

package power

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Login1Restarter reboots the machine through systemd-logind. The daemon
// runs as a system service, so the Reboot call goes over the system bus
// and does not prompt for interactive authorization.
type Login1Restarter struct{}

// NewLogin1Restarter returns a restarter backed by org.freedesktop.login1.
func NewLogin1Restarter() *Login1Restarter {
	return &Login1Restarter{}
}

// Restart asks logind for an immediate reboot.
func (r *Login1Restarter) Restart() error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("connect system bus: %w", err)
	}
	obj := conn.Object("org.freedesktop.login1", "/org/freedesktop/login1")
	call := obj.Call("org.freedesktop.login1.Manager.Reboot", 0, false)
	if call.Err != nil {
		return fmt.Errorf("login1 reboot: %w", call.Err)
	}
	return nil
}
