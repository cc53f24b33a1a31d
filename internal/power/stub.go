//go:build !linux

package power

import "errors"

// Login1Restarter is only functional on linux.
type Login1Restarter struct{}

func NewLogin1Restarter() *Login1Restarter {
	return &Login1Restarter{}
}

func (r *Login1Restarter) Restart() error {
	return errors.New("device restart requires linux")
}
