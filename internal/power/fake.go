package power

// FakeRestarter records restart requests for tests.
type FakeRestarter struct {
	// Calls counts how often Restart was invoked.
	Calls int

	// RestartError, if set, will be returned by Restart()
	RestartError error
}

var _ Restarter = (*FakeRestarter)(nil)

// NewFakeRestarter creates a FakeRestarter.
func NewFakeRestarter() *FakeRestarter {
	return &FakeRestarter{}
}

// Restart records the call.
func (f *FakeRestarter) Restart() error {
	f.Calls++
	return f.RestartError
}
