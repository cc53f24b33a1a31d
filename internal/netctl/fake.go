package netctl

// FakeController switches instantly for tests.
type FakeController struct {
	Up           bool
	UpRequests   int
	DownRequests int
	Closed       bool
}

var _ Controller = (*FakeController)(nil)

// NewFakeController creates a controller in the given state.
func NewFakeController(up bool) *FakeController {
	return &FakeController{Up: up}
}

// RequestUp brings the fake services up immediately.
func (f *FakeController) RequestUp() {
	f.Up = true
	f.UpRequests++
}

// RequestDown tears the fake services down immediately.
func (f *FakeController) RequestDown() {
	f.Up = false
	f.DownRequests++
}

// Active reports the fake state.
func (f *FakeController) Active() bool {
	return f.Up
}

// Close marks the controller closed.
func (f *FakeController) Close() error {
	f.Up = false
	f.Closed = true
	return nil
}

// Reset clears recorded state and leaves the services down.
func (f *FakeController) Reset() {
	*f = FakeController{}
}
