package gpio

// FakeSwitch is a test double that records the values driven onto the line.
type FakeSwitch struct {
	// On is the current line level.
	On bool

	// History records every level passed to Set, in order.
	History []bool

	// Closed tracks if Close was called
	Closed bool

	// SetError, if set, will be returned by Set()
	SetError error
}

// NewFakeSwitch creates a FakeSwitch with the line low.
func NewFakeSwitch() *FakeSwitch {
	return &FakeSwitch{}
}

// Set records the requested level.
func (f *FakeSwitch) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.On = on
	f.History = append(f.History, on)
	return nil
}

// Close marks the switch as closed and drops the line.
func (f *FakeSwitch) Close() error {
	f.On = false
	f.Closed = true
	return nil
}

// Reset returns the switch to its initial state.
func (f *FakeSwitch) Reset() {
	f.On = false
	f.History = nil
	f.Closed = false
	f.SetError = nil
}
