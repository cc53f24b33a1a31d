package events

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	// CoinEvents contains all coin events that were published.
	CoinEvents []CoinEvent

	// CoinPayloads contains the JSON payloads for coin events.
	CoinPayloads [][]byte

	// ModeEvents contains all mode transitions that were published.
	ModeEvents []ModeEvent

	// ModePayloads contains the JSON payloads for mode transitions.
	ModePayloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by the publish methods.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	// Connects and Disconnects count the link control calls.
	Connects    int
	Disconnects int
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Connected: true}
}

// PublishCoin records the coin event.
func (f *FakePublisher) PublishCoin(event CoinEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	f.CoinEvents = append(f.CoinEvents, event)

	payload, err := FormatCoinPayload(event)
	if err != nil {
		return err
	}
	f.CoinPayloads = append(f.CoinPayloads, payload)

	return nil
}

// PublishMode records the mode transition.
func (f *FakePublisher) PublishMode(event ModeEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	f.ModeEvents = append(f.ModeEvents, event)

	payload, err := FormatModePayload(event)
	if err != nil {
		return err
	}
	f.ModePayloads = append(f.ModePayloads, payload)

	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// Connect marks the link up.
func (f *FakePublisher) Connect() error {
	f.Connects++
	f.Connected = true
	return nil
}

// Disconnect marks the link down.
func (f *FakePublisher) Disconnect() {
	f.Disconnects++
	f.Connected = false
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.CoinEvents = nil
	f.CoinPayloads = nil
	f.ModeEvents = nil
	f.ModePayloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.PublishError = nil
	f.Closed = false
	f.Connected = true
	f.Connects = 0
	f.Disconnects = 0
}
