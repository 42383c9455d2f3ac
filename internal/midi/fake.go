package midi

// FakeTransport records sent control changes for test assertions.
type FakeTransport struct {
	// Channel is stamped onto every recorded message.
	Channel int

	// Sent contains every control change that was sent.
	Sent []ControlChange

	// SendError, if set, will be returned by Send and nothing is recorded.
	SendError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeTransport creates a FakeTransport for testing.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{}
}

// Send records the control change.
func (f *FakeTransport) Send(controller, value int) error {
	if f.SendError != nil {
		return f.SendError
	}
	f.Sent = append(f.Sent, ControlChange{Channel: f.Channel, Controller: controller, Value: value})
	return nil
}

// Close marks the transport as closed.
func (f *FakeTransport) Close() error {
	f.Closed = true
	return nil
}

// Values returns the values sent on controller, in order.
func (f *FakeTransport) Values(controller int) []int {
	var out []int
	for _, cc := range f.Sent {
		if cc.Controller == controller {
			out = append(out, cc.Value)
		}
	}
	return out
}

// Reset clears recorded messages.
func (f *FakeTransport) Reset() {
	f.Sent = nil
	f.SendError = nil
	f.Closed = false
}
