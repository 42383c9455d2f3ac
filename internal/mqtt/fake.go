package mqtt

import (
	"time"

	"github.com/sweeney/range-controller/internal/midi"
)

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	// Channel is stamped onto every recorded control change.
	Channel int

	// Now supplies payload timestamps; defaults to time.Now.
	Now func() time.Time

	// Sent contains all control changes that were published.
	Sent []midi.ControlChange

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// SendError, if set, will be returned by Send.
	SendError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Send records the control change.
func (f *FakePublisher) Send(controller, value int) error {
	if f.SendError != nil {
		return f.SendError
	}

	cc := midi.ControlChange{Channel: f.Channel, Controller: controller, Value: value}
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	payload, err := FormatPayload(cc, now())
	if err != nil {
		return err
	}
	f.Sent = append(f.Sent, cc)
	f.Payloads = append(f.Payloads, payload)

	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Events returns the names of recorded system events, in order.
func (f *FakePublisher) Events() []string {
	out := make([]string, len(f.SystemEvents))
	for i, e := range f.SystemEvents {
		out[i] = e.Event
	}
	return out
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.Sent = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.SendError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
