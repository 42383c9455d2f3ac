// Package midi encodes control-change messages and delivers them to the host.
package midi

import "fmt"

// Transport sends control changes to the host.
type Transport interface {
	// Send delivers one control change. Returns error if sending fails
	// (should not crash the process).
	Send(controller, value int) error

	// Close releases the transport.
	Close() error
}

// DefaultChannel is MIDI channel 1 (zero-based 0).
const DefaultChannel = 0

const statusControlChange = 0xB0

// ControlChange is a single control-change message.
type ControlChange struct {
	Channel    int
	Controller int
	Value      int
}

// Validate checks every field fits its MIDI width.
func (c ControlChange) Validate() error {
	if c.Channel < 0 || c.Channel > 15 {
		return fmt.Errorf("midi: channel %d out of range 0..15", c.Channel)
	}
	if c.Controller < 0 || c.Controller > 127 {
		return fmt.Errorf("midi: controller %d out of range 0..127", c.Controller)
	}
	if c.Value < 0 || c.Value > 127 {
		return fmt.Errorf("midi: value %d out of range 0..127", c.Value)
	}
	return nil
}

// Bytes returns the three-byte wire encoding.
func (c ControlChange) Bytes() []byte {
	return []byte{
		statusControlChange | byte(c.Channel&0x0F),
		byte(c.Controller & 0x7F),
		byte(c.Value & 0x7F),
	}
}

func (c ControlChange) String() string {
	return fmt.Sprintf("CC%d=%d ch%d", c.Controller, c.Value, c.Channel+1)
}
