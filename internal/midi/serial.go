package midi

import (
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
)

// DefaultBaudRate is the MIDI DIN rate. USB serial bridges usually run faster.
const DefaultBaudRate = 31250

// PortOptions describes the serial connection used for MIDI output.
type PortOptions struct {
	BaudRate int
}

// Normalize applies defaults for any unset values.
func (o PortOptions) Normalize() PortOptions {
	if o.BaudRate <= 0 {
		o.BaudRate = DefaultBaudRate
	}
	return o
}

// SerialMode converts the options into the mode go.bug.st/serial expects.
// MIDI framing is always 8N1.
func (o PortOptions) SerialMode() *serial.Mode {
	opts := o.Normalize()
	return &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// SerialTransport writes raw control-change bytes to a serial port.
type SerialTransport struct {
	mu      sync.Mutex
	port    io.WriteCloser
	channel int
}

// NewSerialTransport opens path and sends on the given zero-based channel.
func NewSerialTransport(path string, opts PortOptions, channel int) (*SerialTransport, error) {
	if channel < 0 || channel > 15 {
		return nil, fmt.Errorf("midi: channel %d out of range 0..15", channel)
	}
	port, err := serial.Open(path, opts.SerialMode())
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	return newSerialTransport(port, channel), nil
}

func newSerialTransport(port io.WriteCloser, channel int) *SerialTransport {
	return &SerialTransport{port: port, channel: channel}
}

// Send writes one control change.
func (t *SerialTransport) Send(controller, value int) error {
	cc := ControlChange{Channel: t.channel, Controller: controller, Value: value}
	if err := cc.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	b := cc.Bytes()
	n, err := t.port.Write(b)
	if err != nil {
		return fmt.Errorf("write %s: %w", cc, err)
	}
	if n != len(b) {
		return fmt.Errorf("write %s: short write (%d of %d bytes)", cc, n, len(b))
	}
	return nil
}

// Close closes the port.
func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port.Close()
}
