// Package sensor owns one ranging sensor's lifecycle: power, bus address,
// ranging mode and the non-blocking read path.
package sensor

import (
	"fmt"

	"github.com/sweeney/range-controller/internal/gpio"
	"github.com/sweeney/range-controller/internal/logic"
	"go.uber.org/zap"
)

// Driver is the ranging-sensor driver contract, bound to one device.
type Driver interface {
	// SetAddress moves the device to a new 7-bit bus address.
	SetAddress(addr uint16) error

	// StartRanging puts the device into continuous ranging.
	StartRanging() error

	// StopRanging halts continuous ranging.
	StopRanging() error

	// DataReady reports whether a new measurement is waiting.
	DataReady() (bool, error)

	// Distance returns the latest measurement. ok is false when the
	// device flagged the measurement as invalid.
	Distance() (d logic.Millimeters, ok bool, err error)

	// ClearInterrupt acknowledges the measurement so the next one can be reported.
	ClearInterrupt() error
}

// Opener binds a Driver to the device answering on addr ("new(bus)").
type Opener func(addr uint16) (Driver, error)

// State is a sensor's lifecycle state.
type State int

const (
	StateOff State = iota
	StatePowering
	StateRanging
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateOff:
		return "OFF"
	case StatePowering:
		return "POWERING"
	case StateRanging:
		return "RANGING"
	case StateFailed:
		return "FAILED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Handle owns one physical sensor.
// Not safe for concurrent use; the array polls from a single loop.
type Handle struct {
	index int
	line  gpio.Line
	drv   Driver
	addr  uint16
	state State
	err   error

	last    logic.Millimeters
	hasLast bool

	log *zap.SugaredLogger
}

// NewHandle creates a handle for the sensor at ordinal index, enabled through line.
func NewHandle(index int, line gpio.Line, log *zap.SugaredLogger) *Handle {
	return &Handle{
		index: index,
		line:  line,
		log:   log.With("sensor", index),
	}
}

// Index returns the sensor ordinal.
func (h *Handle) Index() int { return h.index }

// State returns the lifecycle state.
func (h *Handle) State() State { return h.state }

// Address returns the bus address, zero before the driver is attached.
func (h *Handle) Address() uint16 { return h.addr }

// Err returns the error that failed the sensor, if any.
func (h *Handle) Err() error { return h.err }

// Live reports whether the sensor is ranging.
func (h *Handle) Live() bool { return h.state == StateRanging }

// LastDistance returns the last valid raw reading.
func (h *Handle) LastDistance() (logic.Millimeters, bool) {
	return h.last, h.hasLast
}

// Shutdown drives the enable line low, holding the sensor in reset.
func (h *Handle) Shutdown() error {
	if err := h.line.Set(false); err != nil {
		return fmt.Errorf("disable sensor %d: %w", h.index, err)
	}
	if h.state != StateFailed {
		h.state = StateOff
	}
	return nil
}

// PowerOn drives the enable line high. The device then needs a settle delay
// before it answers on its factory-default address.
func (h *Handle) PowerOn() error {
	h.state = StatePowering
	if err := h.line.Set(true); err != nil {
		return fmt.Errorf("enable sensor %d: %w", h.index, err)
	}
	return nil
}

// Attach binds the driver found at addr.
func (h *Handle) Attach(drv Driver, addr uint16) {
	h.drv = drv
	h.addr = addr
}

// Reassign moves the sensor to addr.
func (h *Handle) Reassign(addr uint16) error {
	if h.drv == nil {
		return fmt.Errorf("sensor %d: no driver attached", h.index)
	}
	if err := h.drv.SetAddress(addr); err != nil {
		return fmt.Errorf("set address 0x%02x on sensor %d: %w", addr, h.index, err)
	}
	h.addr = addr
	return nil
}

// StartRanging puts an addressed sensor into continuous ranging. Idempotent.
func (h *Handle) StartRanging() error {
	switch h.state {
	case StateRanging:
		return nil
	case StateFailed:
		return fmt.Errorf("sensor %d failed: %w", h.index, h.err)
	}
	if h.drv == nil {
		return fmt.Errorf("sensor %d: no driver attached", h.index)
	}
	if err := h.drv.StartRanging(); err != nil {
		return fmt.Errorf("start ranging on sensor %d: %w", h.index, err)
	}
	h.state = StateRanging
	return nil
}

// Fail marks the sensor failed and drives it back into shutdown so a device
// left on the default address cannot collide with a sensor powered later.
func (h *Handle) Fail(err error) {
	h.state = StateFailed
	h.err = err
	if serr := h.line.Set(false); serr != nil {
		h.log.Warnw("could not return failed sensor to shutdown", "error", serr)
	}
}

// Read polls the sensor without blocking. It returns false when no new data is
// ready, when the measurement is invalid, or when the driver errors (logged).
// A measurement is only returned once it has been acknowledged, so the next
// poll never sees it again.
func (h *Handle) Read() (logic.Millimeters, bool) {
	if h.state != StateRanging {
		return 0, false
	}

	ready, err := h.drv.DataReady()
	if err != nil {
		h.log.Warnw("data ready check failed", "error", err)
		return 0, false
	}
	if !ready {
		return 0, false
	}

	d, ok, err := h.drv.Distance()
	if cerr := h.drv.ClearInterrupt(); cerr != nil {
		// Still pending: the next poll would see this measurement again.
		h.log.Warnw("clear interrupt failed", "error", cerr)
		return 0, false
	}
	if err != nil {
		h.log.Warnw("read distance failed", "error", err)
		return 0, false
	}
	if !ok {
		return 0, false
	}

	h.last = d
	h.hasLast = true
	return d, true
}

// Stop halts ranging and drives the sensor into shutdown.
func (h *Handle) Stop() error {
	var stopErr error
	if h.state == StateRanging && h.drv != nil {
		stopErr = h.drv.StopRanging()
	}
	if err := h.Shutdown(); err != nil {
		return err
	}
	if stopErr != nil {
		return fmt.Errorf("stop ranging on sensor %d: %w", h.index, stopErr)
	}
	return nil
}
