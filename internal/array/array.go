// Package array composes the ranging sensors into a polled controller source:
// it sequences sensors onto the shared bus, then turns each reading into a
// smoothed, mapped, change-gated control message.
package array

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/range-controller/internal/bus"
	"github.com/sweeney/range-controller/internal/gpio"
	"github.com/sweeney/range-controller/internal/logic"
	"github.com/sweeney/range-controller/internal/sensor"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrNoSensors is returned by Init when no sensor came up. It is fatal.
var ErrNoSensors = errors.New("no sensors were successfully initialized")

// State is the array lifecycle state.
type State string

const (
	StateUninitialized State = "UNINITIALIZED"
	StateInitializing  State = "INITIALIZING"
	StateRunning       State = "RUNNING"
	StateTerminated    State = "TERMINATED"
)

// Sender delivers a control message to the host.
type Sender interface {
	Send(controller, value int) error
}

// Hardware is what the array drives.
type Hardware struct {
	Bus   bus.Bus
	Lines []gpio.Line // one enable line per sensor, in ordinal order
	Open  sensor.Opener
	Sleep func(time.Duration)
}

// Emission is one control message the array sent.
type Emission struct {
	Sensor     int
	Controller int
	Value      int
	Distance   logic.Millimeters // smoothed
	Forced     bool
}

type channel struct {
	handle     *sensor.Handle
	filter     *logic.Filter
	gate       logic.Gate
	controller int

	value    int
	hasValue bool
	smoothed logic.Millimeters

	emitted    int
	sendErrors int
}

// Array owns every sensor and its filter and gate state.
// Not safe for concurrent use.
type Array struct {
	cfg      Config
	hw       Hardware
	sender   Sender
	mapper   logic.Mapper
	channels []*channel
	state    State
	log      *zap.SugaredLogger
}

// New creates an uninitialized array. Nothing touches the hardware until Init.
func New(cfg Config, hw Hardware, sender Sender, log *zap.SugaredLogger) (*Array, error) {
	if err := cfg.Validate(len(hw.Lines)); err != nil {
		return nil, fmt.Errorf("invalid array config: %w", err)
	}
	if hw.Sleep == nil {
		hw.Sleep = time.Sleep
	}

	a := &Array{
		cfg:    cfg,
		hw:     hw,
		sender: sender,
		mapper: logic.NewMapper(cfg.MinDistance, cfg.MaxDistance),
		state:  StateUninitialized,
		log:    log,
	}
	for i, line := range hw.Lines {
		a.channels = append(a.channels, &channel{
			handle:     sensor.NewHandle(i, line, log),
			filter:     logic.NewFilter(cfg.Alpha),
			controller: cfg.Controllers[i],
		})
	}
	return a, nil
}

// State returns the lifecycle state.
func (a *Array) State() State {
	return a.state
}

// Live returns the number of ranging sensors.
func (a *Array) Live() int {
	n := 0
	for _, c := range a.channels {
		if c.handle.Live() {
			n++
		}
	}
	return n
}

// Poll runs one cycle: every live sensor, in ordinal order, is read, filtered,
// mapped and gated. It returns the messages sent. Per-sensor failures skip that
// sensor for this cycle and never stop the cycle.
func (a *Array) Poll() []Emission {
	if a.state != StateRunning {
		return nil
	}
	var out []Emission
	for _, c := range a.channels {
		if !c.handle.Live() {
			continue
		}
		if e, ok := a.step(c); ok {
			out = append(out, e)
		}
	}
	return out
}

func (a *Array) step(c *channel) (e Emission, sent bool) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Errorw("sensor panicked, skipping cycle", "sensor", c.handle.Index(), "panic", r)
			e, sent = Emission{}, false
		}
	}()

	raw, ok := c.handle.Read()
	if !ok {
		return Emission{}, false
	}
	c.smoothed = c.filter.Update(raw)
	c.value = a.mapper.Map(c.smoothed)
	c.hasValue = true

	if !c.gate.ShouldEmit(c.value) {
		return Emission{}, false
	}
	return a.emit(c, false)
}

// Resync re-sends every sensor's current value regardless of the gate.
// Used after the host side reconnects; never part of the steady-state cycle.
func (a *Array) Resync() []Emission {
	if a.state != StateRunning {
		return nil
	}
	var out []Emission
	for _, c := range a.channels {
		if !c.handle.Live() || !c.hasValue {
			continue
		}
		c.gate.Force(c.value)
		if e, ok := a.emit(c, true); ok {
			out = append(out, e)
		}
	}
	return out
}

func (a *Array) emit(c *channel, forced bool) (Emission, bool) {
	idx := c.handle.Index()
	if err := a.sender.Send(c.controller, c.value); err != nil {
		// Forget the value so the next cycle retries it.
		c.gate.Invalidate()
		c.sendErrors++
		a.log.Warnw("send failed", "sensor", idx, "cc", c.controller, "value", c.value, "error", err)
		return Emission{}, false
	}
	c.emitted++
	a.log.Debugw("sent", "sensor", idx, "mm", float64(c.smoothed), "cc", c.controller, "value", c.value, "forced", forced)
	return Emission{
		Sensor:     idx,
		Controller: c.controller,
		Value:      c.value,
		Distance:   c.smoothed,
		Forced:     forced,
	}, true
}

// Close stops every sensor and drives all enable lines low.
func (a *Array) Close() error {
	var err error
	for _, c := range a.channels {
		err = multierr.Append(err, c.handle.Stop())
	}
	if a.state == StateRunning {
		a.state = StateTerminated
	}
	return err
}
