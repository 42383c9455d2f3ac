package array

import (
	"fmt"

	"github.com/sweeney/range-controller/internal/sensor"
)

// Init brings the sensors onto the shared bus one at a time. Each sensor is
// enabled while every later one is still in shutdown, so it is the only device
// on the default address when it is moved. A sensor that fails is held in
// shutdown and skipped. Returns ErrNoSensors if none came up.
func (a *Array) Init() error {
	if a.state != StateUninitialized {
		return fmt.Errorf("init: array is %s", a.state)
	}
	a.state = StateInitializing
	a.log.Infow("initial scan", "addresses", hexAddrs(a.hw.Bus.Scan()))

	for _, c := range a.channels {
		if err := c.handle.Shutdown(); err != nil {
			a.log.Warnw("could not hold sensor in shutdown", "sensor", c.handle.Index(), "error", err)
			c.handle.Fail(err)
		}
	}
	a.hw.Sleep(a.cfg.ResetDelay)

	last := len(a.channels) - 1
	for i, c := range a.channels {
		if c.handle.State() == sensor.StateFailed {
			continue
		}
		if err := a.bringUp(i, c.handle, i == last); err != nil {
			a.log.Warnw("sensor init failed", "sensor", i, "error", err)
			c.handle.Fail(err)
			continue
		}
		a.log.Infow("sensor initialized", "sensor", i, "address", fmt.Sprintf("0x%02x", c.handle.Address()), "cc", c.controller)
	}

	a.log.Infow("final scan", "addresses", hexAddrs(a.hw.Bus.Scan()))

	live := a.Live()
	if live == 0 {
		a.state = StateTerminated
		return ErrNoSensors
	}
	a.state = StateRunning
	a.log.Infow("sensor array running", "live", live, "configured", len(a.channels))
	return nil
}

func (a *Array) bringUp(i int, h *sensor.Handle, last bool) error {
	if err := h.PowerOn(); err != nil {
		return err
	}
	a.hw.Sleep(a.cfg.SettleDelay)
	a.log.Debugw("scan after power-up", "sensor", i, "addresses", hexAddrs(a.hw.Bus.Scan()))

	a.hw.Bus.Lock()
	defer a.hw.Bus.Unlock()

	drv, err := a.hw.Open(a.cfg.DefaultAddress)
	if err != nil {
		return fmt.Errorf("open sensor %d at 0x%02x: %w", i, a.cfg.DefaultAddress, err)
	}
	h.Attach(drv, a.cfg.DefaultAddress)

	// The last sensor is alone on the default address once all others have moved.
	if !last {
		if err := h.Reassign(a.cfg.BaseAddress + uint16(i)); err != nil {
			return err
		}
		a.hw.Sleep(a.cfg.AddressDelay)
	}
	return h.StartRanging()
}

func hexAddrs(addrs []uint16) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = fmt.Sprintf("0x%02x", a)
	}
	return out
}
