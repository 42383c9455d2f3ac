// Package vl53l1x drives a VL53L1X time-of-flight sensor on a shared I2C bus
// through the sensor driver contract: start-up configuration, distance mode,
// timing budget, addressing, continuous ranging and reading results.
// Offset and crosstalk calibration are left at factory values.
package vl53l1x

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/range-controller/internal/bus"
	"github.com/sweeney/range-controller/internal/logic"
	"github.com/sweeney/range-controller/internal/sensor"
)

var (
	// ErrWrongModel is returned when the device at an address is not a VL53L1X.
	ErrWrongModel = errors.New("vl53l1x: unexpected model id")

	// ErrNotBooted is returned when the firmware has not finished booting.
	ErrNotBooted = errors.New("vl53l1x: firmware not booted")

	// ErrTimeout is returned when the first measurement never arrives during Init.
	ErrTimeout = errors.New("vl53l1x: timed out waiting for measurement")
)

// DistanceMode selects the ranging profile.
type DistanceMode int

const (
	// Short ranges up to about 1.3 m with better ambient light immunity.
	Short DistanceMode = 1
	// Long ranges up to about 4 m.
	Long DistanceMode = 2
)

func (m DistanceMode) String() string {
	switch m {
	case Short:
		return "short"
	case Long:
		return "long"
	}
	return fmt.Sprintf("DistanceMode(%d)", int(m))
}

// ParseDistanceMode accepts "short" or "long".
func ParseDistanceMode(s string) (DistanceMode, error) {
	switch s {
	case "short":
		return Short, nil
	case "long":
		return Long, nil
	}
	return 0, fmt.Errorf("vl53l1x: unknown distance mode %q", s)
}

// initPolls bounds how often Init checks for the first measurement.
const initPolls = 200

// Config is the ranging setup applied by Init.
type Config struct {
	Mode         DistanceMode
	TimingBudget time.Duration

	// Sleep waits between data-ready checks during Init; defaults to time.Sleep.
	Sleep func(time.Duration)
}

// DefaultConfig returns short mode with a 50 ms timing budget.
func DefaultConfig() Config {
	return Config{Mode: Short, TimingBudget: 50 * time.Millisecond}
}

// Validate checks the mode and budget are a supported pair.
func (c Config) Validate() error {
	budgets, ok := timingBudgets[c.Mode]
	if !ok {
		return fmt.Errorf("vl53l1x: unknown distance mode %d", int(c.Mode))
	}
	if _, ok := budgets[int(c.TimingBudget.Milliseconds())]; !ok || c.TimingBudget%time.Millisecond != 0 {
		return fmt.Errorf("vl53l1x: timing budget %v not supported in %s mode", c.TimingBudget, c.Mode)
	}
	return nil
}

// Device is one VL53L1X reachable on b at addr.
type Device struct {
	bus  bus.Bus
	addr uint16
}

// Open verifies a booted VL53L1X answers on addr and returns it.
func Open(b bus.Bus, addr uint16) (*Device, error) {
	d := &Device{bus: b, addr: addr}

	id, err := d.read16(regIdentificationModelID)
	if err != nil {
		return nil, fmt.Errorf("read model id at 0x%02x: %w", addr, err)
	}
	if id != modelID {
		return nil, fmt.Errorf("%w 0x%04x at 0x%02x", ErrWrongModel, id, addr)
	}

	st, err := d.read8(regFirmwareSystemStatus)
	if err != nil {
		return nil, fmt.Errorf("read boot state at 0x%02x: %w", addr, err)
	}
	if st&0x01 == 0 {
		return nil, fmt.Errorf("%w at 0x%02x", ErrNotBooted, addr)
	}
	return d, nil
}

// Opener returns a sensor.Opener that binds devices on b and runs Init with cfg.
func Opener(b bus.Bus, cfg Config) sensor.Opener {
	return func(addr uint16) (sensor.Driver, error) {
		d, err := Open(b, addr)
		if err != nil {
			return nil, err
		}
		if err := d.Init(cfg); err != nil {
			return nil, err
		}
		return d, nil
	}
}

// Init loads the default configuration, runs one measurement so the device
// calibrates its VHV, then applies the distance mode and timing budget.
// The device is left stopped.
func (d *Device) Init(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}

	if err := d.writeBlock(regDefaultConfig, defaultConfig[:]); err != nil {
		return fmt.Errorf("load default config at 0x%02x: %w", d.addr, err)
	}

	if err := d.StartRanging(); err != nil {
		return err
	}
	if err := d.waitReady(cfg.Sleep); err != nil {
		return err
	}
	if err := d.ClearInterrupt(); err != nil {
		return err
	}
	if err := d.StopRanging(); err != nil {
		return err
	}
	// Two VHV bounds, and start VHV from the last temperature from now on.
	if err := d.write8(regVHVTimeoutLoopBound, 0x09); err != nil {
		return err
	}
	if err := d.write8(regVHVInit, 0x00); err != nil {
		return err
	}

	if err := d.setDistanceMode(cfg.Mode); err != nil {
		return err
	}
	return d.setTimingBudget(cfg.Mode, cfg.TimingBudget)
}

func (d *Device) waitReady(sleep func(time.Duration)) error {
	for i := 0; i < initPolls; i++ {
		ready, err := d.DataReady()
		if err != nil {
			return err
		}
		if ready {
			return nil
		}
		sleep(time.Millisecond)
	}
	return fmt.Errorf("%w at 0x%02x", ErrTimeout, d.addr)
}

func (d *Device) setDistanceMode(m DistanceMode) error {
	ms := distanceModes[m]
	for _, w := range []struct {
		reg uint16
		v   byte
	}{
		{regPhasecalTimeout, ms.phasecalTimeout},
		{regRangeVCSELPeriodA, ms.vcselPeriodA},
		{regRangeVCSELPeriodB, ms.vcselPeriodB},
		{regRangeValidPhaseHigh, ms.validPhaseHigh},
	} {
		if err := d.write8(w.reg, w.v); err != nil {
			return fmt.Errorf("set %s mode: %w", m, err)
		}
	}
	if err := d.write16(regSDWOISD0, ms.woiSD0); err != nil {
		return fmt.Errorf("set %s mode: %w", m, err)
	}
	if err := d.write16(regSDInitialPhaseSD0, ms.initialPhaseSD0); err != nil {
		return fmt.Errorf("set %s mode: %w", m, err)
	}
	return nil
}

func (d *Device) setTimingBudget(m DistanceMode, budget time.Duration) error {
	t := timingBudgets[m][int(budget.Milliseconds())]
	if err := d.write16(regRangeTimeoutAHi, t[0]); err != nil {
		return fmt.Errorf("set timing budget %v: %w", budget, err)
	}
	if err := d.write16(regRangeTimeoutBHi, t[1]); err != nil {
		return fmt.Errorf("set timing budget %v: %w", budget, err)
	}
	return nil
}

// Address returns the address the device is addressed on.
func (d *Device) Address() uint16 {
	return d.addr
}

// SetAddress moves the device to addr. Subsequent calls use the new address.
func (d *Device) SetAddress(addr uint16) error {
	if addr > 0x7F {
		return fmt.Errorf("vl53l1x: address 0x%x is not 7-bit", addr)
	}
	if err := d.write8(regI2CSlaveDeviceAddress, byte(addr)); err != nil {
		return err
	}
	d.addr = addr
	return nil
}

// StartRanging clears any pending interrupt and starts continuous ranging.
func (d *Device) StartRanging() error {
	if err := d.ClearInterrupt(); err != nil {
		return err
	}
	return d.write8(regSystemModeStart, modeStartContinuous)
}

// StopRanging stops continuous ranging.
func (d *Device) StopRanging() error {
	return d.write8(regSystemModeStart, modeStop)
}

// DataReady reports whether a measurement is waiting, honoring the
// configured interrupt polarity.
func (d *Device) DataReady() (bool, error) {
	mux, err := d.read8(regGPIOHVMuxCtrl)
	if err != nil {
		return false, err
	}
	polarity := byte(0)
	if mux&0x10 == 0 {
		polarity = 1
	}

	st, err := d.read8(regGPIOTioHVStatus)
	if err != nil {
		return false, err
	}
	return st&0x01 == polarity, nil
}

// Distance returns the last measurement and whether its range status is valid.
func (d *Device) Distance() (logic.Millimeters, bool, error) {
	st, err := d.read8(regResultRangeStatus)
	if err != nil {
		return 0, false, err
	}
	mm, err := d.read16(regResultRangeMM)
	if err != nil {
		return 0, false, err
	}
	return logic.Millimeters(mm), st&rangeStatusMask == rangeStatusValid, nil
}

// ClearInterrupt acknowledges the current measurement.
func (d *Device) ClearInterrupt() error {
	return d.write8(regSystemInterruptClear, 0x01)
}

func (d *Device) write8(reg uint16, v byte) error {
	w := []byte{byte(reg >> 8), byte(reg), v}
	if err := d.bus.Tx(d.addr, w, nil); err != nil {
		return fmt.Errorf("write reg 0x%04x: %w", reg, err)
	}
	return nil
}

func (d *Device) write16(reg uint16, v uint16) error {
	return d.writeBlock(reg, []byte{byte(v >> 8), byte(v)})
}

func (d *Device) writeBlock(reg uint16, data []byte) error {
	w := make([]byte, 0, 2+len(data))
	w = append(w, byte(reg>>8), byte(reg))
	w = append(w, data...)
	if err := d.bus.Tx(d.addr, w, nil); err != nil {
		return fmt.Errorf("write reg 0x%04x: %w", reg, err)
	}
	return nil
}

func (d *Device) read8(reg uint16) (byte, error) {
	r := make([]byte, 1)
	if err := d.bus.Tx(d.addr, []byte{byte(reg >> 8), byte(reg)}, r); err != nil {
		return 0, fmt.Errorf("read reg 0x%04x: %w", reg, err)
	}
	return r[0], nil
}

func (d *Device) read16(reg uint16) (uint16, error) {
	r := make([]byte, 2)
	if err := d.bus.Tx(d.addr, []byte{byte(reg >> 8), byte(reg)}, r); err != nil {
		return 0, fmt.Errorf("read reg 0x%04x: %w", reg, err)
	}
	return binary.BigEndian.Uint16(r), nil
}
