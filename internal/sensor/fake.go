package sensor

import "github.com/sweeney/range-controller/internal/logic"

// Reading is one scripted poll outcome for a FakeDriver.
type Reading struct {
	Ready bool
	MM    logic.Millimeters
	Valid bool
	Err   error // returned by Distance
}

// Ready is a shorthand for a valid, ready reading of mm.
func Ready(mm logic.Millimeters) Reading {
	return Reading{Ready: true, MM: mm, Valid: true}
}

// FakeDriver is a test double that returns scripted readings.
type FakeDriver struct {
	// Addr is the address the driver currently talks to.
	Addr uint16

	// Readings are consumed in order: a not-ready reading by DataReady,
	// a ready one by ClearInterrupt. Exhausted readings report not ready.
	Readings []Reading
	index    int

	// Errors, if set, are returned by the matching call.
	SetAddressError error
	StartError      error
	StopError       error
	ReadyError      error
	ClearError      error

	// Ranging tracks StartRanging/StopRanging.
	Ranging bool

	// StartCalls counts calls to StartRanging.
	StartCalls int

	// Cleared counts calls to ClearInterrupt.
	Cleared int

	// OnSetAddress, if set, is called after a successful SetAddress.
	OnSetAddress func(addr uint16)
}

// NewFakeDriver creates a FakeDriver at addr with the given readings.
func NewFakeDriver(addr uint16, readings ...Reading) *FakeDriver {
	return &FakeDriver{Addr: addr, Readings: readings}
}

// SetAddress records the new address.
func (f *FakeDriver) SetAddress(addr uint16) error {
	if f.SetAddressError != nil {
		return f.SetAddressError
	}
	f.Addr = addr
	if f.OnSetAddress != nil {
		f.OnSetAddress(addr)
	}
	return nil
}

// StartRanging marks the driver ranging.
func (f *FakeDriver) StartRanging() error {
	f.StartCalls++
	if f.StartError != nil {
		return f.StartError
	}
	f.Ranging = true
	return nil
}

// StopRanging marks the driver stopped.
func (f *FakeDriver) StopRanging() error {
	if f.StopError != nil {
		return f.StopError
	}
	f.Ranging = false
	return nil
}

// DataReady reports the current reading's readiness.
func (f *FakeDriver) DataReady() (bool, error) {
	if f.ReadyError != nil {
		return false, f.ReadyError
	}
	if f.index >= len(f.Readings) {
		return false, nil
	}
	if !f.Readings[f.index].Ready {
		f.index++
		return false, nil
	}
	return true, nil
}

// Distance returns the current reading.
func (f *FakeDriver) Distance() (logic.Millimeters, bool, error) {
	if f.index >= len(f.Readings) {
		return 0, false, nil
	}
	r := f.Readings[f.index]
	if r.Err != nil {
		return 0, false, r.Err
	}
	return r.MM, r.Valid, nil
}

// ClearInterrupt consumes the current reading.
func (f *FakeDriver) ClearInterrupt() error {
	f.Cleared++
	if f.ClearError != nil {
		return f.ClearError
	}
	if f.index < len(f.Readings) {
		f.index++
	}
	return nil
}

// Push appends readings to the script.
func (f *FakeDriver) Push(readings ...Reading) {
	f.Readings = append(f.Readings, readings...)
}
