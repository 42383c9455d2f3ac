package bus

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// RealBus is an I2C bus opened through periph.io.
type RealBus struct {
	mu  sync.Mutex
	bus i2c.BusCloser
}

// NewRealBus initializes the periph.io host drivers and opens the named bus.
// An empty name opens the first registered bus.
func NewRealBus(name string) (*RealBus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", name, err)
	}
	return &RealBus{bus: b}, nil
}

// Tx performs one write-then-read transaction.
func (r *RealBus) Tx(addr uint16, w, rd []byte) error {
	if err := r.bus.Tx(addr, w, rd); err != nil {
		return fmt.Errorf("i2c tx 0x%02x: %w", addr, err)
	}
	return nil
}

// Lock takes exclusive access to the bus.
func (r *RealBus) Lock() {
	r.mu.Lock()
}

// Unlock releases exclusive access to the bus.
func (r *RealBus) Unlock() {
	r.mu.Unlock()
}

// Scan reads every non-reserved address while holding the bus.
func (r *RealBus) Scan() []uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return scanAddresses(r.bus.Tx)
}

// String returns the underlying bus name.
func (r *RealBus) String() string {
	return r.bus.String()
}

// Close releases the bus.
func (r *RealBus) Close() error {
	return r.bus.Close()
}
