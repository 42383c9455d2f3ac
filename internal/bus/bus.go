// Package bus provides the shared I2C bus the ranging sensors sit on.
// The real implementation uses periph.io.
// The fake implementation simulates devices appearing and moving on the bus.
package bus

import (
	"errors"
	"sort"
)

// Bus is a shared, non-reentrant I2C bus.
type Bus interface {
	// Tx writes w then reads len(r) bytes from the device at addr.
	Tx(addr uint16, w, r []byte) error

	// Lock takes scoped exclusive access for multi-transaction sequences
	// (address assignment, configuration). Tx does not take the lock itself.
	Lock()

	// Unlock releases the lock taken by Lock.
	Unlock()

	// Scan returns the sorted 7-bit addresses that acknowledge a read. Diagnostic only.
	Scan() []uint16
}

// DefaultName selects the first I2C bus periph.io registers.
const DefaultName = ""

// 7-bit scan window; 0x00-0x07 and 0x78-0x7F are reserved.
const (
	firstAddr = 0x08
	lastAddr  = 0x77
)

// ErrNoDevice is returned when nothing acknowledges an address.
var ErrNoDevice = errors.New("bus: no device at address")

// scanAddresses reads one byte from every non-reserved address and collects those that answer.
func scanAddresses(tx func(addr uint16, w, r []byte) error) []uint16 {
	var found []uint16
	buf := make([]byte, 1)
	for addr := uint16(firstAddr); addr <= lastAddr; addr++ {
		if err := tx(addr, nil, buf); err == nil {
			found = append(found, addr)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i] < found[j] })
	return found
}
