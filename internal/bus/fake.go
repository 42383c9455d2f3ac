package bus

import "fmt"

// FakeDevice is a simulated device on a FakeBus.
type FakeDevice struct {
	// Addr is the 7-bit address the device currently answers on.
	Addr uint16

	// Enabled controls whether the device answers at all.
	Enabled bool

	// Handler, if set, serves transactions addressed to the device.
	Handler func(w, r []byte) error
}

// FakeBus is a test double that routes transactions to simulated devices
// and records lock discipline.
type FakeBus struct {
	Devices []*FakeDevice

	// TxError, if set, will be returned by every Tx.
	TxError error

	// Locked is true between Lock and Unlock.
	Locked bool

	// LockCount counts calls to Lock.
	LockCount int

	// Overlaps counts Lock calls made while already locked.
	Overlaps int

	// Txs records the address of every transaction, in order.
	Txs []uint16

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeBus creates an empty FakeBus.
func NewFakeBus() *FakeBus {
	return &FakeBus{}
}

// Add attaches a disabled device at addr and returns it.
func (b *FakeBus) Add(addr uint16) *FakeDevice {
	d := &FakeDevice{Addr: addr}
	b.Devices = append(b.Devices, d)
	return d
}

// Responding returns the enabled devices currently answering on addr.
func (b *FakeBus) Responding(addr uint16) []*FakeDevice {
	var out []*FakeDevice
	for _, d := range b.Devices {
		if d.Enabled && d.Addr == addr {
			out = append(out, d)
		}
	}
	return out
}

// Tx routes the transaction to the single device answering on addr.
// Two devices answering on the same address is reported as a collision.
func (b *FakeBus) Tx(addr uint16, w, r []byte) error {
	b.Txs = append(b.Txs, addr)
	if b.TxError != nil {
		return b.TxError
	}
	devs := b.Responding(addr)
	switch len(devs) {
	case 0:
		return fmt.Errorf("%w 0x%02x", ErrNoDevice, addr)
	case 1:
	default:
		return fmt.Errorf("bus: %d devices collide at 0x%02x", len(devs), addr)
	}
	if devs[0].Handler == nil {
		return nil
	}
	return devs[0].Handler(w, r)
}

// Lock marks the bus locked.
func (b *FakeBus) Lock() {
	if b.Locked {
		b.Overlaps++
	}
	b.Locked = true
	b.LockCount++
}

// Unlock marks the bus unlocked.
func (b *FakeBus) Unlock() {
	b.Locked = false
}

// Scan lists the enabled device addresses.
func (b *FakeBus) Scan() []uint16 {
	return scanAddresses(func(addr uint16, w, r []byte) error {
		if len(b.Responding(addr)) == 0 {
			return ErrNoDevice
		}
		return nil
	})
}

// Close marks the bus as closed.
func (b *FakeBus) Close() error {
	b.Closed = true
	return nil
}
