// Package gpio provides the per-sensor enable (XSHUT) output lines.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Line drives one sensor's enable input.
type Line interface {
	// Set drives the line: true enables the sensor, false holds it in shutdown.
	Set(on bool) error

	// Close releases the line.
	Close() error
}

// Default wiring (BCM numbering): one enable line per sensor, in ordinal order.
const (
	DefaultChip  = "gpiochip0"
	DefaultPinS0 = 17
	DefaultPinS1 = 27
)

// I2C1 pins on a Raspberry Pi header. They carry the sensor bus and cannot
// double as enable lines.
const (
	PinSDA = 2
	PinSCL = 3
)

// ReservedForI2C reports whether pin is one of the I2C1 bus pins.
func ReservedForI2C(pin int) bool {
	return pin == PinSDA || pin == PinSCL
}
