// Package logic contains the pure signal path that turns a distance into a controller value.
// This package has NO external dependencies (no GPIO, I2C, MIDI, MQTT, OS, or time.Sleep).
package logic

// Millimeters is a distance reported by a ranging sensor.
type Millimeters float64

// Controller value bounds (7-bit, as in a MIDI control change).
const (
	MinValue = 0
	MaxValue = 127
)

// Reference tuning.
const (
	DefaultAlpha       = 0.3
	DefaultMinDistance = Millimeters(10)
	DefaultMaxDistance = Millimeters(300)
)
