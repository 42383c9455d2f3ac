package array

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/range-controller/internal/logic"
	"github.com/sweeney/range-controller/internal/vl53l1x"
)

// Config holds the tuning and wiring of a sensor array.
type Config struct {
	// Alpha is the smoothing factor, in (0,1).
	Alpha float64

	// MinDistance and MaxDistance bound the physical window mapped onto 0..127.
	MinDistance logic.Millimeters
	MaxDistance logic.Millimeters

	// Controllers binds sensor ordinal i to controller number Controllers[i].
	Controllers []int

	// DefaultAddress is the factory address every sensor boots on.
	DefaultAddress uint16

	// BaseAddress is assigned to sensor 0; sensor i gets BaseAddress+i.
	// The last sensor keeps DefaultAddress.
	BaseAddress uint16

	// ResetDelay holds every sensor in shutdown before sequencing starts.
	ResetDelay time.Duration

	// SettleDelay is waited after enabling a sensor, before talking to it.
	SettleDelay time.Duration

	// AddressDelay is waited after moving a sensor to its new address.
	AddressDelay time.Duration
}

// DefaultConfig returns the reference tuning for two sensors on CC 20 and 22.
func DefaultConfig() Config {
	return Config{
		Alpha:          logic.DefaultAlpha,
		MinDistance:    logic.DefaultMinDistance,
		MaxDistance:    logic.DefaultMaxDistance,
		Controllers:    []int{20, 22},
		DefaultAddress: vl53l1x.DefaultAddress,
		BaseAddress:    0x30,
		ResetDelay:     500 * time.Millisecond,
		SettleDelay:    500 * time.Millisecond,
		AddressDelay:   100 * time.Millisecond,
	}
}

// Validate checks the configuration for an array of n sensors.
func (c Config) Validate(n int) error {
	if n == 0 {
		return errors.New("no sensors configured")
	}
	if len(c.Controllers) != n {
		return fmt.Errorf("%d controllers bound for %d sensors", len(c.Controllers), n)
	}
	if !(c.Alpha > 0 && c.Alpha < 1) {
		return fmt.Errorf("alpha %v must be in (0,1)", c.Alpha)
	}
	if c.MinDistance >= c.MaxDistance {
		return fmt.Errorf("min distance %v must be below max distance %v", c.MinDistance, c.MaxDistance)
	}
	seen := make(map[int]bool, n)
	for i, cc := range c.Controllers {
		if cc < logic.MinValue || cc > logic.MaxValue {
			return fmt.Errorf("controller %d for sensor %d out of range 0..127", cc, i)
		}
		if seen[cc] {
			return fmt.Errorf("controller %d bound twice", cc)
		}
		seen[cc] = true
	}

	// Sensors 0..n-2 are moved; the last stays on the default address.
	if n > 1 {
		first := c.BaseAddress
		last := c.BaseAddress + uint16(n-2)
		if first < 0x08 || last > 0x77 {
			return fmt.Errorf("assigned addresses 0x%02x-0x%02x leave the 7-bit range", first, last)
		}
		if c.DefaultAddress >= first && c.DefaultAddress <= last {
			return fmt.Errorf("assigned addresses 0x%02x-0x%02x include default address 0x%02x", first, last, c.DefaultAddress)
		}
	}
	return nil
}
