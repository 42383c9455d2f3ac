package logic

import "math"

// Mapper rescales a physical distance window onto the controller range.
type Mapper struct {
	Min Millimeters
	Max Millimeters
}

// NewMapper creates a Mapper for the window [min, max]. min must be below max.
func NewMapper(min, max Millimeters) Mapper {
	return Mapper{Min: min, Max: max}
}

// Map clamps d into the window, scales it linearly onto [0,127] rounding to the
// nearest integer, then clamps again so rounding can never leave the range.
func (m Mapper) Map(d Millimeters) int {
	x := float64(d)
	if math.IsNaN(x) {
		x = float64(m.Min)
	}
	x = math.Min(math.Max(x, float64(m.Min)), float64(m.Max))

	scaled := (x - float64(m.Min)) * MaxValue / float64(m.Max-m.Min)
	return ClampValue(int(math.Round(scaled)))
}

// ClampValue limits v to [MinValue, MaxValue].
func ClampValue(v int) int {
	if v < MinValue {
		return MinValue
	}
	if v > MaxValue {
		return MaxValue
	}
	return v
}
