package array

import "github.com/sweeney/range-controller/internal/logic"

// SensorStatus is a point-in-time view of one sensor, safe to hand to other goroutines.
type SensorStatus struct {
	Index      int
	Controller int
	State      string
	Address    uint16
	Error      string

	Distance    logic.Millimeters // last valid raw reading
	HasDistance bool
	Smoothed    logic.Millimeters
	Value       int
	HasValue    bool

	Emitted    int
	SendErrors int
}

// Sensors returns the status of every configured sensor, in ordinal order.
func (a *Array) Sensors() []SensorStatus {
	out := make([]SensorStatus, len(a.channels))
	for i, c := range a.channels {
		s := SensorStatus{
			Index:      c.handle.Index(),
			Controller: c.controller,
			State:      c.handle.State().String(),
			Address:    c.handle.Address(),
			Smoothed:   c.smoothed,
			Value:      c.value,
			HasValue:   c.hasValue,
			Emitted:    c.emitted,
			SendErrors: c.sendErrors,
		}
		s.Distance, s.HasDistance = c.handle.LastDistance()
		if err := c.handle.Err(); err != nil {
			s.Error = err.Error()
		}
		out[i] = s
	}
	return out
}
