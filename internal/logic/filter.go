package logic

// Filter applies exponential smoothing to one sensor's readings.
// The zero value is not usable; call NewFilter.
type Filter struct {
	alpha  float64
	value  float64
	seeded bool
}

// NewFilter creates a filter with smoothing factor alpha, which must lie in (0,1).
// Higher alpha tracks the input faster but passes more sensor jitter.
func NewFilter(alpha float64) *Filter {
	return &Filter{alpha: alpha}
}

// Update folds raw into the smoothed value and returns it.
// The first reading seeds the filter exactly instead of blending against zero.
func (f *Filter) Update(raw Millimeters) Millimeters {
	if !f.seeded {
		f.value = float64(raw)
		f.seeded = true
		return raw
	}
	f.value = f.alpha*float64(raw) + (1-f.alpha)*f.value
	return Millimeters(f.value)
}

// Value returns the current smoothed value and whether the filter has been seeded.
func (f *Filter) Value() (Millimeters, bool) {
	return Millimeters(f.value), f.seeded
}

// Alpha returns the smoothing factor.
func (f *Filter) Alpha() float64 {
	return f.alpha
}
