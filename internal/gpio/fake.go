package gpio

// FakeLine is a test double that records every value driven onto it.
type FakeLine struct {
	// Values contains every value passed to Set, in order.
	Values []bool

	// SetError, if set, will be returned by Set and the value is not applied.
	SetError error

	// OnSet, if set, is called after each successful Set.
	OnSet func(on bool)

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeLine creates a FakeLine in the low state.
func NewFakeLine() *FakeLine {
	return &FakeLine{}
}

// Set records the value.
func (f *FakeLine) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Values = append(f.Values, on)
	if f.OnSet != nil {
		f.OnSet(on)
	}
	return nil
}

// On reports the last value driven, false if never set.
func (f *FakeLine) On() bool {
	if len(f.Values) == 0 {
		return false
	}
	return f.Values[len(f.Values)-1]
}

// Close marks the line as closed.
func (f *FakeLine) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded values.
func (f *FakeLine) Reset() {
	f.Values = nil
	f.Closed = false
}
