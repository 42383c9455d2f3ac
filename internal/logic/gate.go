package logic

// Gate suppresses re-emission of an unchanged controller value.
type Gate struct {
	last int
	set  bool
}

// ShouldEmit reports whether v must be sent, recording it as the last emitted value if so.
// The first call always emits.
func (g *Gate) ShouldEmit(v int) bool {
	if g.set && g.last == v {
		return false
	}
	g.last = v
	g.set = true
	return true
}

// Force records v as emitted and always returns true.
// Only used for startup and resync, never in the steady-state loop.
func (g *Gate) Force(v int) bool {
	g.last = v
	g.set = true
	return true
}

// Invalidate forgets the last emitted value so the next ShouldEmit emits.
func (g *Gate) Invalidate() {
	g.set = false
}

// Last returns the last emitted value, if any.
func (g *Gate) Last() (int, bool) {
	return g.last, g.set
}
