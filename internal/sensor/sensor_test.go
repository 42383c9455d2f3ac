package sensor

import (
	"errors"
	"testing"

	"github.com/sweeney/range-controller/internal/gpio"
	"go.uber.org/zap"
)

func newRangingHandle(t *testing.T, drv *FakeDriver) (*Handle, *gpio.FakeLine) {
	t.Helper()
	line := gpio.NewFakeLine()
	h := NewHandle(0, line, zap.NewNop().Sugar())
	if err := h.PowerOn(); err != nil {
		t.Fatalf("PowerOn: %v", err)
	}
	h.Attach(drv, drv.Addr)
	if err := h.StartRanging(); err != nil {
		t.Fatalf("StartRanging: %v", err)
	}
	return h, line
}

func TestHandleLifecycle(t *testing.T) {
	line := gpio.NewFakeLine()
	h := NewHandle(1, line, zap.NewNop().Sugar())

	if h.State() != StateOff {
		t.Errorf("expected OFF, got %s", h.State())
	}

	if err := h.PowerOn(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.State() != StatePowering || !line.On() {
		t.Errorf("expected POWERING with line high, got %s line=%v", h.State(), line.On())
	}

	drv := NewFakeDriver(0x29)
	h.Attach(drv, 0x29)
	if err := h.Reassign(0x31); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Address() != 0x31 || drv.Addr != 0x31 {
		t.Errorf("expected address 0x31, got handle=0x%02x driver=0x%02x", h.Address(), drv.Addr)
	}

	if err := h.StartRanging(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.Live() || !drv.Ranging {
		t.Error("expected sensor ranging")
	}
}

func TestStartRangingIdempotent(t *testing.T) {
	drv := NewFakeDriver(0x29)
	h, _ := newRangingHandle(t, drv)

	for i := 0; i < 3; i++ {
		if err := h.StartRanging(); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}
	if drv.StartCalls != 1 {
		t.Errorf("expected driver started once, got %d", drv.StartCalls)
	}
}

func TestStartRangingFailure(t *testing.T) {
	line := gpio.NewFakeLine()
	h := NewHandle(0, line, zap.NewNop().Sugar())
	h.PowerOn()
	drv := NewFakeDriver(0x29)
	drv.StartError = errors.New("nack")
	h.Attach(drv, 0x29)

	if err := h.StartRanging(); err == nil {
		t.Fatal("expected error")
	}
	if h.Live() {
		t.Error("sensor should not be live after failed start")
	}
}

func TestFailShutsSensorDown(t *testing.T) {
	line := gpio.NewFakeLine()
	h := NewHandle(0, line, zap.NewNop().Sugar())
	h.PowerOn()

	cause := errors.New("no ack")
	h.Fail(cause)

	if h.State() != StateFailed {
		t.Errorf("expected FAILED, got %s", h.State())
	}
	if !errors.Is(h.Err(), cause) {
		t.Errorf("expected cause to be kept, got %v", h.Err())
	}
	if line.On() {
		t.Error("failed sensor should be held in shutdown")
	}
	if err := h.StartRanging(); err == nil {
		t.Error("failed sensor should refuse to start ranging")
	}
}

func TestReadNotReady(t *testing.T) {
	drv := NewFakeDriver(0x29, Reading{Ready: false})
	h, _ := newRangingHandle(t, drv)

	if _, ok := h.Read(); ok {
		t.Error("expected no value when data is not ready")
	}
	if drv.Cleared != 0 {
		t.Errorf("not-ready poll should not clear, got %d clears", drv.Cleared)
	}
}

func TestReadClearsOnSuccess(t *testing.T) {
	drv := NewFakeDriver(0x29, Ready(120), Ready(130))
	h, _ := newRangingHandle(t, drv)

	d, ok := h.Read()
	if !ok || d != 120 {
		t.Fatalf("expected (120, true), got (%v, %v)", d, ok)
	}
	if drv.Cleared != 1 {
		t.Errorf("expected interrupt cleared once, got %d", drv.Cleared)
	}

	d, ok = h.Read()
	if !ok || d != 130 {
		t.Fatalf("expected fresh reading (130, true), got (%v, %v)", d, ok)
	}

	if _, ok := h.Read(); ok {
		t.Error("expected no value once readings are exhausted")
	}

	last, ok := h.LastDistance()
	if !ok || last != 130 {
		t.Errorf("expected last distance 130, got (%v, %v)", last, ok)
	}
}

func TestReadInvalidMeasurement(t *testing.T) {
	drv := NewFakeDriver(0x29, Reading{Ready: true, MM: 9999, Valid: false})
	h, _ := newRangingHandle(t, drv)

	if _, ok := h.Read(); ok {
		t.Error("invalid measurement should produce no value")
	}
	if drv.Cleared != 1 {
		t.Errorf("invalid measurement should still be acknowledged, got %d clears", drv.Cleared)
	}
	if _, ok := h.LastDistance(); ok {
		t.Error("invalid measurement should not be recorded")
	}
}

func TestReadErrorsAreAbsorbed(t *testing.T) {
	drv := NewFakeDriver(0x29, Reading{Ready: true, Err: errors.New("i2c timeout")}, Ready(50))
	h, _ := newRangingHandle(t, drv)

	if _, ok := h.Read(); ok {
		t.Error("read error should produce no value")
	}
	if !h.Live() {
		t.Error("read error should not fail the sensor")
	}

	d, ok := h.Read()
	if !ok || d != 50 {
		t.Errorf("expected recovery with (50, true), got (%v, %v)", d, ok)
	}
}

func TestReadUnacknowledgedIsDropped(t *testing.T) {
	drv := NewFakeDriver(0x29, Ready(50), Ready(80))
	drv.ClearError = errors.New("nack")
	h, _ := newRangingHandle(t, drv)

	if d, ok := h.Read(); ok {
		t.Errorf("measurement that could not be acknowledged should be dropped, got %v", d)
	}
	if _, ok := h.LastDistance(); ok {
		t.Error("unacknowledged measurement should not be recorded")
	}
	if !h.Live() {
		t.Error("clear failure should not fail the sensor")
	}

	// Still pending on the device: the same measurement is offered again
	// and delivered exactly once when the clear succeeds.
	drv.ClearError = nil
	if d, ok := h.Read(); !ok || d != 50 {
		t.Errorf("expected (50, true) once acknowledged, got (%v, %v)", d, ok)
	}
	if d, ok := h.Read(); !ok || d != 80 {
		t.Errorf("expected next measurement (80, true), got (%v, %v)", d, ok)
	}
}

func TestReadReadyError(t *testing.T) {
	drv := NewFakeDriver(0x29, Ready(50))
	drv.ReadyError = errors.New("bus busy")
	h, _ := newRangingHandle(t, drv)

	if _, ok := h.Read(); ok {
		t.Error("expected no value on data ready error")
	}
}

func TestReadBeforeRanging(t *testing.T) {
	h := NewHandle(0, gpio.NewFakeLine(), zap.NewNop().Sugar())
	if _, ok := h.Read(); ok {
		t.Error("sensor that is not ranging should return no value")
	}
}

func TestStop(t *testing.T) {
	drv := NewFakeDriver(0x29)
	h, line := newRangingHandle(t, drv)

	if err := h.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if drv.Ranging {
		t.Error("driver should be stopped")
	}
	if line.On() {
		t.Error("line should be low after Stop")
	}
	if h.State() != StateOff {
		t.Errorf("expected OFF, got %s", h.State())
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateOff:      "OFF",
		StatePowering: "POWERING",
		StateRanging:  "RANGING",
		StateFailed:   "FAILED",
		State(9):      "State(9)",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}
