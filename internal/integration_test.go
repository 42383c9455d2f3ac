package internal

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"
	"github.com/sweeney/range-controller/internal/array"
	"github.com/sweeney/range-controller/internal/bus"
	"github.com/sweeney/range-controller/internal/gpio"
	"github.com/sweeney/range-controller/internal/midi"
	"github.com/sweeney/range-controller/internal/mqtt"
	"github.com/sweeney/range-controller/internal/sensor"
	"github.com/sweeney/range-controller/internal/status"
	"github.com/sweeney/range-controller/internal/vl53l1x"
	"go.uber.org/zap"
)

// VL53L1X register map, as far as the simulator needs it.
const (
	regAddress     = 0x0001
	regMuxCtrl     = 0x0030
	regTioStatus   = 0x0031
	regIntClear    = 0x0086
	regModeStart   = 0x0087
	regRangeStatus = 0x0089
	regRangeMM     = 0x0096
	regBoot        = 0x00E5
	regModelID     = 0x010F
	regTimeoutAHi  = 0x005E
)

// tof simulates one VL53L1X wired to an enable line. Pulling the line low
// resets it to the factory address.
type tof struct {
	dev  *bus.FakeDevice
	line *gpio.FakeLine
	regs map[uint16]byte

	model  byte // high byte of the model id
	booted bool
}

func newTOF(b *bus.FakeBus) *tof {
	s := &tof{dev: b.Add(vl53l1x.DefaultAddress), line: gpio.NewFakeLine(), model: 0xEA, booted: true}
	s.reset()
	s.dev.Handler = s.tx
	s.line.OnSet = func(on bool) {
		s.dev.Enabled = on
		if !on {
			s.reset()
		}
	}
	return s
}

func (s *tof) reset() {
	var boot byte
	if s.booted {
		boot = 0x01
	}
	s.dev.Addr = vl53l1x.DefaultAddress
	s.regs = map[uint16]byte{
		regModelID:     s.model,
		regModelID + 1: 0xCC,
		regBoot:        boot,
		regMuxCtrl:     0x01,
	}
}

func (s *tof) tx(w, r []byte) error {
	if len(w) < 2 {
		return errors.New("short register address")
	}
	reg := uint16(w[0])<<8 | uint16(w[1])
	for i, v := range w[2:] {
		s.regs[reg+uint16(i)] = v
	}
	if len(w) > 2 {
		switch reg {
		case regAddress:
			s.dev.Addr = uint16(w[2] & 0x7F)
		case regIntClear:
			s.regs[regTioStatus] = 0
		case regModeStart:
			if w[2] == 0x40 {
				// A first measurement is ready one budget later.
				s.regs[regTioStatus] = 0x01
			}
		}
	}
	for i := range r {
		r[i] = s.regs[reg+uint16(i)]
	}
	return nil
}

func (s *tof) ranging() bool {
	return s.regs[regModeStart] == 0x40
}

func (s *tof) measure(mm uint16, rangeStatus byte) {
	s.regs[regRangeStatus] = rangeStatus
	s.regs[regRangeMM] = byte(mm >> 8)
	s.regs[regRangeMM+1] = byte(mm)
	s.regs[regTioStatus] = 0x01
}

type system struct {
	bus     *bus.FakeBus
	sensors []*tof
	arr     *array.Array
	tracker *status.Tracker
}

func newSystem(t *testing.T, sender array.Sender, n int) *system {
	t.Helper()
	s := &system{bus: bus.NewFakeBus()}
	lines := make([]gpio.Line, n)
	for i := range lines {
		tf := newTOF(s.bus)
		s.sensors = append(s.sensors, tf)
		lines[i] = tf.line
	}

	cfg := array.DefaultConfig()
	cfg.Controllers = []int{20, 22, 24, 26}[:n]
	open := vl53l1x.Opener(s.bus, vl53l1x.Config{
		Mode:         vl53l1x.Short,
		TimingBudget: 50 * time.Millisecond,
		Sleep:        func(time.Duration) {},
	})
	arr, err := array.New(cfg, array.Hardware{
		Bus:   s.bus,
		Lines: lines,
		Open:  open,
		Sleep: func(time.Duration) {},
	}, sender, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("array.New: %v", err)
	}
	s.arr = arr

	clk := clock.NewMock()
	s.tracker = status.NewTracker(clk, status.Config{Transport: "serial", Alpha: cfg.Alpha, MinMM: 10, MaxMM: 300})
	return s
}

func (s *system) poll() []array.Emission {
	out := s.arr.Poll()
	s.tracker.RecordCycle(s.arr.State(), s.arr.Sensors())
	return out
}

// TestIntegrationFullFlow drives real driver code against simulated sensors
// from bring-up through to control changes.
func TestIntegrationFullFlow(t *testing.T) {
	port := midi.NewFakeTransport()
	sys := newSystem(t, port, 2)

	if err := sys.arr.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := []uint16{sys.sensors[0].dev.Addr, sys.sensors[1].dev.Addr}; !cmp.Equal(got, []uint16{0x30, 0x29}) {
		t.Errorf("addresses: got %#x, want [0x30 0x29]", got)
	}
	for i, tf := range sys.sensors {
		if !tf.ranging() {
			t.Errorf("sensor %d not ranging", i)
		}
		// 50 ms short-mode budget, loaded after the default configuration.
		if tf.regs[regTimeoutAHi] != 0x01 || tf.regs[regTimeoutAHi+1] != 0xAE {
			t.Errorf("sensor %d timing budget not configured", i)
		}
	}
	if sys.bus.Overlaps != 0 {
		t.Errorf("bus locked re-entrantly %d times", sys.bus.Overlaps)
	}

	sys.sensors[0].measure(155, 9)
	sys.sensors[1].measure(400, 9)
	sys.poll()

	// No new data: nothing sent.
	sys.poll()

	// An invalid range status is dropped.
	sys.sensors[0].measure(10, 4)
	sys.poll()

	// Smoothed toward 10mm: 0.3*10 + 0.7*155 = 111.5mm -> 44.
	sys.sensors[0].measure(10, 9)
	sys.poll()

	want := map[int][]int{20: {64, 44}, 22: {127}}
	for cc, values := range want {
		if diff := cmp.Diff(values, port.Values(cc)); diff != "" {
			t.Errorf("cc %d values (-want +got):\n%s", cc, diff)
		}
	}

	var sj status.StatusJSON
	if err := json.Unmarshal(status.FormatJSON(sys.tracker.Snapshot()), &sj); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if sj.Status.Live != 2 || sj.Status.Emitted != 3 {
		t.Errorf("status: got %d live, %d emitted", sj.Status.Live, sj.Status.Emitted)
	}
	if sj.Status.Sensors[0].Address != "0x30" {
		t.Errorf("sensor 0 address: got %q", sj.Status.Sensors[0].Address)
	}

	if err := sys.arr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for i, tf := range sys.sensors {
		if tf.line.On() {
			t.Errorf("sensor %d still enabled after Close", i)
		}
	}
}

// TestIntegrationDegradedArray brings up an array where the middle sensor is
// not a VL53L1X. It must be held in shutdown so the last sensor, which stays
// on the default address, is alone there.
func TestIntegrationDegradedArray(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	sys := newSystem(t, pub, 3)
	sys.sensors[1].model = 0x00

	if err := sys.arr.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if sys.arr.Live() != 2 {
		t.Fatalf("live: got %d, want 2", sys.arr.Live())
	}
	if sys.sensors[1].line.On() {
		t.Error("failed sensor should be held in shutdown")
	}
	if sys.sensors[2].dev.Addr != vl53l1x.DefaultAddress || !sys.sensors[2].ranging() {
		t.Error("last sensor should range on the default address")
	}

	sys.sensors[0].measure(300, 9)
	sys.sensors[2].measure(10, 9)
	sys.poll()

	want := []midi.ControlChange{
		{Controller: 20, Value: 127},
		{Controller: 24, Value: 0},
	}
	if diff := cmp.Diff(want, pub.Sent); diff != "" {
		t.Errorf("sent (-want +got):\n%s", diff)
	}

	snap := sys.tracker.Snapshot()
	if got := snap.Sensors[1].State; got != sensor.StateFailed.String() {
		t.Errorf("sensor 1 state: got %s, want FAILED", got)
	}
	if snap.Sensors[1].Error == "" {
		t.Error("failed sensor should carry its error")
	}

	// A reconnect re-sends both live values, skipping the failed sensor.
	pub.Reset()
	sys.arr.Resync()
	if diff := cmp.Diff(want, pub.Sent); diff != "" {
		t.Errorf("resync (-want +got):\n%s", diff)
	}
}

func TestIntegrationNoSensors(t *testing.T) {
	sys := newSystem(t, midi.NewFakeTransport(), 2)
	for _, tf := range sys.sensors {
		tf.booted = false
	}

	err := sys.arr.Init()
	if !errors.Is(err, array.ErrNoSensors) {
		t.Fatalf("expected ErrNoSensors, got %v", err)
	}
	if sys.arr.State() != array.StateTerminated {
		t.Errorf("state: got %s, want TERMINATED", sys.arr.State())
	}
}
