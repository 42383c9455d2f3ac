// Package status provides a thread-safe status tracker for the range-controller daemon.
// It is written by the poll loop and read by HTTP handlers and lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sweeney/range-controller/internal/array"
)

// NetworkInfo contains network state as reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	HeartbeatMs int64
	Transport   string // "serial" or "mqtt"
	Target      string // serial port path or broker URL
	HTTPPort    string
	Alpha       float64
	MinMM       float64
	MaxMM       float64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State              array.State
	Sensors            []array.SensorStatus
	Cycles             int64 // poll cycles only
	StartTime          time.Time
	Now                time.Time
	TransportConnected bool
	Network            *NetworkInfo
	Config             Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Live returns the number of ranging sensors.
func (s Snapshot) Live() int {
	n := 0
	for _, sn := range s.Sensors {
		if sn.State == "RANGING" {
			n++
		}
	}
	return n
}

// Emitted returns the total control changes sent across all sensors.
func (s Snapshot) Emitted() int {
	n := 0
	for _, sn := range s.Sensors {
		n += sn.Emitted
	}
	return n
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu    sync.RWMutex
	clock clock.Clock
	snap  Snapshot
}

// NewTracker creates a Tracker started at clk.Now() with the given config.
func NewTracker(clk clock.Clock, cfg Config) *Tracker {
	return &Tracker{
		clock: clk,
		snap: Snapshot{
			State:     array.StateUninitialized,
			StartTime: clk.Now(),
			Config:    cfg,
		},
	}
}

// Update refreshes the array state and per-sensor status without counting a cycle.
func (t *Tracker) Update(state array.State, sensors []array.SensorStatus) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.Sensors = sensors
	t.mu.Unlock()
}

// RecordCycle is Update for the result of a poll cycle; it also counts the cycle.
func (t *Tracker) RecordCycle(state array.State, sensors []array.SensorStatus) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.Sensors = sensors
	t.snap.Cycles++
	t.mu.Unlock()
}

// SetTransportConnected sets the transport connection status.
func (t *Tracker) SetTransportConnected(connected bool) {
	t.mu.Lock()
	t.snap.TransportConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set from the tracker's clock at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Sensors = append([]array.SensorStatus(nil), t.snap.Sensors...)
	t.mu.RUnlock()
	s.Now = t.clock.Now()
	return s
}
