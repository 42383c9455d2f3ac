package status

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/range-controller/internal/array"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string          `json:"event,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	State         string          `json:"state"`
	Live          int             `json:"live_sensors"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	StartTime     string          `json:"start_time"`
	Timestamp     string          `json:"timestamp"`
	Transport     TransportStatus `json:"transport"`
	Emitted       int             `json:"emitted"`
	Sensors       []SensorJSON    `json:"sensors"`
	Network       *NetworkJSON    `json:"network,omitempty"`
	Config        ConfigJSON      `json:"config"`
}

// TransportStatus reports the control-message transport.
type TransportStatus struct {
	Kind      string `json:"kind"`
	Target    string `json:"target"`
	Connected bool   `json:"connected"`
}

// SensorJSON is the JSON representation of one sensor.
type SensorJSON struct {
	Index      int      `json:"index"`
	State      string   `json:"state"`
	Address    string   `json:"address,omitempty"`
	Controller int      `json:"cc"`
	Distance   *float64 `json:"distance_mm"`
	Smoothed   *float64 `json:"smoothed_mm"`
	Value      *int     `json:"value"`
	Emitted    int      `json:"emitted"`
	SendErrors int      `json:"send_errors"`
	Error      string   `json:"error,omitempty"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64   `json:"poll_ms"`
	HeartbeatMs int64   `json:"heartbeat_ms"`
	HTTPPort    string  `json:"http_port"`
	Alpha       float64 `json:"alpha"`
	MinMM       float64 `json:"min_mm"`
	MaxMM       float64 `json:"max_mm"`
}

func sensorJSON(s array.SensorStatus) SensorJSON {
	out := SensorJSON{
		Index:      s.Index,
		State:      s.State,
		Controller: s.Controller,
		Emitted:    s.Emitted,
		SendErrors: s.SendErrors,
		Error:      s.Error,
	}
	if s.Address != 0 {
		out.Address = fmt.Sprintf("0x%02x", s.Address)
	}
	if s.HasDistance {
		d := float64(s.Distance)
		out.Distance = &d
	}
	if s.HasValue {
		sm := float64(s.Smoothed)
		v := s.Value
		out.Smoothed = &sm
		out.Value = &v
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if state == "" {
		state = "UNKNOWN"
	}

	sensors := make([]SensorJSON, len(snap.Sensors))
	for i, s := range snap.Sensors {
		sensors[i] = sensorJSON(s)
	}

	return StatusInner{
		State:         state,
		Live:          snap.Live(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Transport: TransportStatus{
			Kind:      snap.Config.Transport,
			Target:    snap.Config.Target,
			Connected: snap.TransportConnected,
		},
		Emitted: snap.Emitted(),
		Sensors: sensors,
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			HTTPPort:    snap.Config.HTTPPort,
			Alpha:       snap.Config.Alpha,
			MinMM:       snap.Config.MinMM,
			MaxMM:       snap.Config.MaxMM,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
