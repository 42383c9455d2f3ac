package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sweeney/range-controller/internal/array"
	"github.com/sweeney/range-controller/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := status.Config{
		PollMs:      50,
		HeartbeatMs: 900000,
		Transport:   "mqtt",
		Target:      "tcp://192.168.1.200:1883",
		HTTPPort:    ":80",
		Alpha:       0.3,
		MinMM:       10,
		MaxMM:       300,
	}
	tr := status.NewTracker(clk, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr, clk
}

func twoSensors() []array.SensorStatus {
	return []array.SensorStatus{
		{Index: 0, Controller: 20, State: "RANGING", Address: 0x30, Distance: 155, HasDistance: true, Smoothed: 155, Value: 64, HasValue: true, Emitted: 3},
		{Index: 1, Controller: 22, State: "FAILED", Error: "vl53l1x: wrong model id 0x0000"},
	}
}

func getStatus(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(array.StateRunning, twoSensors())
	tr.SetTransportConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.State != "RUNNING" {
		t.Errorf("State: got %q, want RUNNING", sj.Status.State)
	}
	if sj.Status.Live != 1 {
		t.Errorf("Live: got %d, want 1", sj.Status.Live)
	}
	if !sj.Status.Transport.Connected {
		t.Error("expected Transport.Connected=true")
	}
	if sj.Status.Transport.Target != "tcp://192.168.1.200:1883" {
		t.Errorf("Transport.Target: got %q", sj.Status.Transport.Target)
	}
	if len(sj.Status.Sensors) != 2 {
		t.Fatalf("Sensors: got %d, want 2", len(sj.Status.Sensors))
	}
	s0 := sj.Status.Sensors[0]
	if s0.Address != "0x30" || s0.Controller != 20 {
		t.Errorf("sensor 0: got addr=%q cc=%d", s0.Address, s0.Controller)
	}
	if s0.Value == nil || *s0.Value != 64 {
		t.Errorf("sensor 0 value: got %v, want 64", s0.Value)
	}
	s1 := sj.Status.Sensors[1]
	if s1.Value != nil {
		t.Errorf("failed sensor should have no value, got %d", *s1.Value)
	}
	if s1.Error == "" {
		t.Error("failed sensor should report its error")
	}
	if sj.Status.Config.PollMs != 50 {
		t.Errorf("Config.PollMs: got %d, want 50", sj.Status.Config.PollMs)
	}
}

func TestJSONUninitializedBeforeFirstUpdate(t *testing.T) {
	ts, _, _ := newTestServer(t)

	sj := getStatus(t, ts.URL)
	if sj.Status.State != "UNINITIALIZED" {
		t.Errorf("State: got %q, want UNINITIALIZED", sj.Status.State)
	}
	if len(sj.Status.Sensors) != 0 {
		t.Errorf("Sensors: got %d, want 0", len(sj.Status.Sensors))
	}
}

func TestJSONUptimeFollowsClock(t *testing.T) {
	ts, _, clk := newTestServer(t)
	clk.Add(90 * time.Second)

	sj := getStatus(t, ts.URL)
	if sj.Status.UptimeSeconds != 90 {
		t.Errorf("UptimeSeconds: got %d, want 90", sj.Status.UptimeSeconds)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	sj := getStatus(t, ts.URL)
	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(array.StateRunning, twoSensors())

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"Range Controller", "RUNNING", "0x30", "155.0", "FAILED"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr, _ := newTestServer(t)

	sj1 := getStatus(t, ts.URL)
	if sj1.Status.Transport.Connected {
		t.Error("expected transport disconnected initially")
	}

	tr.Update(array.StateRunning, twoSensors())
	tr.SetTransportConnected(true)

	sj2 := getStatus(t, ts.URL)
	if sj2.Status.Emitted != 3 {
		t.Errorf("Emitted: got %d, want 3", sj2.Status.Emitted)
	}
	if !sj2.Status.Transport.Connected {
		t.Error("expected transport connected after update")
	}

	tr.Update(array.StateTerminated, nil)
	sj3 := getStatus(t, ts.URL)
	if sj3.Status.State != "TERMINATED" {
		t.Errorf("State: got %q, want TERMINATED", sj3.Status.State)
	}
}

func TestWritesAreRejected(t *testing.T) {
	ts, _, _ := newTestServer(t)

	for _, path := range []string{"/", "/index.json", "/healthz"} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader("{}"))
			if err != nil {
				t.Fatalf("POST %s: %v", path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusMethodNotAllowed {
				t.Errorf("status: got %d, want 405", resp.StatusCode)
			}
			if allow := resp.Header.Get("Allow"); allow != "GET, HEAD" {
				t.Errorf("Allow: got %q, want GET, HEAD", allow)
			}
		})
	}
}

func TestSnapshotsAreNotCached(t *testing.T) {
	ts, _, _ := newTestServer(t)

	for _, path := range []string{"/", "/index.json", "/healthz"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
			t.Errorf("%s Cache-Control: got %q, want no-store", path, cc)
		}
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		state    array.State
		sensors  []array.SensorStatus
		wantCode int
		wantBody string
	}{
		{"before init", "", nil, http.StatusServiceUnavailable, "UNINITIALIZED\n"},
		{"running", array.StateRunning, twoSensors(), http.StatusOK, "RUNNING\n"},
		{"running without live sensors", array.StateRunning, twoSensors()[1:], http.StatusServiceUnavailable, "RUNNING\n"},
		{"terminated", array.StateTerminated, twoSensors(), http.StatusServiceUnavailable, "TERMINATED\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, tr, _ := newTestServer(t)
			if tt.state != "" {
				tr.Update(tt.state, tt.sensors)
			}

			resp, err := http.Get(ts.URL + "/healthz")
			if err != nil {
				t.Fatalf("GET /healthz: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantCode {
				t.Errorf("status: got %d, want %d", resp.StatusCode, tt.wantCode)
			}
			body, _ := io.ReadAll(resp.Body)
			if string(body) != tt.wantBody {
				t.Errorf("body: got %q, want %q", body, tt.wantBody)
			}
		})
	}
}
