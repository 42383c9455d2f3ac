// Command range-controller reads an array of VL53L1X time-of-flight sensors and
// sends each sensor's smoothed distance as a MIDI control change.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sweeney/range-controller/internal/array"
	"github.com/sweeney/range-controller/internal/bus"
	"github.com/sweeney/range-controller/internal/gpio"
	"github.com/sweeney/range-controller/internal/midi"
	"github.com/sweeney/range-controller/internal/mqtt"
	"github.com/sweeney/range-controller/internal/status"
	"github.com/sweeney/range-controller/internal/vl53l1x"
	"github.com/sweeney/range-controller/internal/web"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	os.Exit(start(os.Args[1:]))
}

// start runs the daemon and returns the process exit code.
func start(args []string) int {
	if err := loadEnvFile(os.Getenv(envFile)); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}
	opts, err := parseOptions(args, os.Getenv, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}

	logger, err := newLogger(opts.LogLevel, opts.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 2
	}
	zap.ReplaceGlobals(logger)

	return exitCode(logger, run(opts, logger.Sugar()))
}

// exitCode logs a fatal run error and flushes the logger.
func exitCode(logger *zap.Logger, err error) int {
	code := 0
	if err != nil {
		logger.Error("fatal", zap.Error(err))
		code = 1
	}
	logger.Sync()
	return code
}

func newLogger(level string, debug bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// eventPublisher receives system lifecycle events.
type eventPublisher interface {
	PublishSystem(event mqtt.SystemEvent) error
}

func run(opts options, log *zap.SugaredLogger) error {
	clk := clock.New()

	i2c, err := bus.NewRealBus(opts.I2CBus)
	if err != nil {
		return fmt.Errorf("init i2c: %w", err)
	}
	defer i2c.Close()

	if opts.Scan {
		for _, addr := range i2c.Scan() {
			fmt.Printf("0x%02x\n", addr)
		}
		return nil
	}

	lines, err := gpio.NewRealLines(opts.GPIOChip, opts.Pins)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer lines.Close()

	resync := make(chan struct{}, 1)
	var (
		sender midi.Transport
		events eventPublisher
		conn   mqtt.ConnectionStatus
	)
	switch opts.Transport {
	case transportMQTT:
		pub, err := mqtt.NewRealPublisher(opts.Broker, mqtt.Options{
			Channel: opts.Channel,
			Now:     clk.Now,
			OnReconnect: func() {
				select {
				case resync <- struct{}{}:
				default:
				}
			},
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		sender, events, conn = pub, pub, pub
	default:
		port, err := midi.NewSerialTransport(opts.SerialPort, midi.PortOptions{BaudRate: opts.BaudRate}, opts.Channel)
		if err != nil {
			return fmt.Errorf("init serial: %w", err)
		}
		sender = port
	}
	defer sender.Close()

	tracker := status.NewTracker(clk, status.Config{
		PollMs:      opts.Poll.Milliseconds(),
		HeartbeatMs: opts.Heartbeat.Milliseconds(),
		Transport:   opts.Transport,
		Target:      opts.target(),
		HTTPPort:    opts.HTTPAddr,
		Alpha:       opts.Alpha,
		MinMM:       opts.MinMM,
		MaxMM:       opts.MaxMM,
	})
	tracker.SetTransportConnected(conn == nil || conn.IsConnected())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	sensorCfg := opts.sensorConfig()
	sensorCfg.Sleep = clk.Sleep
	arr, err := array.New(opts.arrayConfig(), array.Hardware{
		Bus:   i2c,
		Lines: lines.Lines(),
		Open:  vl53l1x.Opener(i2c, sensorCfg),
		Sleep: clk.Sleep,
	}, sender, log)
	if err != nil {
		return err
	}
	defer arr.Close()

	if err := arr.Init(); err != nil {
		if errors.Is(err, array.ErrNoSensors) {
			return fmt.Errorf("no sensor could be brought up on %s: %w", i2c, err)
		}
		return fmt.Errorf("init sensors: %w", err)
	}
	tracker.Update(arr.State(), arr.Sensors())

	publishSystem(events, tracker, "STARTUP", "", log)

	if opts.HTTPAddr != "" {
		srv := web.New(opts.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorw("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Infow("http status server listening", "addr", opts.HTTPAddr)
	}

	log.Infow("started",
		"poll", opts.Poll,
		"distance_mode", opts.DistanceMode,
		"timing_budget", opts.TimingBudget,
		"transport", opts.Transport,
		"target", opts.target(),
		"live", arr.Live(),
		"heartbeat", opts.Heartbeat)

	ticker := clk.Ticker(opts.Poll)
	defer ticker.Stop()

	var heartbeat <-chan time.Time
	if opts.Heartbeat > 0 {
		hb := clk.Ticker(opts.Heartbeat)
		defer hb.Stop()
		heartbeat = hb.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	return runLoop(arr, events, conn, tracker, log, ticker.C, heartbeat, resync, sigCh)
}

// runLoop polls the array on every tick until SIGINT or SIGTERM.
// SIGHUP and transport reconnects re-send every current value.
func runLoop(arr *array.Array, events eventPublisher, conn mqtt.ConnectionStatus, tracker *status.Tracker, log *zap.SugaredLogger, tick, heartbeat <-chan time.Time, resync <-chan struct{}, sig <-chan os.Signal) error {
	update := func() {
		tracker.Update(arr.State(), arr.Sensors())
		if conn != nil {
			tracker.SetTransportConnected(conn.IsConnected())
		}
	}

	for {
		select {
		case s := <-sig:
			if s == syscall.SIGHUP {
				log.Infow("received SIGHUP, resending values")
				sent := arr.Resync()
				log.Infow("resync complete", "sent", len(sent))
				update()
				continue
			}

			log.Infow("shutting down", "signal", s)
			update()
			publishSystem(events, tracker, "SHUTDOWN", signalName(s), log)
			return nil

		case <-resync:
			sent := arr.Resync()
			log.Infow("transport reconnected, values resent", "sent", len(sent))
			update()

		case <-heartbeat:
			update()
			if net := readNetworkInfo(); net != nil {
				tracker.SetNetwork(net)
			}
			snap := tracker.Snapshot()
			log.Infow("heartbeat",
				"uptime", snap.Uptime().Truncate(time.Second),
				"live", snap.Live(),
				"emitted", snap.Emitted(),
				"cycles", snap.Cycles)
			publishSystem(events, tracker, "HEARTBEAT", "", log)

		case <-tick:
			arr.Poll()
			tracker.RecordCycle(arr.State(), arr.Sensors())
			if conn != nil {
				tracker.SetTransportConnected(conn.IsConnected())
			}
		}
	}
}

// publishSystem sends a lifecycle event carrying the current status snapshot.
// A nil publisher drops the event.
func publishSystem(events eventPublisher, tracker *status.Tracker, name, reason string, log *zap.SugaredLogger) {
	if events == nil {
		return
	}
	snap := tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      name,
		Reason:     reason,
		Retained:   name != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, name, reason),
	}
	if err := events.PublishSystem(ev); err != nil {
		log.Warnw("failed to publish system event", "event", name, "error", err)
		return
	}
	log.Debugw("published system event", "event", name)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGHUP:
		return "SIGHUP"
	}
	return "UNKNOWN"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
