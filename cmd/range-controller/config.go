package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sweeney/range-controller/internal/array"
	"github.com/sweeney/range-controller/internal/bus"
	"github.com/sweeney/range-controller/internal/gpio"
	"github.com/sweeney/range-controller/internal/logic"
	"github.com/sweeney/range-controller/internal/midi"
	"github.com/sweeney/range-controller/internal/vl53l1x"
)

// Environment variables that supply flag defaults.
const (
	envFile         = "RC_ENV_FILE"
	envI2CBus       = "RC_I2C_BUS"
	envGPIOChip     = "RC_GPIO_CHIP"
	envPins         = "RC_XSHUT_PINS"
	envControllers  = "RC_CONTROLLERS"
	envChannel      = "RC_CHANNEL"
	envAlpha        = "RC_ALPHA"
	envMinMM        = "RC_MIN_MM"
	envMaxMM        = "RC_MAX_MM"
	envBaseAddress  = "RC_BASE_ADDRESS"
	envDistanceMode = "RC_DISTANCE_MODE"
	envTimingBudget = "RC_TIMING_BUDGET"
	envPoll         = "RC_POLL"
	envResetDelay   = "RC_RESET_DELAY"
	envSettleDelay  = "RC_SETTLE_DELAY"
	envAddressDelay = "RC_ADDRESS_DELAY"
	envTransport    = "RC_TRANSPORT"
	envSerialPort   = "RC_SERIAL_PORT"
	envBaudRate     = "RC_BAUD"
	envBroker       = "RC_BROKER"
	envHeartbeat    = "RC_HEARTBEAT"
	envHTTP         = "RC_HTTP"
	envLogLevel     = "RC_LOG_LEVEL"
)

const (
	transportSerial = "serial"
	transportMQTT   = "mqtt"
)

type options struct {
	I2CBus       string
	GPIOChip     string
	Pins         []int
	Controllers  []int
	Channel      int
	Alpha        float64
	MinMM        float64
	MaxMM        float64
	BaseAddress  uint16
	DistanceMode vl53l1x.DistanceMode
	TimingBudget time.Duration
	Poll         time.Duration
	ResetDelay   time.Duration
	SettleDelay  time.Duration
	AddressDelay time.Duration
	Transport    string
	SerialPort   string
	BaudRate     int
	Broker       string
	Heartbeat    time.Duration
	HTTPAddr     string
	LogLevel     string
	Debug        bool
	Scan         bool
}

// loadEnvFile merges a dotenv file into the process environment.
// Variables already set win. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// parseOptions parses args with defaults taken from getenv.
func parseOptions(args []string, getenv func(string) string, output io.Writer) (options, error) {
	def := defaults{getenv: getenv}
	var o options

	flags := flag.NewFlagSet("range-controller", flag.ContinueOnError)
	flags.SetOutput(output)
	flags.StringVar(&o.I2CBus, "i2c-bus", def.str(envI2CBus, bus.DefaultName), "I2C bus name (empty for the first bus)")
	flags.StringVar(&o.GPIOChip, "gpio-chip", def.str(envGPIOChip, gpio.DefaultChip), "GPIO chip carrying the XSHUT lines")
	pins := flags.String("xshut-pins", def.str(envPins, fmt.Sprintf("%d,%d", gpio.DefaultPinS0, gpio.DefaultPinS1)), "BCM pins wired to each sensor's XSHUT, in sensor order")
	controllers := flags.String("controllers", def.str(envControllers, "20,22"), "Control-change number for each sensor, in sensor order")
	flags.IntVar(&o.Channel, "channel", def.integer(envChannel, midi.DefaultChannel), "MIDI channel (0-15)")
	flags.Float64Var(&o.Alpha, "alpha", def.float(envAlpha, logic.DefaultAlpha), "Smoothing factor in (0,1)")
	flags.Float64Var(&o.MinMM, "min-mm", def.float(envMinMM, float64(logic.DefaultMinDistance)), "Distance mapped to value 0")
	flags.Float64Var(&o.MaxMM, "max-mm", def.float(envMaxMM, float64(logic.DefaultMaxDistance)), "Distance mapped to value 127")
	base := flags.String("base-address", def.str(envBaseAddress, "0x30"), "I2C address assigned to sensor 0; sensor i gets base+i")
	mode := flags.String("distance-mode", def.str(envDistanceMode, vl53l1x.Short.String()), `Sensor distance mode: "short" or "long"`)
	flags.DurationVar(&o.TimingBudget, "timing-budget", def.duration(envTimingBudget, 50*time.Millisecond), "Sensor timing budget per measurement")
	flags.DurationVar(&o.Poll, "poll", def.duration(envPoll, 50*time.Millisecond), "Sensor polling interval")
	flags.DurationVar(&o.ResetDelay, "reset-delay", def.duration(envResetDelay, 500*time.Millisecond), "Time all sensors are held in shutdown before bring-up")
	flags.DurationVar(&o.SettleDelay, "settle-delay", def.duration(envSettleDelay, 500*time.Millisecond), "Wait after enabling a sensor")
	flags.DurationVar(&o.AddressDelay, "address-delay", def.duration(envAddressDelay, 100*time.Millisecond), "Wait after moving a sensor to its address")
	flags.StringVar(&o.Transport, "transport", def.str(envTransport, transportSerial), `Control-change transport: "serial" or "mqtt"`)
	flags.StringVar(&o.SerialPort, "serial-port", def.str(envSerialPort, "/dev/serial0"), "Serial port for MIDI output")
	flags.IntVar(&o.BaudRate, "baud", def.integer(envBaudRate, midi.DefaultBaudRate), "Serial baud rate")
	flags.StringVar(&o.Broker, "broker", def.str(envBroker, "tcp://192.168.1.200:1883"), "MQTT broker address")
	flags.DurationVar(&o.Heartbeat, "heartbeat", def.duration(envHeartbeat, 15*time.Minute), "Heartbeat interval (0 to disable)")
	flags.StringVar(&o.HTTPAddr, "http", def.str(envHTTP, ":80"), "HTTP status address (empty to disable)")
	flags.StringVar(&o.LogLevel, "log-level", def.str(envLogLevel, "info"), "Log level (debug, info, warn, error)")
	flags.BoolVar(&o.Debug, "debug", false, "Human-readable development logging")
	flags.BoolVar(&o.Scan, "scan", false, "Print the addresses answering on the I2C bus and exit")

	if err := flags.Parse(args); err != nil {
		return options{}, err
	}
	if def.err != nil {
		return options{}, def.err
	}

	var err error
	if o.Pins, err = parseInts(*pins); err != nil {
		return options{}, fmt.Errorf("xshut-pins: %w", err)
	}
	if o.Controllers, err = parseInts(*controllers); err != nil {
		return options{}, fmt.Errorf("controllers: %w", err)
	}
	addr, err := strconv.ParseUint(*base, 0, 7)
	if err != nil {
		return options{}, fmt.Errorf("base-address %q: %w", *base, err)
	}
	o.BaseAddress = uint16(addr)
	if o.DistanceMode, err = vl53l1x.ParseDistanceMode(*mode); err != nil {
		return options{}, fmt.Errorf("distance-mode: %w", err)
	}

	if err := o.validate(); err != nil {
		return options{}, err
	}
	return o, nil
}

func (o options) validate() error {
	if o.Transport != transportSerial && o.Transport != transportMQTT {
		return fmt.Errorf("transport %q: must be %q or %q", o.Transport, transportSerial, transportMQTT)
	}
	if o.Channel < 0 || o.Channel > 15 {
		return fmt.Errorf("channel %d out of range 0..15", o.Channel)
	}
	if o.Poll <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if o.Heartbeat < 0 {
		return fmt.Errorf("heartbeat interval must not be negative")
	}
	if o.onDefaultI2C() {
		for _, pin := range o.Pins {
			if gpio.ReservedForI2C(pin) {
				return fmt.Errorf("xshut pin %d is an I2C bus pin (SDA=%d, SCL=%d)", pin, gpio.PinSDA, gpio.PinSCL)
			}
		}
	}
	if err := o.sensorConfig().Validate(); err != nil {
		return err
	}
	if err := o.arrayConfig().Validate(len(o.Pins)); err != nil {
		return err
	}
	return nil
}

// onDefaultI2C reports whether the sensors sit on the header's I2C1 bus,
// driven from the header's own GPIO chip.
func (o options) onDefaultI2C() bool {
	if o.GPIOChip != gpio.DefaultChip {
		return false
	}
	switch o.I2CBus {
	case bus.DefaultName, "1", "I2C1", "/dev/i2c-1":
		return true
	}
	return false
}

func (o options) sensorConfig() vl53l1x.Config {
	return vl53l1x.Config{Mode: o.DistanceMode, TimingBudget: o.TimingBudget}
}

func (o options) arrayConfig() array.Config {
	return array.Config{
		Alpha:          o.Alpha,
		MinDistance:    logic.Millimeters(o.MinMM),
		MaxDistance:    logic.Millimeters(o.MaxMM),
		Controllers:    o.Controllers,
		DefaultAddress: vl53l1x.DefaultAddress,
		BaseAddress:    o.BaseAddress,
		ResetDelay:     o.ResetDelay,
		SettleDelay:    o.SettleDelay,
		AddressDelay:   o.AddressDelay,
	}
}

// target is the transport destination shown on the status page.
func (o options) target() string {
	if o.Transport == transportMQTT {
		return o.Broker
	}
	return o.SerialPort
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", f, err)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, errors.New("empty list")
	}
	return out, nil
}

// defaults reads flag defaults from the environment, keeping the first parse error.
type defaults struct {
	getenv func(string) string
	err    error
}

func (d *defaults) str(key, fallback string) string {
	if v := d.getenv(key); v != "" {
		return v
	}
	return fallback
}

func (d *defaults) integer(key string, fallback int) int {
	v := d.getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		d.fail(key, err)
		return fallback
	}
	return n
}

func (d *defaults) float(key string, fallback float64) float64 {
	v := d.getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		d.fail(key, err)
		return fallback
	}
	return f
}

func (d *defaults) duration(key string, fallback time.Duration) time.Duration {
	v := d.getenv(key)
	if v == "" {
		return fallback
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		d.fail(key, err)
		return fallback
	}
	return dur
}

func (d *defaults) fail(key string, err error) {
	if d.err == nil {
		d.err = fmt.Errorf("%s: %w", key, err)
	}
}
