package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// ChannelCount is the number of physical LED channels on the rig
const ChannelCount = 6

// ChannelNames lists the logical channels in rig order
var ChannelNames = [ChannelCount]string{"red", "green", "blue", "white", "uv", "spare"}

// Config holds the configuration for a daylight rig agent.
// It is built once at startup and treated as immutable afterwards.
type Config struct {
	// Schedule configuration
	Sunrise        float64
	Sunset         float64
	Sinusoidal     bool
	ScheduleSource string // "fixed" or "sun"
	Latitude       float64
	Longitude      float64

	// Channel configuration
	RigName string
	Profile [ChannelCount]float64 // percent of full drive at noon
	Pins    [ChannelCount]int     // BCM pin per channel

	// Loop configuration
	SimulatedStep      float64 // hours per tick, 0 = wall clock
	TickIntervalSec    int
	SimTickIntervalSec int
	SettleDelayMs      int

	// Hardware driver configuration
	Driver       string // "pigpio", "rpio", "mqtt" or "log"
	PigpioHost   string
	PigpioPort   int
	PWMFrequency int

	// MQTT configuration (mqtt driver)
	MQTTBroker   string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string

	// Redis configuration (status reporting)
	EnableRedisStatus bool
	RedisHost         string
	RedisPort         int
	RedisPassword     string
	RedisDB           int

	// Service configuration
	ServiceName string
	HealthPort  int
	LogLevel    string
	ConfigFile  string
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Sunrise:        6.0,
		Sunset:         18.0,
		Sinusoidal:     true,
		ScheduleSource: "fixed",
		// Helsinki coordinates
		Latitude:  60.1695,
		Longitude: 24.9354,

		RigName: "rig",
		Profile: [ChannelCount]float64{10, 30, 5, 100, 0, 10},
		Pins:    [ChannelCount]int{4, 18, 17, 27, 22, 23},

		SimulatedStep:      0,
		TickIntervalSec:    5,
		SimTickIntervalSec: 1,
		SettleDelayMs:      1000,

		Driver:       "pigpio",
		PigpioHost:   "localhost",
		PigpioPort:   8888,
		PWMFrequency: 800,

		MQTTBroker: "localhost",
		MQTTPort:   1883,

		EnableRedisStatus: false,
		RedisHost:         "localhost",
		RedisPort:         6379,

		ServiceName: "daylight-agent",
		HealthPort:  8080,
		LogLevel:    "info",
	}
}

// Load builds the configuration with hierarchy: defaults → file → env → flags.
// The file is named by --config or DAYLIGHT_CONFIG.
func Load(args []string) (*Config, error) {
	c := NewConfig()

	if path := configFilePath(args); path != "" {
		if err := c.LoadFromFile(path); err != nil {
			return nil, err
		}
		c.ConfigFile = path
	}
	if err := c.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := c.LoadFromFlags(args); err != nil {
		return nil, err
	}
	return c, nil
}

// configFilePath finds the rig file before flags are parsed so the file can sit below env
func configFilePath(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(arg, "--config="); ok {
			return v
		}
	}
	return os.Getenv("DAYLIGHT_CONFIG")
}

// LoadFromEnv loads configuration from environment variables with DAYLIGHT_ prefix.
// A value that does not parse is a configuration error.
func (c *Config) LoadFromEnv() error {
	var errs envErrors

	// Schedule configuration
	errs.parseFloat("DAYLIGHT_SUNRISE", "sunrise", &c.Sunrise)
	errs.parseFloat("DAYLIGHT_SUNSET", "sunset", &c.Sunset)
	errs.parseBool("DAYLIGHT_SINUSOIDAL", "sinusoidal", &c.Sinusoidal)
	if v := os.Getenv("DAYLIGHT_SCHEDULE_SOURCE"); v != "" {
		c.ScheduleSource = v
	}
	errs.parseFloat("DAYLIGHT_LATITUDE", "latitude", &c.Latitude)
	errs.parseFloat("DAYLIGHT_LONGITUDE", "longitude", &c.Longitude)

	// Channel configuration
	if v := os.Getenv("DAYLIGHT_RIG_NAME"); v != "" {
		c.RigName = v
	}
	if v := os.Getenv("DAYLIGHT_PROFILE"); v != "" {
		profile, err := ParseProfile(v)
		if err != nil {
			return err
		}
		c.Profile = profile
	}
	if v := os.Getenv("DAYLIGHT_PINS"); v != "" {
		pins, err := ParsePins(v)
		if err != nil {
			return err
		}
		c.Pins = pins
	}

	// Loop configuration
	errs.parseFloat("DAYLIGHT_SIMULATED_STEP", "simulated-step", &c.SimulatedStep)
	errs.parseInt("DAYLIGHT_TICK_INTERVAL_SEC", "tick-interval", &c.TickIntervalSec)
	errs.parseInt("DAYLIGHT_SIM_TICK_INTERVAL_SEC", "sim-tick-interval", &c.SimTickIntervalSec)
	errs.parseInt("DAYLIGHT_SETTLE_DELAY_MS", "settle-delay-ms", &c.SettleDelayMs)

	// Hardware driver configuration
	if v := os.Getenv("DAYLIGHT_DRIVER"); v != "" {
		c.Driver = v
	}
	if v := os.Getenv("DAYLIGHT_PIGPIO_HOST"); v != "" {
		c.PigpioHost = v
	}
	errs.parseInt("DAYLIGHT_PIGPIO_PORT", "pigpio-port", &c.PigpioPort)
	errs.parseInt("DAYLIGHT_PWM_FREQUENCY", "pwm-frequency", &c.PWMFrequency)

	// MQTT configuration
	if v := os.Getenv("DAYLIGHT_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	errs.parseInt("DAYLIGHT_MQTT_PORT", "mqtt-port", &c.MQTTPort)
	if v := os.Getenv("DAYLIGHT_MQTT_USER"); v != "" {
		c.MQTTUser = v
	}
	if v := os.Getenv("DAYLIGHT_MQTT_PASSWORD"); v != "" {
		c.MQTTPassword = v
	}
	if v := os.Getenv("DAYLIGHT_MQTT_CLIENT_ID"); v != "" {
		c.MQTTClientID = v
	}

	// Redis configuration
	errs.parseBool("DAYLIGHT_ENABLE_REDIS_STATUS", "enable-redis-status", &c.EnableRedisStatus)
	if v := os.Getenv("DAYLIGHT_REDIS_HOST"); v != "" {
		c.RedisHost = v
	}
	errs.parseInt("DAYLIGHT_REDIS_PORT", "redis-port", &c.RedisPort)
	if v := os.Getenv("DAYLIGHT_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	errs.parseInt("DAYLIGHT_REDIS_DB", "redis-db", &c.RedisDB)

	// Service configuration
	if v := os.Getenv("DAYLIGHT_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	errs.parseInt("DAYLIGHT_HEALTH_PORT", "health-port", &c.HealthPort)
	if v := os.Getenv("DAYLIGHT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DAYLIGHT_CONFIG"); v != "" && c.ConfigFile == "" {
		c.ConfigFile = v
	}

	if errs.err != nil {
		return errs.err
	}
	return nil
}

// envErrors parses typed environment values and keeps the first failure
type envErrors struct {
	err *Error
}

func (e *envErrors) fail(key, field, v, kind string) {
	if e.err == nil {
		e.err = &Error{Field: field, Reason: fmt.Sprintf("%s=%q is not %s", key, v, kind)}
	}
}

func (e *envErrors) parseFloat(key, field string, dst *float64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, field, v, "a number")
		return
	}
	*dst = f
}

func (e *envErrors) parseInt(key, field string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, field, v, "an integer")
		return
	}
	*dst = n
}

func (e *envErrors) parseBool(key, field string, dst *bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, field, v, "a boolean")
		return
	}
	*dst = b
}

// LoadFromFlags parses command-line flags and overrides config values.
// --config is accepted here but the file itself is applied by Load.
func (c *Config) LoadFromFlags(args []string) error {
	fs := pflag.NewFlagSet(c.ServiceName, pflag.ContinueOnError)

	var profile, pins string

	// Schedule flags
	fs.Float64Var(&c.Sunrise, "sunrise", c.Sunrise, "Sunrise as fractional hour (6.5 = 06:30)")
	fs.Float64Var(&c.Sunset, "sunset", c.Sunset, "Sunset as fractional hour")
	fs.BoolVar(&c.Sinusoidal, "sinusoidal", c.Sinusoidal, "Use the sinusoidal daylight curve instead of flat on/off")
	fs.StringVar(&c.ScheduleSource, "schedule-source", c.ScheduleSource, "Schedule source (fixed, sun)")
	fs.Float64Var(&c.Latitude, "latitude", c.Latitude, "Geographic latitude for the sun schedule")
	fs.Float64Var(&c.Longitude, "longitude", c.Longitude, "Geographic longitude for the sun schedule")

	// Channel flags
	fs.StringVar(&c.RigName, "rig-name", c.RigName, "Rig name used in topics and status keys")
	fs.StringVar(&profile, "profile", "", "Channel intensities in percent, red,green,blue,white,uv,spare")
	fs.StringVar(&pins, "pins", "", "BCM pins, red,green,blue,white,uv,spare")

	// Loop flags
	fs.Float64Var(&c.SimulatedStep, "simulated-step", c.SimulatedStep, "Simulated hours per tick (0 = wall clock)")
	fs.IntVar(&c.TickIntervalSec, "tick-interval", c.TickIntervalSec, "Tick interval in seconds on the wall clock")
	fs.IntVar(&c.SimTickIntervalSec, "sim-tick-interval", c.SimTickIntervalSec, "Tick interval in seconds in simulation")
	fs.IntVar(&c.SettleDelayMs, "settle-delay-ms", c.SettleDelayMs, "Pause after the initial all-off write (ms)")

	// Hardware flags
	fs.StringVar(&c.Driver, "driver", c.Driver, "PWM driver (pigpio, rpio, mqtt, log)")
	fs.StringVar(&c.PigpioHost, "pigpio-host", c.PigpioHost, "pigpiod hostname")
	fs.IntVar(&c.PigpioPort, "pigpio-port", c.PigpioPort, "pigpiod port")
	fs.IntVar(&c.PWMFrequency, "pwm-frequency", c.PWMFrequency, "PWM frequency in Hz (rpio driver)")

	// MQTT flags
	fs.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	fs.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	fs.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	fs.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	fs.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	fs.BoolVar(&c.EnableRedisStatus, "enable-redis-status", c.EnableRedisStatus, "Publish current status to Redis")
	fs.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	fs.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	// Service flags
	fs.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	fs.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check HTTP port")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "YAML rig file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.Changed("profile") {
		p, err := ParseProfile(profile)
		if err != nil {
			return err
		}
		c.Profile = p
	}
	if fs.Changed("pins") {
		p, err := ParsePins(pins)
		if err != nil {
			return err
		}
		c.Pins = p
	}

	return nil
}

// Validate checks that the configuration describes a runnable rig.
// Every failure is a *Error.
func (c *Config) Validate() error {
	if c.Sunrise < 0 || c.Sunrise >= 24 {
		return &Error{Field: "sunrise", Reason: fmt.Sprintf("%g is outside [0, 24)", c.Sunrise)}
	}
	if c.Sunset < 0 || c.Sunset >= 24 {
		return &Error{Field: "sunset", Reason: fmt.Sprintf("%g is outside [0, 24)", c.Sunset)}
	}
	if c.Sunrise >= c.Sunset {
		return &Error{Field: "sunrise", Reason: fmt.Sprintf("sunrise %g must be before sunset %g", c.Sunrise, c.Sunset)}
	}

	switch c.ScheduleSource {
	case "fixed":
	case "sun":
		if c.Latitude < -90 || c.Latitude > 90 {
			return &Error{Field: "latitude", Reason: "must be between -90 and 90"}
		}
		if c.Longitude < -180 || c.Longitude > 180 {
			return &Error{Field: "longitude", Reason: "must be between -180 and 180"}
		}
	default:
		return &Error{Field: "schedule-source", Reason: fmt.Sprintf("unknown source %q (must be fixed or sun)", c.ScheduleSource)}
	}

	for i, pct := range c.Profile {
		if pct < 0 || pct > 100 {
			return &Error{Field: "profile", Reason: fmt.Sprintf("%s intensity %g is outside [0, 100]", ChannelNames[i], pct)}
		}
	}

	seen := make(map[int]string, ChannelCount)
	for i, pin := range c.Pins {
		if pin < 0 || pin > 27 {
			return &Error{Field: "pins", Reason: fmt.Sprintf("%s pin %d is not a BCM GPIO (0-27)", ChannelNames[i], pin)}
		}
		if other, dup := seen[pin]; dup {
			return &Error{Field: "pins", Reason: fmt.Sprintf("pin %d is bound to both %s and %s", pin, other, ChannelNames[i])}
		}
		seen[pin] = ChannelNames[i]
	}

	if c.SimulatedStep < 0 || c.SimulatedStep >= 24 {
		return &Error{Field: "simulated-step", Reason: "must be in [0, 24)"}
	}
	if c.TickIntervalSec <= 0 || c.SimTickIntervalSec <= 0 {
		return &Error{Field: "tick-interval", Reason: "tick intervals must be positive"}
	}
	if c.SettleDelayMs < 0 {
		return &Error{Field: "settle-delay-ms", Reason: "must not be negative"}
	}
	if c.RigName == "" || strings.ContainsAny(c.RigName, "/+#: ") {
		return &Error{Field: "rig-name", Reason: fmt.Sprintf("%q must be non-empty without '/', '+', '#', ':' or spaces", c.RigName)}
	}

	switch c.Driver {
	case "pigpio":
		if c.PigpioHost == "" {
			return &Error{Field: "pigpio-host", Reason: "is required for the pigpio driver"}
		}
		if c.PigpioPort <= 0 || c.PigpioPort > 65535 {
			return &Error{Field: "pigpio-port", Reason: "must be between 1 and 65535"}
		}
	case "rpio":
		if c.PWMFrequency <= 0 {
			return &Error{Field: "pwm-frequency", Reason: "must be positive"}
		}
	case "mqtt":
		if c.MQTTBroker == "" {
			return &Error{Field: "mqtt-broker", Reason: "is required for the mqtt driver"}
		}
		if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
			return &Error{Field: "mqtt-port", Reason: "must be between 1 and 65535"}
		}
	case "log":
	default:
		return &Error{Field: "driver", Reason: fmt.Sprintf("unknown driver %q (must be pigpio, rpio, mqtt or log)", c.Driver)}
	}

	if c.EnableRedisStatus {
		if c.RedisHost == "" {
			return &Error{Field: "redis-host", Reason: "is required when redis status is enabled"}
		}
		if c.RedisPort <= 0 || c.RedisPort > 65535 {
			return &Error{Field: "redis-port", Reason: "must be between 1 and 65535"}
		}
	}

	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return &Error{Field: "health-port", Reason: "must be between 1 and 65535"}
	}
	if c.ServiceName == "" {
		return &Error{Field: "service-name", Reason: "is required"}
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return &Error{Field: "log-level", Reason: fmt.Sprintf("%q (must be debug, info, warn, or error)", c.LogLevel)}
	}

	return nil
}

// Simulated reports whether the loop runs on a fast-forward clock
func (c *Config) Simulated() bool {
	return c.SimulatedStep != 0
}

// TickInterval returns the pause between loop iterations
func (c *Config) TickInterval() time.Duration {
	if c.Simulated() {
		return time.Duration(c.SimTickIntervalSec) * time.Second
	}
	return time.Duration(c.TickIntervalSec) * time.Second
}

// SettleDelay returns the pause after the initial all-off write
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// PigpioAddress returns the pigpiod socket address
func (c *Config) PigpioAddress() string {
	return fmt.Sprintf("%s:%d", c.PigpioHost, c.PigpioPort)
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// ParseProfile parses six comma-separated percentages
func ParseProfile(s string) ([ChannelCount]float64, error) {
	var profile [ChannelCount]float64
	parts := strings.Split(s, ",")
	if len(parts) != ChannelCount {
		return profile, &Error{Field: "profile", Reason: fmt.Sprintf("expected %d values, got %d", ChannelCount, len(parts))}
	}
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return profile, &Error{Field: "profile", Reason: fmt.Sprintf("%s value %q is not a number", ChannelNames[i], part)}
		}
		profile[i] = v
	}
	return profile, nil
}

// ParsePins parses six comma-separated BCM pin numbers
func ParsePins(s string) ([ChannelCount]int, error) {
	var pins [ChannelCount]int
	parts := strings.Split(s, ",")
	if len(parts) != ChannelCount {
		return pins, &Error{Field: "pins", Reason: fmt.Sprintf("expected %d values, got %d", ChannelCount, len(parts))}
	}
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return pins, &Error{Field: "pins", Reason: fmt.Sprintf("%s pin %q is not an integer", ChannelNames[i], part)}
		}
		pins[i] = v
	}
	return pins, nil
}
