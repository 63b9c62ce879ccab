package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RigFile is the YAML layout of a rig description file
type RigFile struct {
	Rig      string        `yaml:"rig"`
	Schedule *ScheduleFile `yaml:"schedule"`
	Channels []ChannelFile `yaml:"channels"`
	Driver   *DriverFile   `yaml:"driver"`
	Loop     *LoopFile     `yaml:"loop"`
}

// ScheduleFile describes the daylight window
type ScheduleFile struct {
	Sunrise    *float64 `yaml:"sunrise"`
	Sunset     *float64 `yaml:"sunset"`
	Sinusoidal *bool    `yaml:"sinusoidal"`
	Source     string   `yaml:"source"`
	Latitude   *float64 `yaml:"latitude"`
	Longitude  *float64 `yaml:"longitude"`
}

// ChannelFile binds a named channel to its intensity and pin
type ChannelFile struct {
	Name    string   `yaml:"name"`
	Percent *float64 `yaml:"percent"`
	Pin     *int     `yaml:"pin"`
}

// DriverFile selects the PWM backend
type DriverFile struct {
	Type         string `yaml:"type"`
	PigpioHost   string `yaml:"pigpio_host"`
	PigpioPort   int    `yaml:"pigpio_port"`
	PWMFrequency int    `yaml:"pwm_frequency"`
}

// LoopFile tunes loop pacing
type LoopFile struct {
	SimulatedStep *float64 `yaml:"simulated_step"`
	TickInterval  int      `yaml:"tick_interval_sec"`
	SimInterval   int      `yaml:"sim_tick_interval_sec"`
	SettleDelayMs *int     `yaml:"settle_delay_ms"`
}

// LoadFromFile applies a YAML rig file. Keys absent from the file keep their current values.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rig file: %w", err)
	}
	return c.LoadFromBytes(data)
}

// LoadFromBytes applies YAML rig data (useful for testing)
func (c *Config) LoadFromBytes(data []byte) error {
	var rf RigFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return &Error{Field: "config", Reason: fmt.Sprintf("failed to parse rig YAML: %v", err)}
	}

	if rf.Rig != "" {
		c.RigName = rf.Rig
	}

	if s := rf.Schedule; s != nil {
		if s.Sunrise != nil {
			c.Sunrise = *s.Sunrise
		}
		if s.Sunset != nil {
			c.Sunset = *s.Sunset
		}
		if s.Sinusoidal != nil {
			c.Sinusoidal = *s.Sinusoidal
		}
		if s.Source != "" {
			c.ScheduleSource = s.Source
		}
		if s.Latitude != nil {
			c.Latitude = *s.Latitude
		}
		if s.Longitude != nil {
			c.Longitude = *s.Longitude
		}
	}

	seen := make(map[string]bool, len(rf.Channels))
	for _, ch := range rf.Channels {
		idx := channelIndex(ch.Name)
		if idx < 0 {
			return &Error{Field: "channels", Reason: fmt.Sprintf("unknown channel %q", ch.Name)}
		}
		if seen[ch.Name] {
			return &Error{Field: "channels", Reason: fmt.Sprintf("channel %q listed twice", ch.Name)}
		}
		seen[ch.Name] = true

		if ch.Percent != nil {
			c.Profile[idx] = *ch.Percent
		}
		if ch.Pin != nil {
			c.Pins[idx] = *ch.Pin
		}
	}

	if d := rf.Driver; d != nil {
		if d.Type != "" {
			c.Driver = d.Type
		}
		if d.PigpioHost != "" {
			c.PigpioHost = d.PigpioHost
		}
		if d.PigpioPort != 0 {
			c.PigpioPort = d.PigpioPort
		}
		if d.PWMFrequency != 0 {
			c.PWMFrequency = d.PWMFrequency
		}
	}

	if l := rf.Loop; l != nil {
		if l.SimulatedStep != nil {
			c.SimulatedStep = *l.SimulatedStep
		}
		if l.TickInterval != 0 {
			c.TickIntervalSec = l.TickInterval
		}
		if l.SimInterval != 0 {
			c.SimTickIntervalSec = l.SimInterval
		}
		if l.SettleDelayMs != nil {
			c.SettleDelayMs = *l.SettleDelayMs
		}
	}

	return nil
}

func channelIndex(name string) int {
	for i, n := range ChannelNames {
		if n == name {
			return i
		}
	}
	return -1
}
