package rig

import (
	"fmt"

	"github.com/saaga0h/daylight-rig/pkg/config"
)

// Channel is a logical LED channel of the rig
type Channel int

const (
	Red Channel = iota
	Green
	Blue
	White
	UV
	Spare
)

// Channels lists every channel in rig order
var Channels = [config.ChannelCount]Channel{Red, Green, Blue, White, UV, Spare}

func (c Channel) String() string {
	if c < 0 || int(c) >= config.ChannelCount {
		return fmt.Sprintf("channel(%d)", int(c))
	}
	return config.ChannelNames[c]
}

// Profile holds each channel's intensity in percent at full daylight
type Profile [config.ChannelCount]float64

// Validate rejects intensities outside [0, 100]
func (p Profile) Validate() error {
	for _, ch := range Channels {
		if pct := p[ch]; pct < 0 || pct > 100 {
			return fmt.Errorf("%s intensity %g is outside [0, 100]", ch, pct)
		}
	}
	return nil
}

// PinMap binds each channel to a hardware pin
type PinMap [config.ChannelCount]int

// Levels holds one drive level per channel
type Levels [config.ChannelCount]uint8

// Map returns the levels keyed by channel name, for logs and status output
func (l Levels) Map() map[string]int {
	m := make(map[string]int, len(l))
	for _, ch := range Channels {
		m[ch.String()] = int(l[ch])
	}
	return m
}
