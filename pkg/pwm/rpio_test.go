package pwm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/daylight-rig/pkg/config"
)

// fakePin records what the writer did to one GPIO
type fakePin struct {
	mu    sync.Mutex
	mode  rpio.Mode
	high  bool
	rises int
	freq  int
	duty  uint32
	cycle uint32
}

func (p *fakePin) Mode(mode rpio.Mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = mode
}

func (p *fakePin) High() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.high {
		p.rises++
	}
	p.high = true
}

func (p *fakePin) Low() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.high = false
}

func (p *fakePin) Freq(freq int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.freq = freq
}

func (p *fakePin) DutyCycle(dutyLen, cycleLen uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.duty, p.cycle = dutyLen, cycleLen
}

func (p *fakePin) isHigh() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.high
}

func (p *fakePin) riseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rises
}

func (p *fakePin) dutyCycle() (uint32, uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty, p.cycle
}

type fakeGPIO struct {
	pins     map[int]*fakePin
	unmapped bool
}

func newFakeGPIO() *fakeGPIO {
	return &fakeGPIO{pins: make(map[int]*fakePin)}
}

func (g *fakeGPIO) pin(n int) gpioPin {
	p := &fakePin{}
	g.pins[n] = p
	return p
}

func (g *fakeGPIO) unmap() error {
	g.unmapped = true
	return nil
}

func TestSplitPWMPins(t *testing.T) {
	tests := []struct {
		name     string
		pins     []int
		hardware []int
		software []int
	}{
		{"default rig", []int{4, 18, 17, 27, 22, 23}, []int{18}, []int{4, 17, 27, 22, 23}},
		{"both channels", []int{12, 13, 18, 19, 5, 6}, []int{12, 13}, []int{18, 19, 5, 6}},
		{"no pwm pins", []int{4, 5, 6}, nil, []int{4, 5, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hardware, software := SplitPWMPins(tt.pins)
			assert.Equal(t, tt.hardware, hardware)
			assert.Equal(t, tt.software, software)
		})
	}
}

func TestRpioWriter_DefaultRigConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Driver = "rpio"
	require.NoError(t, cfg.Validate())

	gpio := newFakeGPIO()
	w := newRpioWriter(cfg.Pins[:], cfg.PWMFrequency, gpio.pin, gpio.unmap, discardLogger())

	require.Len(t, gpio.pins, config.ChannelCount)
	assert.Equal(t, rpio.Pwm, gpio.pins[18].mode)
	assert.Equal(t, cfg.PWMFrequency*MaxLevel, gpio.pins[18].freq)
	assert.Equal(t, rpio.Output, gpio.pins[4].mode)

	for _, pin := range cfg.Pins {
		assert.NoError(t, w.SetLevel(context.Background(), pin, 128))
	}
	require.NoError(t, w.Close())
}

func TestRpioWriter_Levels(t *testing.T) {
	gpio := newFakeGPIO()
	w := newRpioWriter([]int{18, 4, 17}, 800, gpio.pin, gpio.unmap, discardLogger())
	ctx := context.Background()

	// hardware pin
	require.NoError(t, w.SetLevel(ctx, 18, 77))
	duty, cycle := gpio.pins[18].dutyCycle()
	assert.Equal(t, uint32(77), duty)
	assert.Equal(t, uint32(MaxLevel), cycle)

	// software pins
	require.NoError(t, w.SetLevel(ctx, 4, 255))
	assert.Eventually(t, gpio.pins[4].isHigh, time.Second, time.Millisecond)

	require.NoError(t, w.SetLevel(ctx, 17, 128))
	assert.Eventually(t, func() bool {
		return gpio.pins[17].riseCount() >= 3
	}, 2*time.Second, time.Millisecond)

	require.NoError(t, w.SetLevel(ctx, 4, 0))
	assert.Eventually(t, func() bool {
		return !gpio.pins[4].isHigh()
	}, time.Second, time.Millisecond)

	assert.Error(t, w.SetLevel(ctx, 5, 10))
	assert.Equal(t, "rpio", w.Name())
}

func TestRpioWriter_CloseDrivesPinsLow(t *testing.T) {
	gpio := newFakeGPIO()
	w := newRpioWriter([]int{18, 4}, 800, gpio.pin, gpio.unmap, discardLogger())
	ctx := context.Background()

	require.NoError(t, w.SetLevel(ctx, 18, 200))
	require.NoError(t, w.SetLevel(ctx, 4, 255))
	require.Eventually(t, gpio.pins[4].isHigh, time.Second, time.Millisecond)

	require.NoError(t, w.Close())
	assert.False(t, gpio.pins[4].isHigh())
	duty, _ := gpio.pins[18].dutyCycle()
	assert.Equal(t, uint32(0), duty)
	assert.True(t, gpio.unmapped)

	assert.ErrorIs(t, w.SetLevel(ctx, 4, 10), ErrUnavailable)
	assert.NoError(t, w.Close())
}
