package pwm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
)

// softPWMPeriod is the cycle length of software-timed pins (100 Hz)
const softPWMPeriod = 10 * time.Millisecond

// hardwarePWMChannel maps BCM pins to the SoC PWM channel behind them.
// Pins sharing a channel always carry the same duty.
var hardwarePWMChannel = map[int]int{12: 0, 18: 0, 13: 1, 19: 1}

// gpioPin is the part of rpio.Pin the writer drives
type gpioPin interface {
	Mode(mode rpio.Mode)
	High()
	Low()
	Freq(freq int)
	DutyCycle(dutyLen, cycleLen uint32)
}

// RpioWriter drives pins through /dev/gpiomem. The first pin on each SoC PWM
// channel gets hardware PWM; every other pin is toggled by a software timer.
type RpioWriter struct {
	logger   *slog.Logger
	closeMem func() error

	mu     sync.Mutex
	hw     map[int]gpioPin
	soft   map[int]*softPWM
	closed bool
}

// NewRpioWriter maps GPIO memory and sets up every pin at level 0
func NewRpioWriter(pins []int, freqHz int, logger *slog.Logger) (*RpioWriter, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("%w: failed to map gpio memory: %v", ErrUnavailable, err)
	}
	pinFor := func(n int) gpioPin { return rpio.Pin(n) }
	return newRpioWriter(pins, freqHz, pinFor, rpio.Close, logger), nil
}

func newRpioWriter(pins []int, freqHz int, pinFor func(int) gpioPin, closeMem func() error, logger *slog.Logger) *RpioWriter {
	hardware, software := SplitPWMPins(pins)

	w := &RpioWriter{
		logger:   logger,
		closeMem: closeMem,
		hw:       make(map[int]gpioPin, len(hardware)),
		soft:     make(map[int]*softPWM, len(software)),
	}
	for _, n := range hardware {
		pin := pinFor(n)
		pin.Mode(rpio.Pwm)
		// Output frequency is the PWM clock divided by the cycle length
		pin.Freq(freqHz * MaxLevel)
		pin.DutyCycle(0, MaxLevel)
		w.hw[n] = pin
	}
	for _, n := range software {
		pin := pinFor(n)
		pin.Mode(rpio.Output)
		pin.Low()
		s := newSoftPWM(pin)
		go s.run()
		w.soft[n] = s
	}

	logger.Info("Mapped gpio memory for PWM",
		"hardware_pins", hardware,
		"software_pins", software,
		"frequency_hz", freqHz)
	return w
}

// SplitPWMPins returns the pins that get a hardware PWM channel and those that
// are timed in software. The first pin claiming a channel wins it.
func SplitPWMPins(pins []int) (hardware, software []int) {
	claimed := make(map[int]bool, 2)
	for _, n := range pins {
		ch, ok := hardwarePWMChannel[n]
		if ok && !claimed[ch] {
			claimed[ch] = true
			hardware = append(hardware, n)
			continue
		}
		software = append(software, n)
	}
	return hardware, software
}

// SetLevel sets the duty cycle of pin to level/255
func (w *RpioWriter) SetLevel(ctx context.Context, pin int, level uint8) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("%w: gpio memory unmapped", ErrUnavailable)
	}
	if p, ok := w.hw[pin]; ok {
		p.DutyCycle(uint32(level), MaxLevel)
		return nil
	}
	if s, ok := w.soft[pin]; ok {
		s.level.Store(uint32(level))
		return nil
	}
	return fmt.Errorf("gpio %d was not configured for PWM", pin)
}

// Name identifies the backend
func (w *RpioWriter) Name() string {
	return "rpio"
}

// Close stops the software timers, drives every pin low and unmaps GPIO memory
func (w *RpioWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	for _, s := range w.soft {
		s.stop()
	}
	for _, p := range w.hw {
		p.DutyCycle(0, MaxLevel)
	}

	if err := w.closeMem(); err != nil {
		return fmt.Errorf("failed to unmap gpio memory: %w", err)
	}
	return nil
}

// softPWM toggles one output pin from a timer goroutine
type softPWM struct {
	pin   gpioPin
	level atomic.Uint32
	quit  chan struct{}
	done  chan struct{}
	timer *time.Timer
}

func newSoftPWM(pin gpioPin) *softPWM {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return &softPWM{
		pin:   pin,
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
		timer: t,
	}
}

func (s *softPWM) run() {
	defer close(s.done)
	defer s.pin.Low()

	for {
		level := s.level.Load()
		switch level {
		case 0:
			s.pin.Low()
			if !s.wait(softPWMPeriod) {
				return
			}
		case MaxLevel:
			s.pin.High()
			if !s.wait(softPWMPeriod) {
				return
			}
		default:
			on := softPWMPeriod * time.Duration(level) / MaxLevel
			s.pin.High()
			if !s.wait(on) {
				return
			}
			s.pin.Low()
			if !s.wait(softPWMPeriod - on) {
				return
			}
		}
	}
}

// wait returns false once the timer goroutine should exit
func (s *softPWM) wait(d time.Duration) bool {
	s.timer.Reset(d)
	select {
	case <-s.timer.C:
		return true
	case <-s.quit:
		s.timer.Stop()
		return false
	}
}

// stop ends the goroutine and returns once the pin is low
func (s *softPWM) stop() {
	close(s.quit)
	<-s.done
}
