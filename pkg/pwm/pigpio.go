package pwm

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// pigpiod socket command numbers
const (
	cmdPWM   = 5
	cmdPIGPV = 26
)

const (
	pigpioIOTimeout    = 2 * time.Second
	pigpioMaxRedials   = 3
	pigpioFrameSize    = 16
	pigpioBadUserGPIO  = -2
	pigpioBadDutycycle = -8
	pigpioNotPermitted = -41
)

// dialFunc matches net.Dialer.DialContext
type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// PigpioWriter drives pins through a pigpiod daemon over its TCP socket.
// A broken connection is redialed on the next write; after repeated failed
// redials the daemon is considered gone and ErrUnavailable is returned.
type PigpioWriter struct {
	addr   string
	dial   dialFunc
	logger *slog.Logger

	mu      sync.Mutex
	conn    net.Conn
	redials int
	closed  bool
	buf     [pigpioFrameSize]byte
}

// NewPigpioWriter connects to pigpiod at addr and checks that it answers
func NewPigpioWriter(ctx context.Context, addr string, logger *slog.Logger) (*PigpioWriter, error) {
	d := &net.Dialer{Timeout: pigpioIOTimeout}
	return newPigpioWriter(ctx, addr, d.DialContext, logger)
}

func newPigpioWriter(ctx context.Context, addr string, dial dialFunc, logger *slog.Logger) (*PigpioWriter, error) {
	w := &PigpioWriter{
		addr:   addr,
		dial:   dial,
		logger: logger,
	}

	conn, err := dial(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to pigpiod at %s: %v", ErrUnavailable, addr, err)
	}
	w.conn = conn

	version, err := w.command(ctx, cmdPIGPV, 0, 0)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: pigpiod at %s did not answer: %v", ErrUnavailable, addr, err)
	}

	logger.Info("Connected to pigpiod", "address", addr, "version", version)
	return w, nil
}

// SetLevel sets the PWM duty cycle of pin (pigpio default range 0-255)
func (w *PigpioWriter) SetLevel(ctx context.Context, pin int, level uint8) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("%w: pigpio writer closed", ErrUnavailable)
	}

	if w.conn == nil {
		conn, err := w.dial(ctx, "tcp", w.addr)
		if err != nil {
			w.redials++
			if w.redials >= pigpioMaxRedials {
				return fmt.Errorf("%w: pigpiod at %s unreachable after %d attempts: %v", ErrUnavailable, w.addr, w.redials, err)
			}
			return fmt.Errorf("failed to reconnect to pigpiod at %s: %w", w.addr, err)
		}
		w.logger.Info("Reconnected to pigpiod", "address", w.addr)
		w.conn = conn
	}
	w.redials = 0

	res, err := w.command(ctx, cmdPWM, uint32(pin), uint32(level))
	if err != nil {
		w.conn.Close()
		w.conn = nil
		return fmt.Errorf("failed to set pwm on gpio %d: %w", pin, err)
	}
	if res < 0 {
		return fmt.Errorf("failed to set pwm on gpio %d: %w", pin, PigpioError(res))
	}

	return nil
}

// command sends one request frame and reads the response. Caller holds mu.
func (w *PigpioWriter) command(ctx context.Context, cmd, p1, p2 uint32) (int32, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(pigpioIOTimeout)
	}
	if err := w.conn.SetDeadline(deadline); err != nil {
		return 0, err
	}

	binary.LittleEndian.PutUint32(w.buf[0:], cmd)
	binary.LittleEndian.PutUint32(w.buf[4:], p1)
	binary.LittleEndian.PutUint32(w.buf[8:], p2)
	binary.LittleEndian.PutUint32(w.buf[12:], 0)

	if _, err := w.conn.Write(w.buf[:]); err != nil {
		return 0, err
	}
	if _, err := io.ReadFull(w.conn, w.buf[:]); err != nil {
		return 0, err
	}

	if got := binary.LittleEndian.Uint32(w.buf[0:]); got != cmd {
		return 0, fmt.Errorf("pigpiod answered command %d to request %d", got, cmd)
	}
	return int32(binary.LittleEndian.Uint32(w.buf[12:])), nil
}

// Name identifies the backend
func (w *PigpioWriter) Name() string {
	return "pigpio"
}

// Close closes the daemon socket
func (w *PigpioWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close pigpiod connection: %w", err)
	}
	return nil
}

// PigpioError is a negative status returned by pigpiod
type PigpioError int32

func (e PigpioError) Error() string {
	switch int32(e) {
	case pigpioBadUserGPIO:
		return "pigpio: gpio not 0-31"
	case pigpioBadDutycycle:
		return "pigpio: dutycycle outside set range"
	case pigpioNotPermitted:
		return "pigpio: gpio operation not permitted"
	default:
		return fmt.Sprintf("pigpio: error %d", int32(e))
	}
}
