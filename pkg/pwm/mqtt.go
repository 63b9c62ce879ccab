package pwm

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/saaga0h/daylight-rig/pkg/mqtt"
)

// publishTimeout bounds how long one level waits for the broker's acknowledgement
const publishTimeout = 2 * time.Second

// MQTTWriter publishes drive levels to a remote PWM node.
// Each pin has its own retained topic so a node that reconnects picks up the last level.
type MQTTWriter struct {
	client mqtt.Client
	rig    string
	logger *slog.Logger
}

// NewMQTTWriter connects the client and returns a writer for rig
func NewMQTTWriter(ctx context.Context, client mqtt.Client, rig string, logger *slog.Logger) (*MQTTWriter, error) {
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &MQTTWriter{
		client: client,
		rig:    rig,
		logger: logger,
	}, nil
}

// SetLevel publishes level on the pin's topic
func (w *MQTTWriter) SetLevel(ctx context.Context, pin int, level uint8) error {
	if !w.client.IsConnected() {
		return fmt.Errorf("mqtt broker not connected, dropping level for gpio %d", pin)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	topic := mqtt.PWMTopic(w.rig, pin)
	if err := w.client.Publish(ctx, topic, 1, true, []byte(strconv.Itoa(int(level)))); err != nil {
		return fmt.Errorf("failed to publish level for gpio %d: %w", pin, err)
	}
	return nil
}

// Name identifies the backend
func (w *MQTTWriter) Name() string {
	return "mqtt"
}

// Close disconnects from the broker
func (w *MQTTWriter) Close() error {
	w.client.Disconnect()
	return nil
}
