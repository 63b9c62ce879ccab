package pwm

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/daylight-rig/pkg/config"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

type mockMQTT struct {
	connectErr   error
	connected    bool
	disconnected bool
	stalled      bool // broker never acknowledges
	messages     []published
}

func (m *mockMQTT) Connect(ctx context.Context) error {
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

func (m *mockMQTT) Disconnect() {
	m.disconnected = true
	m.connected = false
}

func (m *mockMQTT) Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error {
	if m.stalled {
		<-ctx.Done()
		return ctx.Err()
	}
	m.messages = append(m.messages, published{topic, qos, retained, string(payload)})
	return nil
}

func (m *mockMQTT) IsConnected() bool {
	return m.connected
}

func TestMQTTWriter_PublishesRetainedLevelPerPin(t *testing.T) {
	client := &mockMQTT{}
	w, err := NewMQTTWriter(context.Background(), client, "reef", discardLogger())
	require.NoError(t, err)

	require.NoError(t, w.SetLevel(context.Background(), 18, 77))
	require.NoError(t, w.SetLevel(context.Background(), 27, 0))

	assert.Equal(t, []published{
		{"daylight/reef/pwm/18", 1, true, "77"},
		{"daylight/reef/pwm/27", 1, true, "0"},
	}, client.messages)

	require.NoError(t, w.Close())
	assert.True(t, client.disconnected)
}

func TestMQTTWriter_ConnectFailureIsUnavailable(t *testing.T) {
	client := &mockMQTT{connectErr: errors.New("connection timeout")}
	_, err := NewMQTTWriter(context.Background(), client, "reef", discardLogger())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMQTTWriter_DisconnectedWriteIsTransient(t *testing.T) {
	client := &mockMQTT{}
	w, err := NewMQTTWriter(context.Background(), client, "reef", discardLogger())
	require.NoError(t, err)

	client.connected = false
	err = w.SetLevel(context.Background(), 4, 10)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Empty(t, client.messages)
}

func TestMQTTWriter_UnacknowledgedPublishGivesUp(t *testing.T) {
	client := &mockMQTT{}
	w, err := NewMQTTWriter(context.Background(), client, "reef", discardLogger())
	require.NoError(t, err)

	client.stalled = true
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = w.SetLevel(ctx, 18, 77)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Less(t, time.Since(start), publishTimeout)
}

func TestMQTTWriter_PublishBoundedWithoutDeadline(t *testing.T) {
	client := &mockMQTT{}
	w, err := NewMQTTWriter(context.Background(), client, "reef", discardLogger())
	require.NoError(t, err)

	client.stalled = true
	done := make(chan error, 1)
	go func() {
		done <- w.SetLevel(context.Background(), 18, 77)
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(publishTimeout + 2*time.Second):
		t.Fatal("SetLevel did not return after the publish timeout")
	}
}

func TestLogWriter(t *testing.T) {
	w := NewLogWriter(discardLogger())
	assert.NoError(t, w.SetLevel(context.Background(), 4, 200))
	assert.Equal(t, "log", w.Name())
	assert.NoError(t, w.Close())
}

func TestOpen(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Driver = "log"

	w, err := Open(context.Background(), cfg, "session", discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "log", w.Name())

	cfg.Driver = "serial"
	_, err = Open(context.Background(), cfg, "session", discardLogger())
	assert.Error(t, err)
}

func TestOpen_PigpioUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	cfg := config.NewConfig()
	cfg.PigpioHost = "127.0.0.1"
	cfg.PigpioPort = port

	w, err := Open(context.Background(), cfg, "session", discardLogger())
	assert.Nil(t, w)
	assert.ErrorIs(t, err, ErrUnavailable)
}
