package daylight

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/daylight-rig/internal/rig"
)

type mockRedis struct {
	hashes  map[string]map[string]interface{}
	ttls    map[string]time.Duration
	deleted []string
	setErr  error
}

func newMockRedis() *mockRedis {
	return &mockRedis{
		hashes: make(map[string]map[string]interface{}),
		ttls:   make(map[string]time.Duration),
	}
}

func (m *mockRedis) HSetAll(ctx context.Context, key string, values map[string]interface{}) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.hashes[key] = values
	return nil
}

func (m *mockRedis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.ttls[key] = ttl
	return nil
}

func (m *mockRedis) Del(ctx context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.hashes, key)
	return nil
}

func (m *mockRedis) Ping(ctx context.Context) error { return nil }
func (m *mockRedis) Close() error                   { return nil }

func TestRedisStatus_Report(t *testing.T) {
	client := newMockRedis()
	status := NewRedisStatus(client, "reef", "session-1", 15*time.Second)

	tick := Tick{
		Seq:       42,
		Hour:      12.3456,
		Intensity: 0.98765,
		Levels:    rig.Levels{26, 77, 13, 255, 0, 26},
		At:        time.Date(2024, 6, 1, 12, 20, 44, 0, time.UTC),
	}
	require.NoError(t, status.Report(context.Background(), tick))

	hash := client.hashes["daylight:status:reef"]
	require.NotNil(t, hash)
	assert.Equal(t, "session-1", hash["session"])
	assert.Equal(t, uint64(42), hash["tick"])
	assert.Equal(t, "12.35", hash["hour"])
	assert.Equal(t, "0.988", hash["intensity"])
	assert.Equal(t, "26,77,13,255,0,26", hash["levels"])
	assert.Equal(t, "", hash["error"])
	assert.Equal(t, "2024-06-01T12:20:44Z", hash["updated_at"])
	assert.Equal(t, 15*time.Second, client.ttls["daylight:status:reef"])
}

func TestRedisStatus_ReportCarriesError(t *testing.T) {
	client := newMockRedis()
	status := NewRedisStatus(client, "reef", "s", time.Second)

	require.NoError(t, status.Report(context.Background(), Tick{Err: errors.New("write failed")}))
	assert.Equal(t, "write failed", client.hashes["daylight:status:reef"]["error"])
}

func TestRedisStatus_ReportFailure(t *testing.T) {
	client := newMockRedis()
	client.setErr = errors.New("connection refused")
	status := NewRedisStatus(client, "reef", "s", time.Second)

	assert.Error(t, status.Report(context.Background(), Tick{}))
	assert.Empty(t, client.ttls)
}

func TestRedisStatus_Clear(t *testing.T) {
	client := newMockRedis()
	status := NewRedisStatus(client, "reef", "s", time.Second)

	require.NoError(t, status.Report(context.Background(), Tick{}))
	require.NoError(t, status.Clear(context.Background()))
	assert.Equal(t, []string{"daylight:status:reef"}, client.deleted)
	assert.NotContains(t, client.hashes, "daylight:status:reef")
}
