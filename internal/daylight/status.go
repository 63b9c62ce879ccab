package daylight

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/saaga0h/daylight-rig/pkg/redis"
)

// StatusReporter publishes the outcome of the latest tick somewhere advisory
type StatusReporter interface {
	Report(ctx context.Context, t Tick) error
	Clear(ctx context.Context) error
}

// RedisStatus keeps the latest tick in a hash that expires when the agent stops ticking.
// Only the current tick is stored.
type RedisStatus struct {
	client  redis.Client
	key     string
	session string
	ttl     time.Duration
}

// NewRedisStatus creates a reporter writing to the rig's status key
func NewRedisStatus(client redis.Client, rig, session string, ttl time.Duration) *RedisStatus {
	return &RedisStatus{
		client:  client,
		key:     redis.StatusKey(rig),
		session: session,
		ttl:     ttl,
	}
}

// Report overwrites the status hash with t
func (s *RedisStatus) Report(ctx context.Context, t Tick) error {
	levels := make([]string, len(t.Levels))
	for i, l := range t.Levels {
		levels[i] = strconv.Itoa(int(l))
	}

	errText := ""
	if t.Err != nil {
		errText = t.Err.Error()
	}

	values := map[string]interface{}{
		"session":    s.session,
		"tick":       t.Seq,
		"hour":       strconv.FormatFloat(t.Hour, 'f', 2, 64),
		"intensity":  strconv.FormatFloat(t.Intensity, 'f', 3, 64),
		"levels":     strings.Join(levels, ","),
		"error":      errText,
		"updated_at": t.At.UTC().Format(time.RFC3339),
	}
	if err := s.client.HSetAll(ctx, s.key, values); err != nil {
		return err
	}
	return s.client.Expire(ctx, s.key, s.ttl)
}

// Clear removes the status hash
func (s *RedisStatus) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key)
}
