package audit

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// RedisSink pushes JSON-encoded events onto a Redis list, the handoff
// point for an external audit pipeline. The list is trimmed to MaxLen so
// a stalled consumer cannot grow Redis without bound.
type RedisSink struct {
	client *redis.Client
	key    string
	maxLen int64
}

const defaultRedisMaxLen = 100_000

func NewRedisSink(client *redis.Client, key string, maxLen int64) *RedisSink {
	if key == "" {
		key = "guard:audit"
	}
	if maxLen <= 0 {
		maxLen = defaultRedisMaxLen
	}
	return &RedisSink{client: client, key: key, maxLen: maxLen}
}

func (s *RedisSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.client == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.key, data)
	pipe.LTrim(ctx, s.key, 0, s.maxLen-1)
	_, _ = pipe.Exec(ctx)
}
