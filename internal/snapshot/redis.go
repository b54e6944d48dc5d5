package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/matst80/tcpthrottle/internal/proto"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "tcpthrottle:snapshot:"
	// Channel receives every snapshot as JSON for live subscribers.
	Channel = "tcpthrottle:snapshots"
)

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Store = (*redisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection. Snapshots
// expire after ttl so nothing older than the current window survives.
func NewRedisStore(addr, password string, db int, ttl time.Duration) (Store, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &redisStore{client: rdb, ttl: ttl}, nil
}

func (r *redisStore) Report(ctx context.Context, s proto.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, keyPrefix+s.SessionID, data, r.ttl)
	pipe.Publish(ctx, Channel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis report: %w", err)
	}
	return nil
}

func (r *redisStore) Latest(ctx context.Context, sessionID string) (proto.Snapshot, bool, error) {
	val, err := r.client.Get(ctx, keyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return proto.Snapshot{}, false, nil
		}
		return proto.Snapshot{}, false, fmt.Errorf("redis get: %w", err)
	}
	var s proto.Snapshot
	if err := json.Unmarshal(val, &s); err != nil {
		return proto.Snapshot{}, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return s, true, nil
}

func (r *redisStore) Close() error { return r.client.Close() }
