// Package snapshot delivers per-window diagnostic records to their sinks:
// the live status line and an optional store that keeps the latest record
// of each session.
package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/matst80/tcpthrottle/internal/obs"
	"github.com/matst80/tcpthrottle/internal/proto"
)

// Store keeps the most recent snapshot per session. Only the current window
// is retained; older records are overwritten or expire.
type Store interface {
	Report(ctx context.Context, s proto.Snapshot) error
	Latest(ctx context.Context, sessionID string) (proto.Snapshot, bool, error)
	Close() error
}

// NewStore creates either an in-memory or Redis-backed store based on configuration.
func NewStore(redisAddr, redisPassword string, redisDB int, window time.Duration) (Store, error) {
	if redisAddr == "" {
		obs.Info("snapshot.backend", obs.Fields{"type": "in-memory"})
		return NewMemoryStore(), nil
	}
	obs.Info("snapshot.backend", obs.Fields{"type": "redis", "addr": redisAddr})
	return NewRedisStore(redisAddr, redisPassword, redisDB, 2*window)
}

type memoryStore struct {
	mu     sync.Mutex
	latest map[string]proto.Snapshot
}

// NewMemoryStore returns a process-local store.
func NewMemoryStore() Store {
	return &memoryStore{latest: make(map[string]proto.Snapshot)}
}

func (m *memoryStore) Report(_ context.Context, s proto.Snapshot) error {
	m.mu.Lock()
	m.latest[s.SessionID] = s
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Latest(_ context.Context, sessionID string) (proto.Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.latest[sessionID]
	return s, ok, nil
}

func (m *memoryStore) Close() error { return nil }
