package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StateStore remembers the OAuth state values we issued, for a limited time.
//
// The values are single use: Consume reports true at most once per Save, so
// a callback URL replayed from browser history is rejected even if the
// oauth_state cookie is still around.
type StateStore interface {
	Save(ctx context.Context, state string) error
	Consume(ctx context.Context, state string) (bool, error)
}

// NewState returns a fresh, unguessable OAuth state value (a random v4 UUID).
func NewState() string {
	return uuid.NewString()
}

// =========================================================================
// IN-MEMORY STORE
// =========================================================================

// MemoryStateStore keeps states in a map. Suitable for a single instance;
// a restart forgets every pending login, which only costs the user a retry.
type MemoryStateStore struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	states map[string]time.Time // state → expiry
}

// NewMemoryStateStore creates an in-memory store whose entries expire after ttl.
func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	return &MemoryStateStore{
		ttl:    ttl,
		now:    time.Now,
		states: make(map[string]time.Time),
	}
}

// Save records state. Expired entries are swept on every Save, so abandoned
// logins cannot grow the map without bound.
func (m *MemoryStateStore) Save(_ context.Context, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for s, exp := range m.states {
		if !now.Before(exp) {
			delete(m.states, s)
		}
	}
	m.states[state] = now.Add(m.ttl)
	return nil
}

// Consume deletes state and reports whether it was present and unexpired.
func (m *MemoryStateStore) Consume(_ context.Context, state string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.states[state]
	if !ok {
		return false, nil
	}
	delete(m.states, state)
	return m.now().Before(exp), nil
}

// Len returns the number of tracked states. Used by tests.
func (m *MemoryStateStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}

// =========================================================================
// REDIS STORE
// =========================================================================

// RedisConfig holds connection settings for RedisStateStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisStateStore keeps states in Redis with a native key expiry, so several
// PromptCraft instances behind a load balancer can share pending logins.
type RedisStateStore struct {
	rdb *redis.Client
	ttl time.Duration
}

const stateKeyPrefix = "promptcraft:oauth_state:"

// NewRedisStateStore connects to Redis and verifies the connection with PING.
func NewRedisStateStore(ctx context.Context, cfg RedisConfig) (*RedisStateStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("auth: connecting to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisStateStore{rdb: rdb, ttl: cfg.TTL}, nil
}

// Save stores state with the configured TTL.
func (r *RedisStateStore) Save(ctx context.Context, state string) error {
	if err := r.rdb.Set(ctx, stateKeyPrefix+state, "1", r.ttl).Err(); err != nil {
		return fmt.Errorf("auth: storing oauth state: %w", err)
	}
	return nil
}

// Consume uses GETDEL so that two concurrent callbacks carrying the same
// state cannot both succeed.
func (r *RedisStateStore) Consume(ctx context.Context, state string) (bool, error) {
	err := r.rdb.GetDel(ctx, stateKeyPrefix+state).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("auth: consuming oauth state: %w", err)
	}
	return true, nil
}

// Close releases the Redis connection pool.
func (r *RedisStateStore) Close() error {
	return r.rdb.Close()
}

var (
	_ StateStore = (*MemoryStateStore)(nil)
	_ StateStore = (*RedisStateStore)(nil)
)
