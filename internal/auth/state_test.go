package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestNewState_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		s := NewState()
		if s == "" || seen[s] {
			t.Fatalf("NewState() returned empty or duplicate value %q", s)
		}
		seen[s] = true
	}
}

// =========================================================================
// MEMORY STORE
// =========================================================================

func TestMemoryStateStore_SingleUse(t *testing.T) {
	store := NewMemoryStateStore(time.Minute)
	ctx := context.Background()

	if err := store.Save(ctx, "s1"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	ok, err := store.Consume(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("first Consume() = (%v, %v), want (true, nil)", ok, err)
	}

	ok, _ = store.Consume(ctx, "s1")
	if ok {
		t.Error("second Consume() = true, state must be single use")
	}
}

func TestMemoryStateStore_Unknown(t *testing.T) {
	store := NewMemoryStateStore(time.Minute)

	ok, err := store.Consume(context.Background(), "never-issued")
	if err != nil || ok {
		t.Errorf("Consume() = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestMemoryStateStore_Expiry(t *testing.T) {
	store := NewMemoryStateStore(10 * time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	store.Save(ctx, "old")
	store.Save(ctx, "fresh")

	// Jump past the TTL: "old" is expired on consumption.
	now = now.Add(11 * time.Minute)
	if ok, _ := store.Consume(ctx, "old"); ok {
		t.Error("Consume() accepted an expired state")
	}

	// Saving sweeps whatever else has expired.
	store.Save(ctx, "new")
	if got := store.Len(); got != 1 {
		t.Errorf("Len() after sweep = %d, want 1", got)
	}
}

// =========================================================================
// REDIS STORE
// =========================================================================

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	store, err := NewRedisStateStore(context.Background(), RedisConfig{Addr: mr.Addr(), TTL: ttl})
	if err != nil {
		t.Fatalf("NewRedisStateStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStateStore_SingleUse(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	ctx := context.Background()

	if err := store.Save(ctx, "s1"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !mr.Exists(stateKeyPrefix + "s1") {
		t.Fatal("Save() did not write the key")
	}
	if ttl := mr.TTL(stateKeyPrefix + "s1"); ttl != time.Minute {
		t.Errorf("key TTL = %v, want %v", ttl, time.Minute)
	}

	ok, err := store.Consume(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("first Consume() = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = store.Consume(ctx, "s1")
	if err != nil || ok {
		t.Errorf("second Consume() = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestRedisStateStore_Expiry(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	ctx := context.Background()

	store.Save(ctx, "s1")
	mr.FastForward(2 * time.Minute)

	if ok, _ := store.Consume(ctx, "s1"); ok {
		t.Error("Consume() accepted an expired state")
	}
}

func TestNewRedisStateStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := NewRedisStateStore(ctx, RedisConfig{Addr: addr}); err == nil {
		t.Fatal("NewRedisStateStore() should fail when redis is unreachable")
	}
}
