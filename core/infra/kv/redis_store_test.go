package kv

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	t.Cleanup(srv.Close)
	store, err := NewRedisStore("redis://" + srv.Addr())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, srv
}

func TestPutGetDelete(t *testing.T) {
	store, srv := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "k1", []byte("v1"), 5*time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ttl := srv.TTL("k1"); ttl <= 0 || ttl > 5*time.Minute {
		t.Fatalf("TTL not set correctly, got %v", ttl)
	}

	got, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("unexpected value: %s", got)
	}

	if err := store.Delete(ctx, "k1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "k1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetMissingKey(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Get(context.Background(), "absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConsumeOnceSingleUse(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "token", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.ConsumeOnce(ctx, "token")
	if err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("unexpected payload: %s", got)
	}

	if _, err := store.ConsumeOnce(ctx, "token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second consume should fail, got %v", err)
	}
}

func TestConsumeOnceRace(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "race", []byte("x"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	const callers = 8
	var wg sync.WaitGroup
	wins := make(chan struct{}, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.ConsumeOnce(ctx, "race"); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	if won != 1 {
		t.Fatalf("expected exactly one winner, got %d", won)
	}
}

func TestExpiredKeyNotReturned(t *testing.T) {
	store, srv := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "ephemeral", []byte("v"), time.Second); err != nil {
		t.Fatalf("put: %v", err)
	}
	srv.FastForward(2 * time.Second)

	if _, err := store.Get(ctx, "ephemeral"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
	if _, err := store.ConsumeOnce(ctx, "ephemeral"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on consume after expiry, got %v", err)
	}
}
