package memstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestBackend(t *testing.T) *BoltBackend {
	t.Helper()
	b, err := NewBoltBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewBoltBackend: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	if err := b.Put(ctx, "tasks/1/lock", []byte("v1"), 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := b.Get(ctx, "tasks/1/lock")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("Get = %q, want v1", got)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	_, err := b.Get(ctx, "workers/absent/status")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteThenReadNotFound(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	_ = b.Put(ctx, "workers/w1/status", []byte("x"), 0)
	if err := b.Delete(ctx, "workers/w1/status"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := b.Get(ctx, "workers/w1/status"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestTTLExpiry(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	if err := b.Put(ctx, "events/x/1", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Put: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := b.Get(ctx, "events/x/1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired key to read as not found, got %v", err)
	}
}

func TestSearchPrefix(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	_ = b.Put(ctx, "tasks/1/lock", []byte("a"), 0)
	_ = b.Put(ctx, "tasks/2/lock", []byte("b"), 0)
	_ = b.Put(ctx, "workers/1/status", []byte("c"), 0)

	keys, err := b.Search(ctx, "tasks/")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("Search returned %d keys, want 2: %v", len(keys), keys)
	}
}

func TestValidateKeyRejectsShellCharacters(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	for _, bad := range []string{"tasks/1;rm", "tasks/$(1)", "tasks/1|2", "tasks/1`x`", "a<b>"} {
		if err := b.Put(ctx, bad, []byte("v"), 0); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Put(%q) = %v, want ErrInvalidKey", bad, err)
		}
	}
}

func TestCompareAndSwapAtomicAssignment(t *testing.T) {
	ctx := context.Background()
	_ = ctx
	b := newTestBackend(t)

	assign := func(owner string) func(current []byte, exists bool) ([]byte, error) {
		return func(current []byte, exists bool) ([]byte, error) {
			if exists {
				return nil, errors.New("already assigned")
			}
			return []byte(owner), nil
		}
	}

	if err := b.CompareAndSwap("tickets/42/assignee", assign("w1")); err != nil {
		t.Fatalf("first CAS should succeed: %v", err)
	}
	if err := b.CompareAndSwap("tickets/42/assignee", assign("w2")); err == nil {
		t.Fatalf("second CAS should fail, ticket already assigned")
	}
}
