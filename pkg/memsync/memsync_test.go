package memsync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cuemby/task-sentinel/pkg/memstore"
)

func newTestSynchronizer(t *testing.T, workerID string) *Synchronizer {
	t.Helper()
	backend, err := memstore.NewBoltBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewBoltBackend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })

	cfg := DefaultConfig()
	cfg.WorkerID = workerID
	cfg.BatchInterval = 10 * time.Millisecond

	s, err := New(cfg, backend)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	t.Cleanup(s.Stop)
	return s
}

func TestWriteThenReadAfterFlush(t *testing.T) {
	ctx := context.Background()
	s := newTestSynchronizer(t, "w1")

	if _, err := s.Write(ctx, "tasks/1/state", []byte("running"), WriteOptions{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	s.Flush(ctx)

	value, _, err := s.Read(ctx, "tasks/1/state")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(value) != "running" {
		t.Errorf("Read = %q, want running", value)
	}
}

func TestDeleteBypassesBatchBuffer(t *testing.T) {
	ctx := context.Background()
	s := newTestSynchronizer(t, "w1")

	if _, err := s.Write(ctx, "tasks/1/state", []byte("running"), WriteOptions{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	s.Flush(ctx)

	if err := s.Delete(ctx, "tasks/1/state"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, _, err := s.Read(ctx, "tasks/1/state"); !errors.Is(err, memstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSubscribeReceivesFlushedKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestSynchronizer(t, "w1")

	received := make(chan []Entry, 1)
	s.Subscribe("tasks/", func(entries []Entry) {
		received <- entries
	})

	if _, err := s.Write(ctx, "tasks/1/state", []byte("running"), WriteOptions{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	s.Flush(ctx)

	select {
	case entries := <-received:
		if len(entries) != 1 || entries[0].Key != "tasks/1/state" {
			t.Fatalf("unexpected entries: %+v", entries)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber was not notified")
	}
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	ctx := context.Background()
	s := newTestSynchronizer(t, "w1")

	calls := 0
	handle := s.Subscribe("tasks/", func(entries []Entry) { calls++ })
	s.Unsubscribe(handle)

	if _, err := s.Write(ctx, "tasks/1/state", []byte("running"), WriteOptions{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	s.Flush(ctx)

	if calls != 0 {
		t.Fatalf("expected no notifications after unsubscribe, got %d", calls)
	}
}

func TestSequentialWritesToSameKeyOverwrite(t *testing.T) {
	ctx := context.Background()
	s := newTestSynchronizer(t, "w1")

	if _, err := s.Write(ctx, "shared/k", []byte("v1"), WriteOptions{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := s.Write(ctx, "shared/k", []byte("v2"), WriteOptions{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	s.Flush(ctx)

	value, clock, err := s.Read(ctx, "shared/k")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(value) != "v2" {
		t.Fatalf("Read = %q, want v2 (later write should win, no conflict since both are from w1)", value)
	}
	if clock["w1"] != 2 {
		t.Fatalf("clock[w1] = %d, want 2 after two local writes", clock["w1"])
	}
}

func TestJSONKindRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSynchronizer(t, "w1")

	val, _ := json.Marshal(map[string]int{"a": 1})
	if _, err := s.Write(ctx, "shared/m", val, WriteOptions{Kind: KindMap}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	s.Flush(ctx)

	value, _, err := s.Read(ctx, "shared/m")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var decoded map[string]int
	if err := json.Unmarshal(value, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["a"] != 1 {
		t.Fatalf("decoded = %v, want a:1", decoded)
	}
}
