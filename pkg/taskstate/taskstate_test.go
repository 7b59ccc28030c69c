package taskstate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuemby/task-sentinel/pkg/memstore"
	"github.com/cuemby/task-sentinel/pkg/memsync"
)

func newTestStore(t *testing.T) (*Store, *memsync.Synchronizer) {
	t.Helper()
	backend, err := memstore.NewBoltBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewBoltBackend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })

	syncCfg := memsync.DefaultConfig()
	syncCfg.WorkerID = "test-taskstate"
	syncCfg.BatchInterval = 5 * time.Millisecond
	sync, err := memsync.New(syncCfg, backend)
	if err != nil {
		t.Fatalf("memsync.New: %v", err)
	}
	sync.Start()
	t.Cleanup(sync.Stop)

	return New(sync), sync
}

func TestSyncTaskStateThenGetTaskStateSameProcess(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	if err := s.SyncTaskState(ctx, "task-1", []byte(`{"phase":"running"}`)); err != nil {
		t.Fatalf("SyncTaskState: %v", err)
	}

	got, err := s.GetTaskState(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetTaskState: %v", err)
	}
	if string(got) != `{"phase":"running"}` {
		t.Fatalf("got = %s, want phase running", got)
	}
}

func TestGetTaskStateReturnsNotFoundBeforeAnySync(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	if _, err := s.GetTaskState(ctx, "unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSyncTaskStateVisibleAcrossStoresAfterFlush(t *testing.T) {
	ctx := context.Background()
	backend, err := memstore.NewBoltBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewBoltBackend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })

	cfg1 := memsync.DefaultConfig()
	cfg1.WorkerID = "writer"
	cfg1.BatchInterval = 5 * time.Millisecond
	sync1, err := memsync.New(cfg1, backend)
	if err != nil {
		t.Fatalf("memsync.New: %v", err)
	}
	sync1.Start()
	t.Cleanup(sync1.Stop)

	cfg2 := memsync.DefaultConfig()
	cfg2.WorkerID = "reader"
	sync2, err := memsync.New(cfg2, backend)
	if err != nil {
		t.Fatalf("memsync.New: %v", err)
	}
	sync2.Start()
	t.Cleanup(sync2.Stop)

	writer := New(sync1)
	reader := New(sync2)

	if err := writer.SyncTaskState(ctx, "task-1", []byte("progressing")); err != nil {
		t.Fatalf("SyncTaskState: %v", err)
	}
	sync1.Flush(ctx)

	got, err := reader.GetTaskState(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetTaskState (other store): %v", err)
	}
	if string(got) != "progressing" {
		t.Fatalf("got = %s, want progressing", got)
	}
}

func TestSyncTaskProgressThenGetTaskProgress(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	if err := s.SyncTaskProgress(ctx, "task-1", []byte("50%")); err != nil {
		t.Fatalf("SyncTaskProgress: %v", err)
	}
	got, err := s.GetTaskProgress(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetTaskProgress: %v", err)
	}
	if string(got) != "50%" {
		t.Fatalf("got = %s, want 50%%", got)
	}
}

func TestAcquireTaskLockThenReleaseTaskLock(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	acquired, err := s.AcquireTaskLock(ctx, "task-1", "agent-a", time.Minute)
	if err != nil {
		t.Fatalf("AcquireTaskLock: %v", err)
	}
	if !acquired {
		t.Fatal("expected first acquire to succeed")
	}

	if _, err := s.AcquireTaskLock(ctx, "task-1", "agent-b", time.Minute); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("err = %v, want ErrLockHeld", err)
	}

	if err := s.ReleaseTaskLock(ctx, "task-1", "agent-b"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}

	if err := s.ReleaseTaskLock(ctx, "task-1", "agent-a"); err != nil {
		t.Fatalf("ReleaseTaskLock: %v", err)
	}

	acquired, err = s.AcquireTaskLock(ctx, "task-1", "agent-b", time.Minute)
	if err != nil {
		t.Fatalf("AcquireTaskLock after release: %v", err)
	}
	if !acquired {
		t.Fatal("expected agent-b to acquire after agent-a released")
	}
}

func TestAcquireTaskLockReclaimsAfterExpiry(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	acquired, err := s.AcquireTaskLock(ctx, "task-1", "agent-a", 5*time.Millisecond)
	if err != nil {
		t.Fatalf("AcquireTaskLock: %v", err)
	}
	if !acquired {
		t.Fatal("expected first acquire to succeed")
	}

	time.Sleep(10 * time.Millisecond)

	acquired, err = s.AcquireTaskLock(ctx, "task-1", "agent-b", time.Minute)
	if err != nil {
		t.Fatalf("AcquireTaskLock after expiry: %v", err)
	}
	if !acquired {
		t.Fatal("expected agent-b to reclaim an expired advisory lock")
	}
}

func TestReleaseTaskLockIsNoopWhenNeverAcquired(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	if err := s.ReleaseTaskLock(ctx, "task-1", "agent-a"); err != nil {
		t.Fatalf("ReleaseTaskLock: %v", err)
	}
}
