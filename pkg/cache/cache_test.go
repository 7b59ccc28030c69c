package cache

import (
	"testing"

	"github.com/cuemby/task-sentinel/pkg/vectorclock"
)

func TestPutGetRoundTrip(t *testing.T) {
	c, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	clk := vectorclock.New().Increment("w1")
	c.Put("tasks/1", []byte("v1"), clk)

	val, gotClock, ok := c.Get("tasks/1")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(val) != "v1" {
		t.Errorf("value = %q, want v1", val)
	}
	if vectorclock.Compare(gotClock, clk) != vectorclock.Equal {
		t.Errorf("clock mismatch: got %v, want %v", gotClock, clk)
	}
}

func TestGetMissReportsFalse(t *testing.T) {
	c, _ := New(DefaultConfig())
	if _, _, ok := c.Get("absent"); ok {
		t.Fatal("expected miss on unknown key")
	}
}

func TestInvalidateMasksHitWithoutEviction(t *testing.T) {
	c, _ := New(DefaultConfig())
	c.Put("tasks/1", []byte("v1"), vectorclock.New())

	c.Invalidate("tasks/1")
	if _, _, ok := c.Get("tasks/1"); ok {
		t.Fatal("expected miss after invalidation")
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (invalidated entry still retained)", c.Len())
	}
}

func TestPutAfterInvalidateClearsFlag(t *testing.T) {
	c, _ := New(DefaultConfig())
	c.Put("tasks/1", []byte("v1"), vectorclock.New())
	c.Invalidate("tasks/1")

	c.Put("tasks/1", []byte("v2"), vectorclock.New())
	val, _, ok := c.Get("tasks/1")
	if !ok {
		t.Fatal("expected hit after re-put")
	}
	if string(val) != "v2" {
		t.Errorf("value = %q, want v2", val)
	}
}

func TestEvictionIsBoundedByMaxEntries(t *testing.T) {
	c, err := New(Config{MaxEntries: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c.Put("a", []byte("1"), vectorclock.New())
	c.Put("b", []byte("2"), vectorclock.New())
	c.Put("c", []byte("3"), vectorclock.New())

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if _, _, ok := c.Get("a"); ok {
		t.Fatal("expected oldest entry evicted")
	}
}

func TestRemove(t *testing.T) {
	c, _ := New(DefaultConfig())
	c.Put("tasks/1", []byte("v1"), vectorclock.New())
	c.Remove("tasks/1")

	if _, _, ok := c.Get("tasks/1"); ok {
		t.Fatal("expected miss after remove")
	}
	if c.Len() != 0 {
		t.Fatalf("Len = %d, want 0", c.Len())
	}
}
