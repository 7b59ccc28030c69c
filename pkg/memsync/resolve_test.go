package memsync

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cuemby/task-sentinel/pkg/vectorclock"
)

func TestResolveDominatedEntryWins(t *testing.T) {
	r := newResolverRegistry()

	base := vectorclock.New().Increment("w1")
	dominant := base.Increment("w1")

	older := Entry{Key: "k", Value: []byte("old"), Clock: base, Timestamp: time.Now(), Owner: "w1"}
	newer := Entry{Key: "k", Value: []byte("new"), Clock: dominant, Timestamp: time.Now().Add(time.Second), Owner: "w1"}

	resolution, err := r.resolve([]Entry{older, newer})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolution.Strategy != "dominated" {
		t.Fatalf("strategy = %q, want dominated", resolution.Strategy)
	}
	if string(resolution.Resolved.Value) != "new" {
		t.Fatalf("resolved = %q, want new", resolution.Resolved.Value)
	}
	if len(resolution.Discarded) != 1 {
		t.Fatalf("discarded = %v, want 1 entry", resolution.Discarded)
	}
}

func concurrentMapEntries() (Entry, Entry) {
	a := Entry{
		Key:       "shared/k",
		Value:     mustJSON(map[string]int{"a": 1}),
		Clock:     vectorclock.Clock{"w1": 1},
		Timestamp: time.Unix(1000, 0),
		Owner:     "w1",
		Kind:      KindMap,
	}
	b := Entry{
		Key:       "shared/k",
		Value:     mustJSON(map[string]int{"b": 2}),
		Clock:     vectorclock.Clock{"w2": 1},
		Timestamp: time.Unix(1001, 0),
		Owner:     "w2",
		Kind:      KindMap,
	}
	return a, b
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func TestResolveShallowMergeConcurrentEntries(t *testing.T) {
	r := newResolverRegistry()
	a, b := concurrentMapEntries()

	resolution, err := r.resolve([]Entry{a, b})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	var merged map[string]int
	if err := json.Unmarshal(resolution.Resolved.Value, &merged); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if merged["a"] != 1 || merged["b"] != 2 {
		t.Fatalf("merged = %v, want a:1 b:2", merged)
	}
	if len(resolution.Discarded) != 1 {
		t.Fatalf("discarded = %v, want exactly one entry recorded", resolution.Discarded)
	}
}

func TestResolveIsCommutative(t *testing.T) {
	r := newResolverRegistry()
	a, b := concurrentMapEntries()

	forward, err := r.resolve([]Entry{a, b})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	backward, err := r.resolve([]Entry{b, a})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if string(forward.Resolved.Value) != string(backward.Resolved.Value) {
		t.Fatalf("resolve not commutative: %q vs %q", forward.Resolved.Value, backward.Resolved.Value)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	r := newResolverRegistry()
	a, b := concurrentMapEntries()

	first, err := r.resolve([]Entry{a, b})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Re-resolving the same inputs again must produce the same output.
	second, err := r.resolve([]Entry{a, b})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if string(first.Resolved.Value) != string(second.Resolved.Value) {
		t.Fatalf("resolve not idempotent: %q vs %q", first.Resolved.Value, second.Resolved.Value)
	}
}

func TestResolveUnionOfSets(t *testing.T) {
	r := newResolverRegistry()

	a := Entry{Value: mustJSON([]string{"x", "y"}), Clock: vectorclock.Clock{"w1": 1}, Timestamp: time.Unix(1, 0), Owner: "w1", Kind: KindSet}
	b := Entry{Value: mustJSON([]string{"y", "z"}), Clock: vectorclock.Clock{"w2": 1}, Timestamp: time.Unix(2, 0), Owner: "w2", Kind: KindSet}

	resolution, err := r.resolve([]Entry{a, b})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	var union []string
	if err := json.Unmarshal(resolution.Resolved.Value, &union); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	seen := map[string]bool{}
	for _, item := range union {
		seen[item] = true
	}
	if !seen["x"] || !seen["y"] || !seen["z"] {
		t.Fatalf("union = %v, want x, y, z", union)
	}
}

func TestResolveMaxOfNumbers(t *testing.T) {
	r := newResolverRegistry()

	a := Entry{Value: mustJSON(3.0), Clock: vectorclock.Clock{"w1": 1}, Timestamp: time.Unix(1, 0), Owner: "w1", Kind: KindNumber}
	b := Entry{Value: mustJSON(7.0), Clock: vectorclock.Clock{"w2": 1}, Timestamp: time.Unix(2, 0), Owner: "w2", Kind: KindNumber}

	resolution, err := r.resolve([]Entry{a, b})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	var max float64
	if err := json.Unmarshal(resolution.Resolved.Value, &max); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if max != 7.0 {
		t.Fatalf("max = %v, want 7", max)
	}
}

func TestResolveLastWriterWinsByTimestamp(t *testing.T) {
	r := newResolverRegistry()

	a := Entry{Value: []byte("old"), Clock: vectorclock.Clock{"w1": 1}, Timestamp: time.Unix(1, 0), Owner: "w1", Kind: KindLastWriterWins}
	b := Entry{Value: []byte("new"), Clock: vectorclock.Clock{"w2": 1}, Timestamp: time.Unix(2, 0), Owner: "w2", Kind: KindLastWriterWins}

	resolution, err := r.resolve([]Entry{a, b})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if string(resolution.Resolved.Value) != "new" {
		t.Fatalf("resolved = %q, want new (later timestamp)", resolution.Resolved.Value)
	}
}

func TestRegisterCustomResolver(t *testing.T) {
	r := newResolverRegistry()
	const kindCustom Kind = "custom"

	r.register(kindCustom, func(candidates []Entry) (Entry, []Entry, error) {
		return candidates[0], candidates[1:], nil
	})

	a := Entry{Value: []byte("first"), Clock: vectorclock.Clock{"w1": 1}, Timestamp: time.Unix(1, 0), Owner: "w1", Kind: kindCustom}
	b := Entry{Value: []byte("second"), Clock: vectorclock.Clock{"w2": 1}, Timestamp: time.Unix(2, 0), Owner: "w2", Kind: kindCustom}

	resolution, err := r.resolve([]Entry{a, b})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if string(resolution.Resolved.Value) != "first" {
		t.Fatalf("resolved = %q, want first (custom resolver always picks first)", resolution.Resolved.Value)
	}
}
