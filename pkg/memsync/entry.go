package memsync

import (
	"time"

	"github.com/cuemby/task-sentinel/pkg/vectorclock"
)

// Kind tells the conflict resolver how to interpret Entry.Value when two
// entries are declared concurrent. It is supplied by the writer, since the
// synchronizer itself treats values as opaque bytes.
type Kind string

const (
	// KindLastWriterWins resolves concurrent entries by wall-clock
	// timestamp; the default when a writer doesn't specify a kind.
	KindLastWriterWins Kind = "lww"
	// KindSet treats Value as a JSON-encoded []string and resolves by union.
	KindSet Kind = "set"
	// KindMap treats Value as a JSON-encoded map[string]any and resolves by
	// shallow merge, later timestamps winning per conflicting field.
	KindMap Kind = "map"
	// KindNumber treats Value as a JSON-encoded float64 and resolves to the
	// maximum.
	KindNumber Kind = "number"
)

// Entry wraps a stored value with the metadata the synchronizer needs to
// order and causally compare writes to the same key.
type Entry struct {
	Key       string
	Value     []byte
	Clock     vectorclock.Clock
	Timestamp time.Time
	Owner     string
	Kind      Kind
	TTL       time.Duration
}

// WriteOptions configures a single write call.
type WriteOptions struct {
	// Kind selects the conflict resolver used if this write races another.
	// Zero value means KindLastWriterWins.
	Kind Kind
	// TTL overrides the synchronizer's DefaultTTL for this key. Zero means
	// "use the default".
	TTL time.Duration
}
