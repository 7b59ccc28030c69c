package memsync

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/task-sentinel/pkg/vectorclock"
)

// wireEntry is Entry's on-the-wire shape, stored as the backend's opaque
// value bytes. Value is []byte rather than json.RawMessage so truly opaque
// (non-JSON) payloads round-trip via encoding/json's base64 transcoding of
// byte slices; set-, map-, and number-kind values still parse as JSON
// because the writer chose to encode them that way.
type wireEntry struct {
	Value     []byte            `json:"value"`
	Clock     vectorclock.Clock `json:"clock"`
	Timestamp time.Time         `json:"timestamp"`
	Owner     string            `json:"owner"`
	Kind      Kind              `json:"kind"`
}

func encodeEntry(e Entry) ([]byte, error) {
	w := wireEntry{
		Value:     e.Value,
		Clock:     e.Clock,
		Timestamp: e.Timestamp,
		Owner:     e.Owner,
		Kind:      e.Kind,
	}
	return json.Marshal(&w)
}

func decodeEntry(key string, data []byte) (Entry, error) {
	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return Entry{}, fmt.Errorf("memsync decode %s: %w", key, err)
	}
	return Entry{
		Key:       key,
		Value:     w.Value,
		Clock:     w.Clock,
		Timestamp: w.Timestamp,
		Owner:     w.Owner,
		Kind:      w.Kind,
	}, nil
}
