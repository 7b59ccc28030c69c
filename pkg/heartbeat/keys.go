package heartbeat

import (
	"fmt"
	"strings"
	"time"
)

func heartbeatKey(workerID string) string { return "workers/" + workerID + "/heartbeat" }

func heartbeatFailuresKey(workerID string) string { return "workers/" + workerID + "/heartbeat-failures" }

func heartbeatMetricsKey(workerID string, ts time.Time) string {
	return fmt.Sprintf("metrics/heartbeats/%s/%d", workerID, ts.UnixNano())
}

func lockRecoveryKey(ts time.Time) string {
	return fmt.Sprintf("metrics/lock-recoveries/%d", ts.UnixNano())
}

const lockKeyPrefix = "tasks/"
const lockKeySuffix = "/lock"

// taskIDFromLockKey extracts {id} from "tasks/{id}/lock", or "" if key
// doesn't match that shape.
func taskIDFromLockKey(key string) string {
	if !strings.HasPrefix(key, lockKeyPrefix) || !strings.HasSuffix(key, lockKeySuffix) {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(key, lockKeyPrefix), lockKeySuffix)
}
