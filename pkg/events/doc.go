/*
Package events provides an in-memory event broker for coordination-layer
pub/sub messaging.

The events package implements a lightweight event bus for broadcasting
lock, heartbeat, and worker-registry state changes to interested
subscribers. It supports non-blocking publish with buffered per-subscriber
channels, enabling loose coupling between coordination components and
observers (dashboards, metrics collectors, audit logs).

# Event Types

  - worker.registered / worker.deregistered — Worker Registry membership changes
  - lock.acquired / lock.released / lock.conflict / lock.stale_recovered — Lock Manager state transitions
  - conflict.resolved — Memory Synchronizer conflict resolution outcome
  - heartbeat.failed — Heartbeat Monitor send-cycle exhaustion

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			if event.Type == events.EventLockStaleRecovered {
				log.Printf("recovered stale lock: %s", event.Message)
			}
		}
	}()

	broker.Publish(&events.Event{
		Type:     events.EventLockAcquired,
		Message:  "task 42 acquired by worker-7",
		Metadata: map[string]string{"task_id": "42", "worker_id": "worker-7"},
	})

# Design

Publish never blocks on a slow subscriber: each subscriber has its own
buffered channel, and a full buffer simply drops the event for that
subscriber rather than stalling the publisher or other subscribers.
*/
package events
