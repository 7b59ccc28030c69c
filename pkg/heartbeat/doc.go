/*
Package heartbeat implements the Heartbeat Monitor: one instance per
worker process, holding the mutable set of task identifiers the worker
currently holds and running two independent periodic loops.

The send cycle fans a heartbeat payload out to three shared-memory/ticket
destinations concurrently every heartbeatInterval, retrying the whole
cycle on partial failure. The stale-lock sweep runs every
detectionInterval, scanning every `tasks/*/lock` record and reclaiming
ownership from workers that have stopped heartbeating.

Monitor implements lock.Registrar, so a lock.Manager can hand off which
tasks to include in the next heartbeat without either package importing
the other's concrete type.
*/
package heartbeat
