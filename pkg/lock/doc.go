/*
Package lock implements the Lock Manager: per-task distributed locking
built on a ticketstore.Adapter for the authoritative assignment and a
memsync.Synchronizer for the shared-memory lock record.

A lock's lifecycle is a small state machine observed by the caller:

	Unlocked --acquire--> Acquiring --assignOK--> Locked --release--> Unlocked
	                         |                       |
	                         |                       +--heartbeatExpired--> Stale --forceRelease--> Unlocked
	                         |
	                         +--assignFail--> Conflict --backoff+retry--> Acquiring
	                                            |
	                                            +--maxRetries--> Failed

Acquire supports three conflict strategies: retry (back off and loop),
fail-fast (return immediately on conflict), and steal-stale (reclaim an
assignment whose owner has stopped heartbeating past lockTimeout).

The manager never talks to the Heartbeat Monitor directly — that would
create an import cycle, since the monitor sweeps lock records the
manager writes. Instead it accepts a Registrar at construction time; the
caller wires a concrete heartbeat.Monitor into that interface.
*/
package lock
