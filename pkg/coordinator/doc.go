// Package coordinator wires the Shared Memory Backend Adapter, Memory
// Synchronizer, Ticket Store Adapter, Lock Manager, Heartbeat Monitor,
// Worker Registry, and Load Balancer into a single process-wide object with
// a Start/Stop lifecycle, the way pkg/manager glues a Warren cluster
// manager's subsystems together. It holds no scheduling or consensus logic
// of its own — it only constructs and starts/stops the pieces in dependency
// order.
package coordinator
