/*
Package types defines the data model shared by every coordination
subsystem: worker records, lock records, task requirements, and the
heartbeat payload wire shape.

These types are deliberately thin. Behavior belonging to a specific
component (conflict resolution, health classification, selection
scoring) lives in that component's package, not here — types.Worker exposes
only the small helpers (AvailableCapacity, LoadFraction, HasCapabilities)
that every consumer needs and that have one unambiguous definition.
*/
package types
