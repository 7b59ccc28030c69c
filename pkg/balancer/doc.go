// Package balancer is the Load Balancer: it chooses which worker should
// receive a task and offers advisory rebalancing recommendations.
//
// Selection runs a fixed pipeline (capability filter, capacity/overload
// filter, anti-affinity removal, affinity soft-sort) and then delegates to
// one of five named strategies: round-robin, least-loaded,
// capability-based, performance-based, and adaptive. Adaptive blends the
// other four behind online-learned weights, nudged by UpdateContext after
// every task outcome.
//
// The balancer holds no worker state of its own — every call is given the
// candidate list by its caller (typically sourced from
// pkg/registry.Registry.GetForLoadBalancing) — so it is safe to share a
// single Balancer across every task type a process schedules.
package balancer
