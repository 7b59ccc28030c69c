// Package registry implements the Worker Registry: pool membership,
// periodic health reclassification, and the discovery/priority-scoring API
// the Load Balancer queries for candidates.
package registry
