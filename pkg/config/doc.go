// Package config loads a sentinel.yaml file into the component Config
// structs that pkg/lock, pkg/heartbeat, pkg/registry, pkg/memsync,
// pkg/cache, and pkg/balancer already define. It holds no singleton state;
// Load returns a plain struct that cmd/sentinel wires into each component's
// constructor.
package config
