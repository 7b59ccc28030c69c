// Package memstore implements the Shared Memory Backend Adapter: an opaque
// key/value store supporting get, put-with-TTL, delete, and prefix search,
// with two interchangeable implementations — an embedded bbolt store for
// local/dev use and a Redis store for clustered deployments.
package memstore
