// Package memsync implements the Memory Synchronizer: a batched,
// cache-fronted read/write layer over a memstore.Backend that resolves
// concurrent writes with vector-clock causality and a pluggable conflict
// resolver, and fans out successful flushes to prefix-matched subscribers.
package memsync
