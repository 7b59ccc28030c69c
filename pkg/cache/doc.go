// Package cache fronts the Memory Synchronizer with a bounded LRU layer
// supporting soft invalidation: an entry can be marked stale without being
// evicted, and every hit checks that mark, so a stale entry reads as a miss
// rather than returning an outdated value.
package cache
