package memsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/task-sentinel/pkg/cache"
	"github.com/cuemby/task-sentinel/pkg/log"
	"github.com/cuemby/task-sentinel/pkg/memstore"
	"github.com/cuemby/task-sentinel/pkg/metrics"
	"github.com/cuemby/task-sentinel/pkg/vectorclock"
)

// Config controls the Memory Synchronizer's batching, cache, and TTL
// behavior.
type Config struct {
	// WorkerID identifies this process's vector-clock component.
	WorkerID string
	// DefaultTTL is applied to writes that don't override it.
	DefaultTTL time.Duration
	// CacheSize bounds the read-through LRU cache.
	CacheSize int
	// BatchInterval is how often the pending-write buffer flushes.
	BatchInterval time.Duration
}

// DefaultConfig returns a Config with the documented defaults. WorkerID
// must still be set by the caller.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:    3600 * time.Second,
		CacheSize:     1000,
		BatchInterval: 100 * time.Millisecond,
	}
}

// Synchronizer is the Memory Synchronizer: a batched, cache-fronted
// read/write layer over a memstore.Backend. It is a process-wide service
// with an explicit Start/Stop lifecycle, not an ambient global.
type Synchronizer struct {
	cfg       Config
	backend   memstore.Backend
	cache     *cache.Cache
	resolvers *resolverRegistry

	clockMu sync.Mutex
	clock   vectorclock.Clock

	pendingMu sync.Mutex
	pending   map[string]Entry

	subs *subscriptions

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Synchronizer. Call Start before using it.
func New(cfg Config, backend memstore.Backend) (*Synchronizer, error) {
	c, err := cache.New(cache.Config{MaxEntries: cfg.CacheSize})
	if err != nil {
		return nil, fmt.Errorf("memsync: building cache: %w", err)
	}

	return &Synchronizer{
		cfg:       cfg,
		backend:   backend,
		cache:     c,
		resolvers: newResolverRegistry(),
		clock:     vectorclock.New(),
		pending:   make(map[string]Entry),
		subs:      newSubscriptions(),
		stopCh:    make(chan struct{}),
	}, nil
}

// RegisterResolver installs a custom conflict resolver for kind, overriding
// any built-in resolver registered for the same kind.
func (s *Synchronizer) RegisterResolver(kind Kind, resolver Resolver) {
	s.resolvers.register(kind, resolver)
}

// Start begins the background flush loop. Safe to call once per instance.
func (s *Synchronizer) Start() {
	ticker := time.NewTicker(s.cfg.BatchInterval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Flush(context.Background())
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop halts the flush loop after a final flush, draining any remaining
// pending writes so Stop never silently drops data.
func (s *Synchronizer) Stop() {
	s.Flush(context.Background())
	close(s.stopCh)
	s.wg.Wait()
}

// Read returns the latest value for key. The cache is consulted first; on
// miss it falls through to the backend, repopulating the cache.
func (s *Synchronizer) Read(ctx context.Context, key string) ([]byte, vectorclock.Clock, error) {
	if value, clock, ok := s.cache.Get(key); ok {
		return value, clock, nil
	}

	data, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	entry, err := decodeEntry(key, data)
	if err != nil {
		return nil, nil, err
	}

	s.cache.Put(key, entry.Value, entry.Clock)
	return entry.Value, entry.Clock, nil
}

// Write increments the local clock, builds a memory entry, invalidates the
// cache line, and enqueues the entry for the next batch flush. If an
// unflushed write for the same key is already pending and the two clocks
// are concurrent, they are resolved immediately so the pending buffer never
// holds more than one candidate per key.
func (s *Synchronizer) Write(ctx context.Context, key string, value []byte, opts WriteOptions) (Entry, error) {
	s.clockMu.Lock()
	s.clock = s.clock.Increment(s.cfg.WorkerID)
	clock := s.clock.Clone()
	s.clockMu.Unlock()

	ttl := opts.TTL
	if ttl == 0 {
		ttl = s.cfg.DefaultTTL
	}

	entry := Entry{
		Key:       key,
		Value:     value,
		Clock:     clock,
		Timestamp: time.Now(),
		Owner:     s.cfg.WorkerID,
		Kind:      opts.Kind,
		TTL:       ttl,
	}

	s.cache.Invalidate(key)

	s.pendingMu.Lock()
	if existing, ok := s.pending[key]; ok && vectorclock.Compare(existing.Clock, entry.Clock) == vectorclock.Concurrent {
		resolution, err := s.resolvers.resolve([]Entry{existing, entry})
		if err != nil {
			s.pendingMu.Unlock()
			return Entry{}, fmt.Errorf("memsync write %s: resolving pending conflict: %w", key, err)
		}
		entry = resolution.Resolved
	}
	s.pending[key] = entry
	s.pendingMu.Unlock()

	return entry, nil
}

// Delete bypasses the batch buffer entirely: it deletes from the backend
// and removes the cache line synchronously.
func (s *Synchronizer) Delete(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil {
		return err
	}
	s.cache.Remove(key)

	s.pendingMu.Lock()
	delete(s.pending, key)
	s.pendingMu.Unlock()

	return nil
}

// Search forwards to the backend.
func (s *Synchronizer) Search(ctx context.Context, prefix string) ([]string, error) {
	return s.backend.Search(ctx, prefix)
}

// Flush drains the pending-write buffer to the backend and notifies any
// subscriber whose prefix pattern matches a flushed key. Safe to call
// concurrently with Write and with the background flush loop.
func (s *Synchronizer) Flush(ctx context.Context) {
	s.pendingMu.Lock()
	if len(s.pending) == 0 {
		s.pendingMu.Unlock()
		return
	}
	batch := s.pending
	s.pending = make(map[string]Entry, len(batch))
	s.pendingMu.Unlock()

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.MemSyncFlushDuration)

	flushed := make([]Entry, 0, len(batch))
	for key, entry := range batch {
		data, err := encodeEntry(entry)
		if err != nil {
			log.WithComponent("memsync").Error().Err(err).Str("key", key).Msg("failed to encode entry for flush")
			continue
		}
		if err := s.backend.Put(ctx, key, data, entry.TTL); err != nil {
			log.WithComponent("memsync").Error().Err(err).Str("key", key).Msg("failed to flush entry to backend")
			continue
		}
		s.cache.Put(key, entry.Value, entry.Clock)
		flushed = append(flushed, entry)
	}

	s.subs.notify(flushed)
}
