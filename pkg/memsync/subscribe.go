package memsync

import (
	"strings"
	"sync"
)

// Handle identifies a registered subscription, returned by Subscribe and
// consumed by Unsubscribe.
type Handle uint64

// Callback is invoked once per successful batch-flush for every key
// matching the subscription's prefix pattern.
type Callback func(entries []Entry)

type subscription struct {
	handle   Handle
	prefix   string
	callback Callback
}

// subscriptions tracks prefix-matched callbacks and invokes them
// sequentially on every flush, in the goroutine that called Flush: slow
// callbacks back-pressure later notifications but never block writes,
// since writes have already landed in the backend by the time a callback
// runs.
type subscriptions struct {
	mu   sync.Mutex
	next Handle
	byID map[Handle]subscription
}

func newSubscriptions() *subscriptions {
	return &subscriptions{byID: make(map[Handle]subscription)}
}

func (s *subscriptions) add(prefix string, callback Callback) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	handle := s.next
	s.byID[handle] = subscription{handle: handle, prefix: prefix, callback: callback}
	return handle
}

func (s *subscriptions) remove(handle Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, handle)
}

func (s *subscriptions) notify(flushed []Entry) {
	if len(flushed) == 0 {
		return
	}

	s.mu.Lock()
	subs := make([]subscription, 0, len(s.byID))
	for _, sub := range s.byID {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		var matched []Entry
		for _, entry := range flushed {
			if strings.HasPrefix(entry.Key, sub.prefix) {
				matched = append(matched, entry)
			}
		}
		if len(matched) > 0 {
			sub.callback(matched)
		}
	}
}

// Subscribe registers callback to run on every successful batch-flush for
// keys matching prefixPattern. Callbacks run sequentially; a slow callback
// delays later subscribers' notifications for the same flush but never
// blocks the writer.
func (s *Synchronizer) Subscribe(prefixPattern string, callback Callback) Handle {
	return s.subs.add(prefixPattern, callback)
}

// Unsubscribe removes a registration made with Subscribe.
func (s *Synchronizer) Unsubscribe(handle Handle) {
	s.subs.remove(handle)
}
