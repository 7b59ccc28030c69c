package memsync

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cuemby/task-sentinel/pkg/metrics"
	"github.com/cuemby/task-sentinel/pkg/vectorclock"
)

// Resolver collapses a set of pairwise-concurrent entries into one,
// reporting which it discarded. Candidates are guaranteed non-empty and
// pairwise concurrent by the time a Resolver is invoked.
type Resolver func(candidates []Entry) (resolved Entry, discarded []Entry, err error)

// Resolution describes the strategy that produced a resolved value, for
// observability. The synchronizer returns it to its caller only; it does
// not publish a conflict-resolved event.
type Resolution struct {
	Resolved  Entry
	Discarded []Entry
	Strategy  string
}

// resolverRegistry holds the built-in resolvers plus any the caller
// registers for a custom Kind.
type resolverRegistry struct {
	byKind map[Kind]Resolver
}

func newResolverRegistry() *resolverRegistry {
	return &resolverRegistry{
		byKind: map[Kind]Resolver{
			KindLastWriterWins: resolveLastWriterWins,
			KindSet:            resolveUnion,
			KindMap:            resolveShallowMerge,
			KindNumber:         resolveMax,
		},
	}
}

func (r *resolverRegistry) register(kind Kind, resolver Resolver) {
	r.byKind[kind] = resolver
}

func (r *resolverRegistry) resolverFor(kind Kind) Resolver {
	if kind == "" {
		kind = KindLastWriterWins
	}
	if resolver, ok := r.byKind[kind]; ok {
		return resolver
	}
	return resolveLastWriterWins
}

// resolve implements the two-step conflict-resolution procedure: look for
// an entry that dominates every other candidate first, and only fall back
// to the configured resolver once every remaining candidate is pairwise
// concurrent.
func (r *resolverRegistry) resolve(candidates []Entry) (Resolution, error) {
	if len(candidates) == 0 {
		return Resolution{}, fmt.Errorf("memsync: resolve called with no candidates")
	}
	if len(candidates) == 1 {
		return Resolution{Resolved: candidates[0], Strategy: "dominated"}, nil
	}

	for i, candidate := range candidates {
		dominatesAll := true
		for j, other := range candidates {
			if i == j {
				continue
			}
			if !vectorclock.Dominates(candidate.Clock, other.Clock) {
				dominatesAll = false
				break
			}
		}
		if dominatesAll {
			discarded := make([]Entry, 0, len(candidates)-1)
			for j, other := range candidates {
				if j != i {
					discarded = append(discarded, other)
				}
			}
			return Resolution{Resolved: candidate, Discarded: discarded, Strategy: "dominated"}, nil
		}
	}

	metrics.MemSyncConflictsTotal.Inc()

	resolver := r.resolverFor(candidates[0].Kind)
	resolved, discarded, err := resolver(candidates)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Resolved: resolved, Discarded: discarded, Strategy: string(candidates[0].Kind)}, nil
}

// resolveLastWriterWins picks the entry with the latest wall-clock
// timestamp, breaking ties by owner identifier for determinism.
func resolveLastWriterWins(candidates []Entry) (Entry, []Entry, error) {
	sorted := sortedCopy(candidates)
	winner := sorted[0]
	for _, c := range sorted[1:] {
		if c.Timestamp.After(winner.Timestamp) ||
			(c.Timestamp.Equal(winner.Timestamp) && c.Owner > winner.Owner) {
			winner = c
		}
	}
	discarded := make([]Entry, 0, len(candidates)-1)
	for _, c := range candidates {
		if c.Owner != winner.Owner || !c.Timestamp.Equal(winner.Timestamp) {
			discarded = append(discarded, c)
		}
	}
	return winner, discarded, nil
}

// resolveUnion merges every candidate's JSON-encoded string set.
func resolveUnion(candidates []Entry) (Entry, []Entry, error) {
	seen := make(map[string]struct{})
	var order []string

	for _, c := range candidates {
		var items []string
		if err := json.Unmarshal(c.Value, &items); err != nil {
			return Entry{}, nil, fmt.Errorf("memsync union resolver: %w", err)
		}
		for _, item := range items {
			if _, ok := seen[item]; !ok {
				seen[item] = struct{}{}
				order = append(order, item)
			}
		}
	}

	merged, err := json.Marshal(order)
	if err != nil {
		return Entry{}, nil, fmt.Errorf("memsync union resolver encode: %w", err)
	}

	resolved := mergedEntry(candidates, merged)
	return resolved, candidates, nil
}

// resolveShallowMerge merges every candidate's JSON-encoded map, processing
// candidates oldest-timestamp-first so later writes win per conflicting
// field.
func resolveShallowMerge(candidates []Entry) (Entry, []Entry, error) {
	sorted := sortedCopy(candidates)

	merged := make(map[string]json.RawMessage)
	for _, c := range sorted {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(c.Value, &fields); err != nil {
			return Entry{}, nil, fmt.Errorf("memsync shallow-merge resolver: %w", err)
		}
		for k, v := range fields {
			merged[k] = v
		}
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return Entry{}, nil, fmt.Errorf("memsync shallow-merge resolver encode: %w", err)
	}

	resolved := mergedEntry(candidates, data)
	latest := sorted[len(sorted)-1]
	discarded := make([]Entry, 0, len(candidates)-1)
	for _, c := range candidates {
		if c.Owner != latest.Owner || !c.Timestamp.Equal(latest.Timestamp) {
			discarded = append(discarded, c)
		}
	}
	return resolved, discarded, nil
}

// resolveMax picks the numerically largest JSON-encoded float64 value.
func resolveMax(candidates []Entry) (Entry, []Entry, error) {
	var maxVal float64
	var maxIdx int
	for i, c := range candidates {
		var v float64
		if err := json.Unmarshal(c.Value, &v); err != nil {
			return Entry{}, nil, fmt.Errorf("memsync max resolver: %w", err)
		}
		if i == 0 || v > maxVal {
			maxVal = v
			maxIdx = i
		}
	}
	discarded := make([]Entry, 0, len(candidates)-1)
	for i, c := range candidates {
		if i != maxIdx {
			discarded = append(discarded, c)
		}
	}
	return candidates[maxIdx], discarded, nil
}

// mergedEntry builds the Entry a merge resolver returns: the union of the
// candidates' clocks (so the merged entry causally dominates every input)
// and the most recent timestamp/owner among them.
func mergedEntry(candidates []Entry, value []byte) Entry {
	merged := candidates[0]
	merged.Value = value

	clock := merged.Clock.Clone()
	for _, c := range candidates[1:] {
		for worker, counter := range c.Clock {
			if counter > clock[worker] {
				clock[worker] = counter
			}
		}
		if c.Timestamp.After(merged.Timestamp) {
			merged.Timestamp = c.Timestamp
			merged.Owner = c.Owner
		}
	}
	merged.Clock = clock
	return merged
}

func sortedCopy(candidates []Entry) []Entry {
	sorted := make([]Entry, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Owner < sorted[j].Owner
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}
