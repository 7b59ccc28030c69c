package ticketstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/task-sentinel/pkg/memstore"
	"github.com/cuemby/task-sentinel/pkg/types"
)

var errAlreadyAssigned = errors.New("ticketstore: already assigned")

// record is the on-disk shape of a ticket, keyed by "tickets/{id}" in the
// same bbolt file the reference memstore backend uses.
type record struct {
	Assignees   []string  `json:"assignees"`
	State       string    `json:"state"`
	Annotations []string  `json:"annotations"`
	LastUpdated time.Time `json:"last_updated"`
}

// BoltAdapter is the bbolt-backed reference implementation of Adapter, for
// local development and single-node deployments. It leans on
// memstore.BoltBackend.CompareAndSwap for AssignTicket's atomicity rather
// than duplicating bbolt transaction handling.
type BoltAdapter struct {
	backend *memstore.BoltBackend
}

// NewBoltAdapter wraps an already-open BoltBackend. Ticket records live
// under the "tickets/" key prefix, disjoint from memstore's own namespace.
func NewBoltAdapter(backend *memstore.BoltBackend) *BoltAdapter {
	return &BoltAdapter{backend: backend}
}

func ticketKey(id string) string {
	return "tickets/" + id
}

func (a *BoltAdapter) FetchTicket(ctx context.Context, id string) (types.TicketState, error) {
	data, err := a.backend.Get(ctx, ticketKey(id))
	if errors.Is(err, memstore.ErrNotFound) {
		return types.TicketState{}, ErrNotFound
	}
	if err != nil {
		return types.TicketState{}, fmt.Errorf("ticketstore fetch %s: %w", id, err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return types.TicketState{}, fmt.Errorf("ticketstore decode %s: %w", id, err)
	}
	return types.TicketState{
		ID:          id,
		Assignees:   rec.Assignees,
		State:       rec.State,
		Annotations: rec.Annotations,
		LastUpdated: rec.LastUpdated,
	}, nil
}

// AssignTicket is the consensus primitive: it succeeds only if the ticket
// was unassigned at the moment of the transaction, using
// memstore.BoltBackend.CompareAndSwap for atomicity rather than a
// read-then-write race.
func (a *BoltAdapter) AssignTicket(ctx context.Context, id, workerID string) (bool, error) {
	key := ticketKey(id)
	assigned := false

	err := a.backend.CompareAndSwap(key, func(current []byte, exists bool) ([]byte, error) {
		var rec record
		if exists {
			if err := json.Unmarshal(current, &rec); err != nil {
				return nil, fmt.Errorf("ticketstore cas decode %s: %w", id, err)
			}
			if len(rec.Assignees) > 0 {
				return nil, errAlreadyAssigned
			}
		}
		rec.Assignees = []string{workerID}
		rec.LastUpdated = time.Now()
		assigned = true
		return json.Marshal(&rec)
	})

	if errors.Is(err, errAlreadyAssigned) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ticketstore assign %s: %w", id, err)
	}
	return assigned, nil
}

func (a *BoltAdapter) UnassignTicket(ctx context.Context, id, workerID string) error {
	key := ticketKey(id)
	err := a.backend.CompareAndSwap(key, func(current []byte, exists bool) ([]byte, error) {
		var rec record
		if exists {
			if err := json.Unmarshal(current, &rec); err != nil {
				return nil, fmt.Errorf("ticketstore cas decode %s: %w", id, err)
			}
		}
		filtered := rec.Assignees[:0]
		for _, a := range rec.Assignees {
			if a != workerID {
				filtered = append(filtered, a)
			}
		}
		rec.Assignees = filtered
		rec.LastUpdated = time.Now()
		return json.Marshal(&rec)
	})
	if err != nil {
		return fmt.Errorf("ticketstore unassign %s: %w", id, err)
	}
	return nil
}

func (a *BoltAdapter) Annotate(ctx context.Context, id, text string) error {
	key := ticketKey(id)
	err := a.backend.CompareAndSwap(key, func(current []byte, exists bool) ([]byte, error) {
		var rec record
		if exists {
			if err := json.Unmarshal(current, &rec); err != nil {
				return nil, fmt.Errorf("ticketstore cas decode %s: %w", id, err)
			}
		}
		rec.Annotations = append(rec.Annotations, text)
		rec.LastUpdated = time.Now()
		return json.Marshal(&rec)
	})
	if err != nil {
		return fmt.Errorf("ticketstore annotate %s: %w", id, err)
	}
	return nil
}
