package ticketstore

import (
	"context"
	"errors"

	"github.com/cuemby/task-sentinel/pkg/types"
)

// ErrNotFound is returned by FetchTicket when no ticket exists with the
// given identifier. It is distinct from a conflict.
var ErrNotFound = errors.New("ticketstore: ticket not found")

// ErrRateLimited may be wrapped and returned by any Adapter method when the
// backing store signals rate limiting. The Lock Manager recognizes it via
// errors.Is and substitutes a longer fixed backoff for the usual doubling
// schedule.
var ErrRateLimited = errors.New("ticketstore: rate limited")

// Adapter is the Ticket Store Adapter contract: four operations over
// whatever backing issue tracker or database holds the authoritative
// assignment state.
type Adapter interface {
	// FetchTicket returns the ticket's current assignees, lifecycle state,
	// and annotations, or ErrNotFound.
	FetchTicket(ctx context.Context, id string) (types.TicketState, error)

	// AssignTicket attempts to assign id to workerID. It reports false
	// (never an error) when the ticket is already assigned to someone
	// else — this is the atomic primitive the Lock Manager treats as
	// consensus. Implementations that cannot guarantee atomicity natively
	// must re-fetch and verify before returning true.
	AssignTicket(ctx context.Context, id, workerID string) (bool, error)

	// UnassignTicket clears the assignment. It does not error on an
	// already-unassigned ticket.
	UnassignTicket(ctx context.Context, id, workerID string) error

	// Annotate appends a human-readable marker to the ticket. Annotations
	// are append-only and advisory: a failed annotation never surrenders
	// an already-successful assignment.
	Annotate(ctx context.Context, id, text string) error
}
