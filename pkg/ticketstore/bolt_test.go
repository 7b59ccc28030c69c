package ticketstore

import (
	"context"
	"errors"
	"testing"

	"github.com/cuemby/task-sentinel/pkg/memstore"
)

func newTestAdapter(t *testing.T) *BoltAdapter {
	t.Helper()
	backend, err := memstore.NewBoltBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewBoltBackend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })
	return NewBoltAdapter(backend)
}

func TestFetchTicketNotFound(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	_, err := a.FetchTicket(ctx, "42")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAssignTicketSucceedsOnce(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	ok, err := a.AssignTicket(ctx, "42", "w1")
	if err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if !ok {
		t.Fatal("expected first assign to succeed")
	}

	ok, err = a.AssignTicket(ctx, "42", "w2")
	if err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if ok {
		t.Fatal("expected second assign to report conflict (false), not an error")
	}

	ticket, err := a.FetchTicket(ctx, "42")
	if err != nil {
		t.Fatalf("FetchTicket: %v", err)
	}
	if !ticket.AssignedTo("w1") {
		t.Fatalf("ticket assignees = %v, want w1", ticket.Assignees)
	}
}

func TestUnassignThenReassign(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	if _, err := a.AssignTicket(ctx, "7", "w1"); err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if err := a.UnassignTicket(ctx, "7", "w1"); err != nil {
		t.Fatalf("UnassignTicket: %v", err)
	}

	ticket, err := a.FetchTicket(ctx, "7")
	if err != nil {
		t.Fatalf("FetchTicket: %v", err)
	}
	if ticket.IsAssigned() {
		t.Fatalf("expected ticket unassigned, got %v", ticket.Assignees)
	}

	ok, err := a.AssignTicket(ctx, "7", "w2")
	if err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if !ok {
		t.Fatal("expected reassign after unassign to succeed")
	}
}

func TestAnnotateIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	if err := a.Annotate(ctx, "1", "first"); err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if err := a.Annotate(ctx, "1", "second"); err != nil {
		t.Fatalf("Annotate: %v", err)
	}

	ticket, err := a.FetchTicket(ctx, "1")
	if err != nil {
		t.Fatalf("FetchTicket: %v", err)
	}
	if len(ticket.Annotations) != 2 {
		t.Fatalf("Annotations = %v, want 2 entries", ticket.Annotations)
	}
}
