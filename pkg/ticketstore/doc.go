// Package ticketstore implements the Ticket Store Adapter: the thin
// contract the Lock Manager treats as its consensus primitive. Whatever
// backs it, the adapter must refuse to assign an already-assigned ticket and
// report that refusal as a plain false rather than an error.
package ticketstore
