package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStatus is returned when a string does not name a queue status.
var ErrUnknownStatus = errors.New("unknown status")

// Status is the lifecycle state of a queue request.
type Status string

const (
	// StatusPending is the initial state of every request.
	StatusPending Status = "pending"
	// StatusPreparing means an operator has started fulfilling the request.
	StatusPreparing Status = "preparing"
	// StatusReady means the request is waiting to be handed over.
	StatusReady Status = "ready"
	// StatusCompleted is terminal and always has exactly one ledger record.
	StatusCompleted Status = "completed"
	// StatusCancelled is terminal and never has a ledger record.
	StatusCancelled Status = "cancelled"
)

// transitions lists the direct successors of each non-terminal status.
// Terminal statuses have no entry.
var transitions = map[Status][]Status{
	StatusPending:   {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusCompleted, StatusCancelled},
}

// forward is the operator progression, one edge at a time.
var forward = map[Status]Status{
	StatusPending:   StatusPreparing,
	StatusPreparing: StatusReady,
	StatusReady:     StatusCompleted,
}

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled}
}

// ParseStatus converts a string into a Status.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return status, nil
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsActive reports whether a request in this status belongs in "active" views.
func (s Status) IsActive() bool {
	return s.Valid() && !s.IsTerminal()
}

// CanTransitionTo reports whether target is a direct successor of s.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Successors returns the direct successors of s.
func (s Status) Successors() []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// Next returns the forward successor used by the operator progression.
func (s Status) Next() (Status, bool) {
	next, ok := forward[s]
	return next, ok
}

// Label returns a human readable description for display.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Awaiting preparation"
	case StatusPreparing:
		return "Preparing"
	case StatusReady:
		return "Ready for pickup"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}
