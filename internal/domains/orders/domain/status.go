package domain

import (
	"fmt"
	"strings"
)

// Status is the canonical order state. Display strings never enter
// business logic; localization happens at the API boundary.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusPending, StatusCancelled},
	StatusShipped:    {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// CanTransitionTo reports whether moving to next is legal from s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AllowedTransitions lists the states reachable from s.
func (s Status) AllowedTransitions() []Status {
	allowed := transitions[s]
	out := make([]Status, len(allowed))
	copy(out, allowed)
	return out
}

// IsTerminal reports whether s accepts no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseStatus normalizes loose status input. Admin tooling and courier
// callbacks use informal synonyms (confirmed, shipping, delivered), all
// folded onto the canonical enum here, at the boundary.
func ParseStatus(raw string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PENDING", "NEW":
		return StatusPending, nil
	case "PROCESSING", "CONFIRMED", "CONFIRM", "PICKED_UP":
		return StatusProcessing, nil
	case "SHIPPED", "SHIPPING", "IN_TRANSIT", "DELIVERY":
		return StatusShipped, nil
	case "COMPLETED", "DELIVERED", "DONE":
		return StatusCompleted, nil
	case "CANCELLED", "CANCELED", "CANCEL":
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("unknown order status %q", raw)
}
