// Package domain models the order aggregate and its lifecycle.
package domain

import (
	"errors"
	"time"
)

var (
	ErrNoItems         = errors.New("order requires at least one item")
	ErrInvalidQuantity = errors.New("item quantity must be positive")
)

// Order is the aggregate root. Items are immutable after checkout in the
// core flow; Total always equals the sum of line extensions.
type Order struct {
	ID                int64
	CustomerID        *int64
	AddressID         *int64
	Status            Status
	Note              string
	Total             int64
	ShipperID         *int64
	AssignedAt        *time.Time
	PaymentEmail      string
	PaymentVerifiedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Items             []Item
}

// Item is one order line. UnitPrice is captured at checkout and is
// decoupled from the live catalog price.
type Item struct {
	ID        int64
	OrderID   int64
	ProductID int64
	OptionID  *int64
	Quantity  int64
	UnitPrice int64
}

// Subtotal is the line extension.
func (i Item) Subtotal() int64 { return i.Quantity * i.UnitPrice }

// NewOrder assembles a pending order from resolved lines and computes the
// total. It rejects empty carts and non-positive quantities.
func NewOrder(customerID, addressID *int64, note string, items []Item) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	var total int64
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		total += item.Subtotal()
	}
	return &Order{
		CustomerID: customerID,
		AddressID:  addressID,
		Status:     StatusPending,
		Note:       note,
		Total:      total,
		Items:      items,
	}, nil
}

// ComputeTotal recalculates the total from the current lines.
func (o *Order) ComputeTotal() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.Subtotal()
	}
	return total
}

// HistoryEntry is an immutable audit record of one status transition.
// ChangedBy is nil for system-driven transitions.
type HistoryEntry struct {
	ID         int64
	OrderID    int64
	FromStatus Status
	ToStatus   Status
	ChangedBy  *int64
	Note       string
	CreatedAt  time.Time
}
