package domain

import "time"

// Customer is the purchasing profile attached to a user account. It is
// created lazily on first checkout.
type Customer struct {
	ID        int64
	UserID    *int64
	FullName  string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// Address is a shipping destination owned by a customer.
type Address struct {
	ID         int64
	CustomerID int64
	Line       string
	Ward       string
	District   string
	City       string
	IsDefault  bool
	CreatedAt  time.Time
}

// Complete reports whether the inline fields suffice to create a new
// address during checkout. Ward is optional in practice.
func (a Address) Complete() bool {
	return a.Line != "" && a.District != "" && a.City != ""
}

// Shipper is a courier who can be assigned to orders.
type Shipper struct {
	ID       int64
	UserID   *int64
	FullName string
	Phone    string
	Active   bool
}
