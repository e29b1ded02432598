package ports

import (
	"context"
	"errors"
	"time"

	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/orders/domain"
)

var (
	ErrNotFound         = errors.New("order not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrAddressNotFound  = errors.New("address not found")
	ErrShipperNotFound  = errors.New("shipper not found")
)

// TransactionManager runs a unit of work atomically. Repositories join
// the transaction through the context.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists the order aggregate and its audit trail.
type OrderRepository interface {
	// Create inserts the order header and all items in one go.
	Create(ctx context.Context, order *domain.Order) (*domain.Order, error)
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	// GetByIDForUpdate row-locks the order for a check-then-write.
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Order, error)
	// Update persists the mutable header fields (status, note,
	// shipper assignment).
	Update(ctx context.Context, order *domain.Order) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, status *domain.Status) ([]*domain.Order, error)
	// ListByCustomer returns one page of a customer's orders, newest
	// first, plus the customer's total order count.
	ListByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]*domain.Order, int64, error)
	AppendHistory(ctx context.Context, entry domain.HistoryEntry) error
	History(ctx context.Context, orderID int64) ([]domain.HistoryEntry, error)
}

// CustomerRepository resolves purchasing profiles.
type CustomerRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Customer, error)
	GetByUserID(ctx context.Context, userID int64) (*domain.Customer, error)
	Create(ctx context.Context, customer *domain.Customer) (*domain.Customer, error)
}

// AddressRepository resolves shipping destinations.
type AddressRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Address, error)
	Create(ctx context.Context, address *domain.Address) (*domain.Address, error)
	// PreferredFor returns the customer's default address, falling back
	// to the most recently created one. ErrAddressNotFound when none.
	PreferredFor(ctx context.Context, customerID int64) (*domain.Address, error)
}

// ShipperRepository looks up couriers for assignment.
type ShipperRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Shipper, error)
}

// PaymentRecorder is the narrow slice of the payments context consumed
// by checkout, cancellation, and admin deletion. All calls join the
// open transaction.
type PaymentRecorder interface {
	CreatePending(ctx context.Context, orderID int64, method string, amount int64) error
	CancelPendingByOrder(ctx context.Context, orderID int64) error
	DeleteByOrder(ctx context.Context, orderID int64) error
}

// PaymentSnapshot is the read model embedded in order summaries.
type PaymentSnapshot struct {
	Method    string
	Status    string
	Amount    int64
	CreatedAt time.Time
}

// PaymentViewer exposes the authoritative (latest) attempt per order.
type PaymentViewer interface {
	LatestSnapshot(ctx context.Context, orderID int64) (*PaymentSnapshot, error)
}
