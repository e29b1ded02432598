package ports

import (
	"context"
	"errors"
	"time"

	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/payments/domain"
)

var ErrNotFound = errors.New("payment not found")

// TransactionManager runs a unit of work atomically.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PaymentRepository persists payment attempts.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) (*domain.Payment, error)
	LatestByOrder(ctx context.Context, orderID int64) (*domain.Payment, error)
	List(ctx context.Context) ([]*domain.Payment, error)
	// MarkPaid settles the latest pending attempt for the order.
	MarkPaid(ctx context.Context, orderID int64, paidAt time.Time) error
	// CancelPendingByOrder voids every non-PAID attempt for the order.
	CancelPendingByOrder(ctx context.Context, orderID int64) error
}

// OtpRepository owns the verification state bound to an order.
type OtpRepository interface {
	GetState(ctx context.Context, orderID int64) (*domain.OtpState, error)
	// SaveIssued overwrites hash/expiry, records the destination email,
	// zeroes the attempt counter, and bumps the resend counter.
	SaveIssued(ctx context.Context, orderID int64, hash string, expiresAt, sentAt time.Time, email string) error
	IncrementAttempts(ctx context.Context, orderID int64) (int, error)
	MarkVerified(ctx context.Context, orderID int64, at time.Time) error
}

// OrderInfo is the order snapshot the verifier needs for access checks
// and settlement.
type OrderInfo struct {
	ID            int64
	OwnerUserID   *int64
	CustomerEmail string
	PaymentEmail  string
	Status        string
	Total         int64
}

// OrderDirectory is the slice of the orders context the verifier
// consumes: lookups for access control and the settlement hook that
// advances a pending order once payment is confirmed.
type OrderDirectory interface {
	OrderInfo(ctx context.Context, orderID int64) (*OrderInfo, error)
	ConfirmPayment(ctx context.Context, orderID int64) error
}
