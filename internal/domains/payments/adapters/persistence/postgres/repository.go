// Package postgres persists payment attempts and the per-order
// verification state. The OTP columns live on the orders table but are
// owned by this adapter; the orders adapter never writes them.
package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	ordersports "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/orders/ports"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/payments/domain"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/payments/ports"
	platformpg "github.com/maiphun1412/thietbi-dientu-backend/internal/platform/postgres"
)

var (
	_ ports.PaymentRepository     = (*Repository)(nil)
	_ ports.OtpRepository         = (*Repository)(nil)
	_ ordersports.PaymentRecorder = (*Repository)(nil)
	_ ordersports.PaymentViewer   = (*Repository)(nil)
)

type paymentRecord struct {
	ID        int64     `gorm:"primaryKey;column:id"`
	OrderID   int64     `gorm:"column:order_id"`
	Method    string    `gorm:"column:method"`
	Status    string    `gorm:"column:status"`
	Amount    int64     `gorm:"column:amount"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (paymentRecord) TableName() string { return "payments" }

type otpRecord struct {
	ID                int64      `gorm:"primaryKey;column:id"`
	PaymentEmail      string     `gorm:"column:payment_email"`
	OtpHash           string     `gorm:"column:otp_hash"`
	OtpExpiresAt      *time.Time `gorm:"column:otp_expires_at"`
	OtpAttempts       int        `gorm:"column:otp_attempts"`
	OtpLastSentAt     *time.Time `gorm:"column:otp_last_sent_at"`
	OtpResendCount    int        `gorm:"column:otp_resend_count"`
	PaymentVerifiedAt *time.Time `gorm:"column:payment_verified_at"`
}

func (otpRecord) TableName() string { return "orders" }

// Repository implements the payment and OTP ports, plus the narrow
// payment slices the orders context consumes.
type Repository struct {
	tx *platformpg.TxManager
}

func NewRepository(tx *platformpg.TxManager) *Repository {
	return &Repository{tx: tx}
}

// --- payment attempts ------------------------------------------------------

func (r *Repository) Create(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	record := paymentRecord{
		OrderID: payment.OrderID,
		Method:  string(payment.Method),
		Status:  string(payment.Status),
		Amount:  payment.Amount,
	}
	if err := r.tx.DB(ctx).WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}
	return record.toDomain(), nil
}

func (r *Repository) LatestByOrder(ctx context.Context, orderID int64) (*domain.Payment, error) {
	var record paymentRecord
	err := r.tx.DB(ctx).WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC, id DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

func (r *Repository) List(ctx context.Context) ([]*domain.Payment, error) {
	var records []paymentRecord
	err := r.tx.DB(ctx).WithContext(ctx).
		Order("created_at DESC, id DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	payments := make([]*domain.Payment, 0, len(records))
	for _, record := range records {
		payments = append(payments, record.toDomain())
	}
	return payments, nil
}

// MarkPaid settles the latest pending attempt for the order.
func (r *Repository) MarkPaid(ctx context.Context, orderID int64, paidAt time.Time) error {
	var record paymentRecord
	err := r.tx.DB(ctx).WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, string(domain.PaymentPending)).
		Order("created_at DESC, id DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ErrNotFound
		}
		return err
	}
	return r.tx.DB(ctx).WithContext(ctx).
		Model(&paymentRecord{}).
		Where("id = ?", record.ID).
		Updates(map[string]any{
			"status":     string(domain.PaymentPaid),
			"updated_at": paidAt,
		}).Error
}

// CancelPendingByOrder voids every non-PAID attempt for the order.
func (r *Repository) CancelPendingByOrder(ctx context.Context, orderID int64) error {
	return r.tx.DB(ctx).WithContext(ctx).
		Model(&paymentRecord{}).
		Where("order_id = ? AND status <> ?", orderID, string(domain.PaymentPaid)).
		Updates(map[string]any{
			"status":     string(domain.PaymentCancelled),
			"updated_at": time.Now(),
		}).Error
}

// --- verification state ----------------------------------------------------

func (r *Repository) GetState(ctx context.Context, orderID int64) (*domain.OtpState, error) {
	var record otpRecord
	err := r.tx.DB(ctx).WithContext(ctx).First(&record, "id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return &domain.OtpState{
		Hash:         record.OtpHash,
		ExpiresAt:    record.OtpExpiresAt,
		Attempts:     record.OtpAttempts,
		LastSentAt:   record.OtpLastSentAt,
		ResendCount:  record.OtpResendCount,
		VerifiedAt:   record.PaymentVerifiedAt,
		PaymentEmail: record.PaymentEmail,
	}, nil
}

func (r *Repository) SaveIssued(ctx context.Context, orderID int64, hash string, expiresAt, sentAt time.Time, email string) error {
	result := r.tx.DB(ctx).WithContext(ctx).
		Model(&otpRecord{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"otp_hash":         hash,
			"otp_expires_at":   expiresAt,
			"otp_attempts":     0,
			"otp_last_sent_at": sentAt,
			"otp_resend_count": gorm.Expr("otp_resend_count + 1"),
			"payment_email":    email,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *Repository) IncrementAttempts(ctx context.Context, orderID int64) (int, error) {
	result := r.tx.DB(ctx).WithContext(ctx).
		Model(&otpRecord{}).
		Where("id = ?", orderID).
		Update("otp_attempts", gorm.Expr("otp_attempts + 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ports.ErrNotFound
	}
	var record otpRecord
	if err := r.tx.DB(ctx).WithContext(ctx).First(&record, "id = ?", orderID).Error; err != nil {
		return 0, err
	}
	return record.OtpAttempts, nil
}

func (r *Repository) MarkVerified(ctx context.Context, orderID int64, at time.Time) error {
	result := r.tx.DB(ctx).WithContext(ctx).
		Model(&otpRecord{}).
		Where("id = ?", orderID).
		Update("payment_verified_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// --- slices consumed by the orders context ---------------------------------

func (r *Repository) CreatePending(ctx context.Context, orderID int64, method string, amount int64) error {
	_, err := r.Create(ctx, &domain.Payment{
		OrderID: orderID,
		Method:  domain.NormalizeMethod(method),
		Status:  domain.PaymentPending,
		Amount:  amount,
	})
	return err
}

func (r *Repository) DeleteByOrder(ctx context.Context, orderID int64) error {
	return r.tx.DB(ctx).WithContext(ctx).
		Where("order_id = ?", orderID).
		Delete(&paymentRecord{}).Error
}

func (r *Repository) LatestSnapshot(ctx context.Context, orderID int64) (*ordersports.PaymentSnapshot, error) {
	payment, err := r.LatestByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, ordersports.ErrNotFound
		}
		return nil, err
	}
	return &ordersports.PaymentSnapshot{
		Method:    string(payment.Method),
		Status:    string(payment.Status),
		Amount:    payment.Amount,
		CreatedAt: payment.CreatedAt,
	}, nil
}

func (r paymentRecord) toDomain() *domain.Payment {
	return &domain.Payment{
		ID:        r.ID,
		OrderID:   r.OrderID,
		Method:    domain.Method(r.Method),
		Status:    domain.PaymentStatus(r.Status),
		Amount:    r.Amount,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
