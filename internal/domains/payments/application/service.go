// Package application implements the payment verifier: OTP issuance and
// verification, admin settlement, and the payment read models.
package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/payments/domain"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/payments/ports"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/platform/mailer"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/platform/notify"
)

// Caller identifies who is acting on a payment.
type Caller struct {
	UserID int64
	Email  string
	Role   string
}

// IsAdmin reports whether the caller carries the admin role.
func (c Caller) IsAdmin() bool { return c.Role == "admin" }

// Config holds the operator-tunable verification knobs.
type Config struct {
	OtpTTL         time.Duration
	ResendCooldown time.Duration
	MaxAttempts    int
	Bank           domain.BankAccount
}

func (c Config) withDefaults() Config {
	if c.OtpTTL <= 0 {
		c.OtpTTL = 10 * time.Minute
	}
	if c.ResendCooldown <= 0 {
		c.ResendCooldown = time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	return c
}

// Deps wires the service to its collaborators.
type Deps struct {
	Tx       ports.TransactionManager
	Payments ports.PaymentRepository
	Otp      ports.OtpRepository
	Orders   ports.OrderDirectory
	Mail     mailer.Sender
	Notifier notify.Notifier
}

// Service implements the payment use cases.
type Service struct {
	cfg      Config
	deps     Deps
	now      func() time.Time
	generate func() (string, error)
}

// NewService constructs the service, applying config defaults.
func NewService(cfg Config, deps Deps) *Service {
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	return &Service{
		cfg:      cfg.withDefaults(),
		deps:     deps,
		now:      time.Now,
		generate: domain.GenerateCode,
	}
}

// canAccess decides whether the caller may act on the order's payment.
// Admins always may. Orders owned by an account admit only that
// account; the bound payment email grants access solely to orders
// without an owning account.
func (s *Service) canAccess(info *ports.OrderInfo, caller Caller) bool {
	if caller.IsAdmin() {
		return true
	}
	if info.OwnerUserID != nil {
		return caller.UserID != 0 && *info.OwnerUserID == caller.UserID
	}
	return info.PaymentEmail != "" && strings.EqualFold(info.PaymentEmail, caller.Email)
}

// Issue sends a fresh one-time code to the order's account email. A
// previous code is overwritten; attempts reset.
func (s *Service) Issue(ctx context.Context, orderID int64, caller Caller) (string, error) {
	info, err := s.deps.Orders.OrderInfo(ctx, orderID)
	if err != nil {
		return "", err
	}
	if !s.canAccess(info, caller) {
		return "", ErrForbidden
	}
	destination := info.CustomerEmail
	if destination == "" {
		destination = info.PaymentEmail
	}
	if destination == "" {
		return "", fmt.Errorf("order %d has no email on file", orderID)
	}
	return destination, s.issueTo(ctx, orderID, destination, info.Total)
}

// IssueByEmail is the guest-friendly issuance entry: it binds the given
// email to the order's payment state and sends the code there. The
// caller must already have access; binding writes the email the later
// verification checks against, so an unchecked rebind would hand the
// order to whoever asked first.
func (s *Service) IssueByEmail(ctx context.Context, orderID int64, email string, caller Caller) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("email is required")
	}
	info, err := s.deps.Orders.OrderInfo(ctx, orderID)
	if err != nil {
		return err
	}
	if !s.canAccess(info, caller) {
		return ErrForbidden
	}
	return s.issueTo(ctx, orderID, email, info.Total)
}

// Resend re-issues the code to the previously bound destination,
// subject to the cooldown.
func (s *Service) Resend(ctx context.Context, orderID int64, caller Caller) error {
	info, err := s.deps.Orders.OrderInfo(ctx, orderID)
	if err != nil {
		return err
	}
	if !s.canAccess(info, caller) {
		return ErrForbidden
	}
	state, err := s.deps.Otp.GetState(ctx, orderID)
	if err != nil {
		return err
	}
	destination := state.PaymentEmail
	if destination == "" {
		destination = info.CustomerEmail
	}
	if destination == "" {
		return fmt.Errorf("order %d has no email on file", orderID)
	}
	return s.issueTo(ctx, orderID, destination, info.Total)
}

func (s *Service) issueTo(ctx context.Context, orderID int64, destination string, amount int64) error {
	state, err := s.deps.Otp.GetState(ctx, orderID)
	if err != nil {
		return err
	}
	now := s.now()
	if state.InCooldown(now, s.cfg.ResendCooldown) {
		return ErrTooSoon
	}

	code, err := s.generate()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.deps.Otp.SaveIssued(ctx, orderID, string(hash), now.Add(s.cfg.OtpTTL), now, destination); err != nil {
		return err
	}

	subject := fmt.Sprintf("Mã xác nhận thanh toán đơn hàng #%d", orderID)
	body := fmt.Sprintf(
		"Mã xác nhận của bạn là %s. Mã có hiệu lực trong %d phút.\nSố tiền: %d VND.",
		code, int(s.cfg.OtpTTL.Minutes()), amount,
	)
	// The hash write sticks even when the email bounces; resend is the
	// recovery path.
	if err := s.deps.Mail.Send(ctx, destination, subject, body); err != nil {
		return &DeliveryError{Destination: destination, Err: err}
	}
	return nil
}

// VerifyInput is one verification attempt.
type VerifyInput struct {
	OrderID int64
	Code    string
	Card    *domain.CardDetails
}

// VerifyResult reports a successful settlement.
type VerifyResult struct {
	AlreadyVerified bool
}

// Verify checks the submitted code and settles the order. It fails
// closed: lockout before comparison, expiry before comparison, and a
// mismatch increments the persisted attempt counter. Success is
// idempotent.
func (s *Service) Verify(ctx context.Context, input VerifyInput, caller Caller) (*VerifyResult, error) {
	info, err := s.deps.Orders.OrderInfo(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !s.canAccess(info, caller) {
		return nil, ErrForbidden
	}

	payment, err := s.deps.Payments.LatestByOrder(ctx, input.OrderID)
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return nil, err
	}

	// Card structure is checked before any OTP state is touched.
	if payment != nil && payment.Method == domain.MethodCard {
		card := domain.CardDetails{}
		if input.Card != nil {
			card = *input.Card
		}
		if problems := card.Validate(); len(problems) > 0 {
			return nil, &CardValidationError{Fields: problems}
		}
	}

	state, err := s.deps.Otp.GetState(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if state.Verified() {
		return &VerifyResult{AlreadyVerified: true}, nil
	}
	if state.Hash == "" {
		return nil, ErrExpired
	}
	if state.LockedOut(s.cfg.MaxAttempts) {
		return nil, ErrTooManyAttempts
	}
	now := s.now()
	if state.Expired(now) {
		return nil, ErrExpired
	}

	if bcrypt.CompareHashAndPassword([]byte(state.Hash), []byte(input.Code)) != nil {
		if _, err := s.deps.Otp.IncrementAttempts(ctx, input.OrderID); err != nil {
			return nil, err
		}
		return nil, ErrIncorrect
	}

	err = s.deps.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.deps.Otp.MarkVerified(ctx, input.OrderID, now); err != nil {
			return err
		}
		if err := s.deps.Payments.MarkPaid(ctx, input.OrderID, now); err != nil && !errors.Is(err, ports.ErrNotFound) {
			return err
		}
		return s.deps.Orders.ConfirmPayment(ctx, input.OrderID)
	})
	if err != nil {
		return nil, err
	}

	event := notify.NewEvent("payment.verified", "Thanh toán đã được xác nhận",
		fmt.Sprintf("Đơn hàng #%d đã được thanh toán", input.OrderID),
		map[string]any{"orderId": input.OrderID},
	)
	_ = s.deps.Notifier.Notify(ctx, event)

	return &VerifyResult{}, nil
}

// MarkPaid is the admin settlement path bypassing OTP.
func (s *Service) MarkPaid(ctx context.Context, orderID int64) error {
	now := s.now()
	err := s.deps.Tx.RunInTx(ctx, func(ctx context.Context) error {
		state, err := s.deps.Otp.GetState(ctx, orderID)
		if err != nil {
			return err
		}
		if !state.Verified() {
			if err := s.deps.Otp.MarkVerified(ctx, orderID, now); err != nil {
				return err
			}
		}
		if err := s.deps.Payments.MarkPaid(ctx, orderID, now); err != nil && !errors.Is(err, ports.ErrNotFound) {
			return err
		}
		return s.deps.Orders.ConfirmPayment(ctx, orderID)
	})
	if err != nil {
		return err
	}

	event := notify.NewEvent("payment.marked_paid", "Thanh toán đã được ghi nhận",
		fmt.Sprintf("Đơn hàng #%d được đánh dấu đã thanh toán", orderID),
		map[string]any{"orderId": orderID},
	)
	_ = s.deps.Notifier.Notify(ctx, event)
	return nil
}

// List returns every payment attempt, newest first.
func (s *Service) List(ctx context.Context) ([]*domain.Payment, error) {
	return s.deps.Payments.List(ctx)
}

// LatestByOrder returns the authoritative attempt for an order.
func (s *Service) LatestByOrder(ctx context.Context, orderID int64) (*domain.Payment, error) {
	return s.deps.Payments.LatestByOrder(ctx, orderID)
}

// Intent rebuilds the method-specific payment guidance for an order.
func (s *Service) Intent(ctx context.Context, orderID int64) (map[string]any, error) {
	payment, err := s.deps.Payments.LatestByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return domain.Guidance(payment.Method, orderID, payment.Amount, s.cfg.Bank), nil
}
