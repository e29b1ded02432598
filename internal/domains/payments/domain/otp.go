package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// OtpState is the verification state bound to one order. Re-issuing a
// code overwrites the previous hash, expiry, and attempt counter.
type OtpState struct {
	Hash         string
	ExpiresAt    *time.Time
	Attempts     int
	LastSentAt   *time.Time
	ResendCount  int
	VerifiedAt   *time.Time
	PaymentEmail string
}

// Verified reports whether the order's payment was already confirmed.
func (s OtpState) Verified() bool { return s.VerifiedAt != nil }

// Expired reports whether the active code passed its expiry at now.
func (s OtpState) Expired(now time.Time) bool {
	return s.ExpiresAt == nil || now.After(*s.ExpiresAt)
}

// LockedOut reports whether the attempt counter exhausted the budget.
func (s OtpState) LockedOut(maxAttempts int) bool {
	return s.Attempts >= maxAttempts
}

// InCooldown reports whether a resend at now would violate the cooldown.
func (s OtpState) InCooldown(now time.Time, cooldown time.Duration) bool {
	return s.LastSentAt != nil && now.Sub(*s.LastSentAt) < cooldown
}

// GenerateCode produces a 6-digit numeric one-time code using the
// platform CSPRNG.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
