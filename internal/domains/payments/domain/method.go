// Package domain models payment attempts, methods, and the OTP rules
// that gate non-cash settlement.
package domain

import (
	"strings"
	"time"
)

// Method is the closed set of accepted payment methods.
type Method string

const (
	MethodCOD  Method = "COD"
	MethodMomo Method = "MOMO"
	MethodATM  Method = "ATM"
	MethodCard Method = "CARD"
)

// NormalizeMethod folds loose client vocabulary onto the closed set.
// Unknown input defaults to cash on delivery.
func NormalizeMethod(raw string) Method {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "COD", "CASH", "TIEN MAT", "TIỀN MẶT":
		return MethodCOD
	case "MOMO":
		return MethodMomo
	case "ATM", "BANK", "BANKING", "TRANSFER", "CHUYEN KHOAN", "CHUYỂN KHOẢN":
		return MethodATM
	case "CARD", "VISA", "MASTERCARD", "CREDIT":
		return MethodCard
	}
	return MethodCOD
}

// RequiresOtp reports whether settlement needs a verified one-time code.
// Only cash on delivery skips verification.
func (m Method) RequiresOtp() bool { return m != MethodCOD }

// PaymentStatus is the lifecycle of one payment attempt.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// Payment is one attempt to settle an order. The most recent attempt is
// authoritative at verification time.
type Payment struct {
	ID        int64
	OrderID   int64
	Method    Method
	Status    PaymentStatus
	Amount    int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
