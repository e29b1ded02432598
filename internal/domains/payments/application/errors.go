package application

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden signals the caller may not act on this order's payment.
	ErrForbidden = errors.New("forbidden")
	// ErrExpired signals there is no active code or it passed its TTL.
	ErrExpired = errors.New("verification code expired")
	// ErrIncorrect signals the submitted code did not match.
	ErrIncorrect = errors.New("verification code incorrect")
	// ErrTooManyAttempts signals the attempt budget is exhausted;
	// re-issuance is the only way forward.
	ErrTooManyAttempts = errors.New("too many verification attempts")
	// ErrTooSoon signals a resend inside the cooldown window.
	ErrTooSoon = errors.New("verification code resent too soon")
)

// CardValidationError reports structurally invalid card fields, checked
// before any OTP state is touched.
type CardValidationError struct {
	Fields map[string]string
}

func (e *CardValidationError) Error() string {
	return fmt.Sprintf("card details invalid (%d fields)", len(e.Fields))
}

// DeliveryError reports a failed OTP email send. The code was stored;
// resend is the recovery path.
type DeliveryError struct {
	Destination string
	Err         error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver code to %s: %v", e.Destination, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
