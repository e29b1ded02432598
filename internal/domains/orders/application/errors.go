package application

import (
	"errors"
	"fmt"

	catalogdomain "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/catalog/domain"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/orders/domain"
)

// ErrForbidden signals the caller does not own the order and is not an
// admin.
var ErrForbidden = errors.New("forbidden")

// ValidationError reports client-fixable input problems.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// NewValidationError builds a message-only validation error.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// VariantRequiredError asks the caller to disambiguate which variant of
// a product to buy, listing the candidates.
type VariantRequiredError struct {
	ProductID int64
	Hints     []catalogdomain.VariantHint
}

func (e *VariantRequiredError) Error() string {
	return fmt.Sprintf("product %d requires a variant selection (%d candidates)", e.ProductID, len(e.Hints))
}

// InvalidTransitionError reports a rejected status move with the state
// context the client needs.
type InvalidTransitionError struct {
	OrderID   int64
	Current   domain.Status
	Requested domain.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %d cannot move from %s to %s (allowed: %v)",
		e.OrderID, e.Current, e.Requested, e.Current.AllowedTransitions())
}
