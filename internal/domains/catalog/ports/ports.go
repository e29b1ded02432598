package ports

import (
	"context"
	"errors"
	"fmt"

	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/catalog/domain"
)

var ErrNotFound = errors.New("product not found")

// InsufficientStockError reports a failed stock reservation. OptionID is
// nil for products without variants.
type InsufficientStockError struct {
	ProductID int64
	OptionID  *int64
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	if e.OptionID != nil {
		return fmt.Sprintf("insufficient stock for product %d option %d: requested %d, available %d",
			e.ProductID, *e.OptionID, e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// ProductReader loads products with their variants and current stock.
type ProductReader interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

// InventoryLedger mutates stock counters. TryDecrement locks the stock
// row, verifies availability, and decrements in one step; it returns
// *InsufficientStockError when the check fails. All three methods join
// the caller's transaction when one is open in the context.
type InventoryLedger interface {
	TryDecrement(ctx context.Context, productID int64, optionID *int64, qty int64) error
	Increment(ctx context.Context, productID int64, optionID *int64, qty int64) error
	AddSold(ctx context.Context, productID int64, qty int64) error
}
