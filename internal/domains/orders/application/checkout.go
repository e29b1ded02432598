package application

import (
	"context"
	"errors"
	"fmt"

	catalogdomain "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/catalog/domain"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/orders/domain"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/orders/ports"
	paymentsdomain "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/payments/domain"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/platform/notify"
)

// CheckoutItemInput is one requested line: an explicit variant id wins,
// otherwise the color/size pair disambiguates.
type CheckoutItemInput struct {
	ProductID int64
	OptionID  *int64
	Color     string
	Size      string
	Quantity  int64
}

// CheckoutAddressInput is either an existing address reference or the
// inline fields for a new one. Both empty means "use the default".
type CheckoutAddressInput struct {
	AddressID *int64
	Line      string
	Ward      string
	District  string
	City      string
}

// CheckoutInput is the full checkout request.
type CheckoutInput struct {
	UserID        int64
	Email         string
	FullName      string
	Phone         string
	Address       CheckoutAddressInput
	PaymentMethod string
	Note          string
	Items         []CheckoutItemInput
}

// CheckoutResult carries the persisted order plus the presentational
// payment instructions.
type CheckoutResult struct {
	Order       *domain.Order
	Method      paymentsdomain.Method
	RequiresOtp bool
	Guidance    map[string]any
}

// Checkout runs the whole order-creation flow in one transaction:
// profile and address resolution, variant resolution, locked stock
// reservation, order + lines + pending payment creation. Any failure
// rolls everything back.
func (s *Service) Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if len(input.Items) == 0 {
		return nil, NewValidationError("order requires at least one item")
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, NewValidationError("quantity for product %d must be positive", item.ProductID)
		}
	}
	method := paymentsdomain.NormalizeMethod(input.PaymentMethod)

	var created *domain.Order
	err := s.deps.Tx.RunInTx(ctx, func(ctx context.Context) error {
		customer, err := s.ensureCustomer(ctx, input)
		if err != nil {
			return err
		}
		addressID, err := s.resolveAddress(ctx, customer.ID, input.Address)
		if err != nil {
			return err
		}

		items := make([]domain.Item, 0, len(input.Items))
		for _, requested := range input.Items {
			resolved, err := s.resolveItem(ctx, requested)
			if err != nil {
				return err
			}
			items = append(items, *resolved)
		}

		// Reserve stock under row locks. A failure here rolls back the
		// decrements already applied for earlier lines.
		for _, item := range items {
			if err := s.deps.Ledger.TryDecrement(ctx, item.ProductID, item.OptionID, item.Quantity); err != nil {
				return err
			}
		}

		order, err := domain.NewOrder(&customer.ID, &addressID, input.Note, items)
		if err != nil {
			return err
		}
		order.PaymentEmail = input.Email
		created, err = s.deps.Orders.Create(ctx, order)
		if err != nil {
			return err
		}
		return s.deps.Payments.CreatePending(ctx, created.ID, string(method), created.Total)
	})
	if err != nil {
		return nil, err
	}

	event := notify.NewEvent("order.created", "Đặt hàng thành công",
		fmt.Sprintf("Đơn hàng #%d đã được tạo", created.ID),
		map[string]any{"orderId": created.ID, "total": created.Total},
	)
	_ = s.deps.Notifier.Notify(ctx, event)

	return &CheckoutResult{
		Order:       created,
		Method:      method,
		RequiresOtp: method.RequiresOtp(),
		Guidance:    paymentsdomain.Guidance(method, created.ID, created.Total, s.deps.Bank),
	}, nil
}

// ensureCustomer reuses the caller's purchasing profile or creates a
// minimal one on first purchase.
func (s *Service) ensureCustomer(ctx context.Context, input CheckoutInput) (*domain.Customer, error) {
	customer, err := s.deps.Customers.GetByUserID(ctx, input.UserID)
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, ports.ErrCustomerNotFound) {
		return nil, err
	}
	userID := input.UserID
	return s.deps.Customers.Create(ctx, &domain.Customer{
		UserID:   &userID,
		FullName: input.FullName,
		Email:    input.Email,
		Phone:    input.Phone,
	})
}

// resolveAddress picks, creates, or falls back to a shipping address.
func (s *Service) resolveAddress(ctx context.Context, customerID int64, input CheckoutAddressInput) (int64, error) {
	if input.AddressID != nil {
		address, err := s.deps.Addresses.GetByID(ctx, *input.AddressID)
		if err != nil {
			if errors.Is(err, ports.ErrAddressNotFound) {
				return 0, NewValidationError("address %d not found", *input.AddressID)
			}
			return 0, err
		}
		if address.CustomerID != customerID {
			return 0, NewValidationError("address %d does not belong to the customer", *input.AddressID)
		}
		return address.ID, nil
	}

	inline := domain.Address{
		CustomerID: customerID,
		Line:       input.Line,
		Ward:       input.Ward,
		District:   input.District,
		City:       input.City,
	}
	if inline.Complete() {
		created, err := s.deps.Addresses.Create(ctx, &inline)
		if err != nil {
			return 0, err
		}
		return created.ID, nil
	}

	preferred, err := s.deps.Addresses.PreferredFor(ctx, customerID)
	if err != nil {
		if errors.Is(err, ports.ErrAddressNotFound) {
			return 0, NewValidationError("no shipping address on file and none provided")
		}
		return 0, err
	}
	return preferred.ID, nil
}

// resolveItem turns a requested item into a priced order line, deciding
// which variant (if any) is being bought.
func (s *Service) resolveItem(ctx context.Context, requested CheckoutItemInput) (*domain.Item, error) {
	product, err := s.deps.Products.GetProduct(ctx, requested.ProductID)
	if err != nil {
		return nil, err
	}

	item := domain.Item{
		ProductID: product.ID,
		Quantity:  requested.Quantity,
	}

	if !product.HasVariants() {
		item.UnitPrice = product.UnitPrice(nil)
		return &item, nil
	}

	var variant *catalogdomain.Variant
	switch {
	case requested.OptionID != nil:
		variant = product.VariantByID(*requested.OptionID)
	case requested.Color != "" || requested.Size != "":
		variant = product.MatchVariant(requested.Color, requested.Size)
	case len(product.Variants) == 1:
		variant = &product.Variants[0]
	}
	if variant == nil {
		return nil, &VariantRequiredError{ProductID: product.ID, Hints: product.Hints()}
	}

	optionID := variant.ID
	item.OptionID = &optionID
	item.UnitPrice = product.UnitPrice(variant)
	return &item, nil
}
