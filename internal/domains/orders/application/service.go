// Package application orchestrates the order use cases: checkout, the
// status machine, courier assignment, and the read models behind the
// order endpoints.
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	catalogports "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/catalog/ports"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/orders/domain"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/orders/ports"
	paymentsdomain "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/payments/domain"
	paymentsports "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/payments/ports"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/platform/notify"
)

// Actor identifies who triggered an operation. A zero UserID means the
// system itself (e.g. payment settlement).
type Actor struct {
	UserID int64
	Role   string
}

// IsAdmin reports whether the actor carries the admin role.
func (a Actor) IsAdmin() bool { return a.Role == "admin" }

// System is the actor recorded for machine-driven transitions.
var System = Actor{}

// Deps wires the service to its collaborators.
type Deps struct {
	Tx          ports.TransactionManager
	Orders      ports.OrderRepository
	Customers   ports.CustomerRepository
	Addresses   ports.AddressRepository
	Shippers    ports.ShipperRepository
	Payments    ports.PaymentRecorder
	PaymentView ports.PaymentViewer
	Products    catalogports.ProductReader
	Ledger      catalogports.InventoryLedger
	Notifier    notify.Notifier
	Bank        paymentsdomain.BankAccount
}

// Service implements the order use cases.
type Service struct {
	deps Deps
	now  func() time.Time
}

// NewService constructs the service. A nil notifier degrades to no-op.
func NewService(deps Deps) *Service {
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	return &Service{deps: deps, now: time.Now}
}

var _ paymentsports.OrderDirectory = (*Service)(nil)

func actorRef(actor Actor) *int64 {
	if actor.UserID == 0 {
		return nil
	}
	id := actor.UserID
	return &id
}

// Transition moves the order to next under a row lock, appends the
// audit entry, and applies the compensating side effects of terminal
// states: stock restoration plus payment voiding on CANCELLED, and
// units-sold crediting on first COMPLETED.
func (s *Service) Transition(ctx context.Context, orderID int64, next domain.Status, actor Actor, note string) (*domain.Order, error) {
	var updated *domain.Order
	err := s.deps.Tx.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.deps.Orders.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(next) {
			return &InvalidTransitionError{OrderID: orderID, Current: order.Status, Requested: next}
		}
		from := order.Status
		order.Status = next

		switch next {
		case domain.StatusCompleted:
			// Legality already guarantees from != COMPLETED, so sold
			// counters are credited exactly once.
			for _, item := range order.Items {
				if err := s.deps.Ledger.AddSold(ctx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
		case domain.StatusCancelled:
			for _, item := range order.Items {
				if err := s.deps.Ledger.Increment(ctx, item.ProductID, item.OptionID, item.Quantity); err != nil {
					return err
				}
			}
			if err := s.deps.Payments.CancelPendingByOrder(ctx, orderID); err != nil {
				return err
			}
		}

		if err := s.deps.Orders.Update(ctx, order); err != nil {
			return err
		}
		if err := s.deps.Orders.AppendHistory(ctx, domain.HistoryEntry{
			OrderID:    orderID,
			FromStatus: from,
			ToStatus:   next,
			ChangedBy:  actorRef(actor),
			Note:       note,
			CreatedAt:  s.now(),
		}); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifyStatus(ctx, updated)
	return updated, nil
}

// Cancel cancels the order on behalf of its owner or an admin.
func (s *Service) Cancel(ctx context.Context, orderID int64, actor Actor, note string) (*domain.Order, error) {
	if !actor.IsAdmin() {
		if err := s.assertOwner(ctx, orderID, actor.UserID); err != nil {
			return nil, err
		}
	}
	return s.Transition(ctx, orderID, domain.StatusCancelled, actor, note)
}

// AssignShipper records the courier on the order. Assignment to a
// PENDING order promotes it to PROCESSING; assignment to an order that
// already progressed only records the courier. Terminal orders refuse.
func (s *Service) AssignShipper(ctx context.Context, orderID, shipperID int64, actor Actor) (*domain.Order, error) {
	var updated *domain.Order
	var promoted bool
	err := s.deps.Tx.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.deps.Orders.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return &InvalidTransitionError{OrderID: orderID, Current: order.Status, Requested: domain.StatusProcessing}
		}
		shipper, err := s.deps.Shippers.GetByID(ctx, shipperID)
		if err != nil {
			return err
		}
		now := s.now()
		order.ShipperID = &shipper.ID
		order.AssignedAt = &now

		if order.Status == domain.StatusPending {
			from := order.Status
			order.Status = domain.StatusProcessing
			promoted = true
			if err := s.deps.Orders.Update(ctx, order); err != nil {
				return err
			}
			if err := s.deps.Orders.AppendHistory(ctx, domain.HistoryEntry{
				OrderID:    orderID,
				FromStatus: from,
				ToStatus:   order.Status,
				ChangedBy:  actorRef(actor),
				Note:       fmt.Sprintf("shipper %d assigned", shipper.ID),
				CreatedAt:  now,
			}); err != nil {
				return err
			}
		} else if err := s.deps.Orders.Update(ctx, order); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	if promoted {
		s.notifyStatus(ctx, updated)
	}
	return updated, nil
}

// UnassignShipper removes the courier. An order promoted to PROCESSING
// purely by assignment drops back to PENDING; orders that shipped or
// completed refuse.
func (s *Service) UnassignShipper(ctx context.Context, orderID int64, actor Actor) (*domain.Order, error) {
	var updated *domain.Order
	err := s.deps.Tx.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.deps.Orders.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == domain.StatusShipped || order.Status == domain.StatusCompleted {
			return &InvalidTransitionError{OrderID: orderID, Current: order.Status, Requested: domain.StatusPending}
		}
		order.ShipperID = nil
		order.AssignedAt = nil

		if order.Status == domain.StatusProcessing {
			from := order.Status
			order.Status = domain.StatusPending
			if err := s.deps.Orders.Update(ctx, order); err != nil {
				return err
			}
			if err := s.deps.Orders.AppendHistory(ctx, domain.HistoryEntry{
				OrderID:    orderID,
				FromStatus: from,
				ToStatus:   order.Status,
				ChangedBy:  actorRef(actor),
				Note:       "shipper unassigned",
				CreatedAt:  s.now(),
			}); err != nil {
				return err
			}
		} else if err := s.deps.Orders.Update(ctx, order); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateShipmentStatus maps a courier-tracking status (loose vocabulary)
// onto the order status machine.
func (s *Service) UpdateShipmentStatus(ctx context.Context, orderID int64, rawStatus string, actor Actor) (*domain.Order, error) {
	status, err := domain.ParseStatus(rawStatus)
	if err != nil {
		return nil, NewValidationError("unknown shipment status %q", rawStatus)
	}
	return s.Transition(ctx, orderID, status, actor, "shipment status update")
}

// ConfirmPayment advances a PENDING order to PROCESSING once payment is
// settled. Orders that already progressed are left untouched; cancelled
// orders refuse.
func (s *Service) ConfirmPayment(ctx context.Context, orderID int64) error {
	return s.deps.Tx.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.deps.Orders.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		switch order.Status {
		case domain.StatusPending:
			from := order.Status
			order.Status = domain.StatusProcessing
			if err := s.deps.Orders.Update(ctx, order); err != nil {
				return err
			}
			return s.deps.Orders.AppendHistory(ctx, domain.HistoryEntry{
				OrderID:    orderID,
				FromStatus: from,
				ToStatus:   order.Status,
				Note:       "payment confirmed",
				CreatedAt:  s.now(),
			})
		case domain.StatusCancelled:
			return &InvalidTransitionError{OrderID: orderID, Current: order.Status, Requested: domain.StatusProcessing}
		default:
			return nil
		}
	})
}

// OrderInfo exposes the snapshot the payment verifier needs for access
// checks and settlement.
func (s *Service) OrderInfo(ctx context.Context, orderID int64) (*paymentsports.OrderInfo, error) {
	order, err := s.deps.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	info := &paymentsports.OrderInfo{
		ID:           order.ID,
		PaymentEmail: order.PaymentEmail,
		Status:       string(order.Status),
		Total:        order.Total,
	}
	if order.CustomerID != nil {
		customer, err := s.deps.Customers.GetByID(ctx, *order.CustomerID)
		if err != nil && !errors.Is(err, ports.ErrCustomerNotFound) {
			return nil, err
		}
		if customer != nil {
			info.OwnerUserID = customer.UserID
			info.CustomerEmail = customer.Email
		}
	}
	return info, nil
}

// GetOrder fetches an order with its items.
func (s *Service) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	return s.deps.Orders.GetByID(ctx, orderID)
}

// List returns all orders, optionally filtered by status.
func (s *Service) List(ctx context.Context, status *domain.Status) ([]*domain.Order, error) {
	return s.deps.Orders.List(ctx, status)
}

// History returns the audit trail of an order.
func (s *Service) History(ctx context.Context, orderID int64) ([]domain.HistoryEntry, error) {
	return s.deps.Orders.History(ctx, orderID)
}

// OrderPage is one page of a customer's order history.
type OrderPage struct {
	Orders   []*domain.Order
	Total    int64
	Page     int
	PageSize int
}

const (
	defaultPageSize = 10
	maxPageSize     = 50
)

// MyOrders lists one page of the caller's orders. Page numbers start at
// 1 and the page size is capped; out-of-range values are clamped rather
// than rejected. Users without a purchasing profile simply have none
// yet.
func (s *Service) MyOrders(ctx context.Context, userID int64, page, pageSize int) (*OrderPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	result := &OrderPage{Orders: []*domain.Order{}, Page: page, PageSize: pageSize}

	customer, err := s.deps.Customers.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ports.ErrCustomerNotFound) {
			return result, nil
		}
		return nil, err
	}
	orders, total, err := s.deps.Orders.ListByCustomer(ctx, customer.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	result.Orders = orders
	result.Total = total
	return result, nil
}

// OrderSummary is the confirmation-screen read model: destination,
// lines, and the authoritative payment attempt.
type OrderSummary struct {
	Order   *domain.Order
	Address *domain.Address
	Payment *ports.PaymentSnapshot
}

// Summary assembles the order summary, enforcing ownership for
// non-admin callers.
func (s *Service) Summary(ctx context.Context, orderID int64, actor Actor) (*OrderSummary, error) {
	order, err := s.deps.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		if err := s.assertOwnerOf(ctx, order, actor.UserID); err != nil {
			return nil, err
		}
	}
	summary := &OrderSummary{Order: order}
	if order.AddressID != nil {
		address, err := s.deps.Addresses.GetByID(ctx, *order.AddressID)
		if err != nil && !errors.Is(err, ports.ErrAddressNotFound) {
			return nil, err
		}
		summary.Address = address
	}
	payment, err := s.deps.PaymentView.LatestSnapshot(ctx, orderID)
	if err == nil {
		summary.Payment = payment
	}
	return summary, nil
}

// Delete removes an order and its dependents, restoring reserved stock
// when the order never reached a terminal state.
func (s *Service) Delete(ctx context.Context, orderID int64) error {
	return s.deps.Tx.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.deps.Orders.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.IsTerminal() {
			for _, item := range order.Items {
				if err := s.deps.Ledger.Increment(ctx, item.ProductID, item.OptionID, item.Quantity); err != nil {
					return err
				}
			}
		}
		if err := s.deps.Payments.DeleteByOrder(ctx, orderID); err != nil {
			return err
		}
		return s.deps.Orders.Delete(ctx, orderID)
	})
}

func (s *Service) assertOwner(ctx context.Context, orderID, userID int64) error {
	order, err := s.deps.Orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	return s.assertOwnerOf(ctx, order, userID)
}

func (s *Service) assertOwnerOf(ctx context.Context, order *domain.Order, userID int64) error {
	if order.CustomerID == nil {
		return ErrForbidden
	}
	customer, err := s.deps.Customers.GetByID(ctx, *order.CustomerID)
	if err != nil {
		if errors.Is(err, ports.ErrCustomerNotFound) {
			return ErrForbidden
		}
		return err
	}
	if customer.UserID == nil || *customer.UserID != userID {
		return ErrForbidden
	}
	return nil
}

func (s *Service) notifyStatus(ctx context.Context, order *domain.Order) {
	if order == nil {
		return
	}
	var eventType, title string
	switch order.Status {
	case domain.StatusProcessing:
		eventType, title = "order.processing", "Đơn hàng đang được xử lý"
	case domain.StatusShipped:
		eventType, title = "order.shipped", "Đơn hàng đang được giao"
	case domain.StatusCompleted:
		eventType, title = "order.completed", "Đơn hàng đã hoàn thành"
	case domain.StatusCancelled:
		eventType, title = "order.cancelled", "Đơn hàng đã bị hủy"
	default:
		return
	}
	event := notify.NewEvent(eventType, title,
		fmt.Sprintf("Đơn hàng #%d: %s", order.ID, order.Status),
		map[string]any{"orderId": order.ID, "status": string(order.Status)},
	)
	// Post-commit, best effort. Fanout already swallows channel errors.
	_ = s.deps.Notifier.Notify(ctx, event)
}
