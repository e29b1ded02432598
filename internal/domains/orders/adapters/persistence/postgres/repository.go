// Package postgres persists the orders bounded context. Every query
// resolves its handle through the transaction manager so the checkout
// and status-machine flows stay atomic across repositories.
package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/orders/domain"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/orders/ports"
	platformpg "github.com/maiphun1412/thietbi-dientu-backend/internal/platform/postgres"
)

var _ ports.OrderRepository = (*OrderRepository)(nil)

// OrderRepository persists the order aggregate and its audit trail.
type OrderRepository struct {
	tx *platformpg.TxManager
}

// NewOrderRepository wires the repository. Caller manages DB lifecycle.
func NewOrderRepository(tx *platformpg.TxManager) *OrderRepository {
	return &OrderRepository{tx: tx}
}

// orderRecord maps the order header. OTP columns live on the same table
// but belong to the payments adapter; updates here never touch them.
type orderRecord struct {
	ID                int64      `gorm:"primaryKey;column:id"`
	CustomerID        *int64     `gorm:"column:customer_id"`
	AddressID         *int64     `gorm:"column:address_id"`
	Status            string     `gorm:"column:status;type:varchar(32)"`
	Note              string     `gorm:"column:note"`
	Total             int64      `gorm:"column:total"`
	ShipperID         *int64     `gorm:"column:shipper_id"`
	AssignedAt        *time.Time `gorm:"column:assigned_at"`
	PaymentEmail      string     `gorm:"column:payment_email"`
	PaymentVerifiedAt *time.Time `gorm:"column:payment_verified_at"`
	CreatedAt         time.Time  `gorm:"column:created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at"`
}

func (orderRecord) TableName() string { return "orders" }

type orderItemRecord struct {
	ID        int64  `gorm:"primaryKey;column:id"`
	OrderID   int64  `gorm:"column:order_id"`
	ProductID int64  `gorm:"column:product_id"`
	OptionID  *int64 `gorm:"column:option_id"`
	Quantity  int64  `gorm:"column:quantity"`
	UnitPrice int64  `gorm:"column:unit_price"`
}

func (orderItemRecord) TableName() string { return "order_items" }

type historyRecord struct {
	ID         int64     `gorm:"primaryKey;column:id"`
	OrderID    int64     `gorm:"column:order_id"`
	FromStatus string    `gorm:"column:from_status"`
	ToStatus   string    `gorm:"column:to_status"`
	ChangedBy  *int64    `gorm:"column:changed_by"`
	Note       string    `gorm:"column:note"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (historyRecord) TableName() string { return "order_status_history" }

// Create inserts the order header and all items.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	db := r.tx.DB(ctx).WithContext(ctx)

	record := toOrderRecord(order)
	if err := db.Create(&record).Error; err != nil {
		return nil, err
	}
	items := make([]orderItemRecord, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemRecord{
			OrderID:   record.ID,
			ProductID: item.ProductID,
			OptionID:  item.OptionID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	if err := db.Create(&items).Error; err != nil {
		return nil, err
	}
	return r.GetByID(ctx, record.ID)
}

// GetByID fetches an order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	return r.get(ctx, id, false)
}

// GetByIDForUpdate row-locks the order for a check-then-write.
func (r *OrderRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	return r.get(ctx, id, true)
}

func (r *OrderRepository) get(ctx context.Context, id int64, forUpdate bool) (*domain.Order, error) {
	db := r.tx.DB(ctx).WithContext(ctx)
	if forUpdate {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var record orderRecord
	if err := db.First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	order := record.toDomain()
	items, err := r.itemsFor(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	order.Items = items[id]
	return order, nil
}

// Update persists the mutable header fields. OTP state and totals are
// written by their owning flows, never here.
func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	db := r.tx.DB(ctx).WithContext(ctx)
	result := db.Model(&orderRecord{}).
		Where("id = ?", order.ID).
		Updates(map[string]any{
			"status":      string(order.Status),
			"note":        order.Note,
			"shipper_id":  order.ShipperID,
			"assigned_at": order.AssignedAt,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// Delete removes the order with its items and history.
func (r *OrderRepository) Delete(ctx context.Context, id int64) error {
	db := r.tx.DB(ctx).WithContext(ctx)
	if err := db.Delete(&orderItemRecord{}, "order_id = ?", id).Error; err != nil {
		return err
	}
	if err := db.Delete(&historyRecord{}, "order_id = ?", id).Error; err != nil {
		return err
	}
	result := db.Delete(&orderRecord{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// List returns orders newest first, optionally filtered by status.
func (r *OrderRepository) List(ctx context.Context, status *domain.Status) ([]*domain.Order, error) {
	db := r.tx.DB(ctx).WithContext(ctx)
	query := db.Order("created_at DESC")
	if status != nil {
		query = query.Where("status = ?", string(*status))
	}
	var records []orderRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return r.hydrate(ctx, records)
}

// ListByCustomer returns one page of a customer's orders newest first,
// plus the total row count for the pager.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]*domain.Order, int64, error) {
	db := r.tx.DB(ctx).WithContext(ctx)
	var total int64
	if err := db.Model(&orderRecord{}).Where("customer_id = ?", customerID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var records []orderRecord
	if err := db.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).
		Find(&records, "customer_id = ?", customerID).Error; err != nil {
		return nil, 0, err
	}
	orders, err := r.hydrate(ctx, records)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// AppendHistory writes one immutable audit entry.
func (r *OrderRepository) AppendHistory(ctx context.Context, entry domain.HistoryEntry) error {
	db := r.tx.DB(ctx).WithContext(ctx)
	record := historyRecord{
		OrderID:    entry.OrderID,
		FromStatus: string(entry.FromStatus),
		ToStatus:   string(entry.ToStatus),
		ChangedBy:  entry.ChangedBy,
		Note:       entry.Note,
		CreatedAt:  entry.CreatedAt,
	}
	return db.Create(&record).Error
}

// History returns the audit trail oldest first.
func (r *OrderRepository) History(ctx context.Context, orderID int64) ([]domain.HistoryEntry, error) {
	db := r.tx.DB(ctx).WithContext(ctx)
	var records []historyRecord
	if err := db.Order("created_at, id").Find(&records, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	entries := make([]domain.HistoryEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, domain.HistoryEntry{
			ID:         rec.ID,
			OrderID:    rec.OrderID,
			FromStatus: domain.Status(rec.FromStatus),
			ToStatus:   domain.Status(rec.ToStatus),
			ChangedBy:  rec.ChangedBy,
			Note:       rec.Note,
			CreatedAt:  rec.CreatedAt,
		})
	}
	return entries, nil
}

func (r *OrderRepository) hydrate(ctx context.Context, records []orderRecord) ([]*domain.Order, error) {
	if len(records) == 0 {
		return []*domain.Order{}, nil
	}
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	itemsByOrder, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	orders := make([]*domain.Order, 0, len(records))
	for _, rec := range records {
		order := rec.toDomain()
		order.Items = itemsByOrder[rec.ID]
		orders = append(orders, order)
	}
	return orders, nil
}

func (r *OrderRepository) itemsFor(ctx context.Context, orderIDs []int64) (map[int64][]domain.Item, error) {
	db := r.tx.DB(ctx).WithContext(ctx)
	var records []orderItemRecord
	if err := db.Order("id").Find(&records, "order_id IN ?", orderIDs).Error; err != nil {
		return nil, err
	}
	byOrder := map[int64][]domain.Item{}
	for _, rec := range records {
		byOrder[rec.OrderID] = append(byOrder[rec.OrderID], domain.Item{
			ID:        rec.ID,
			OrderID:   rec.OrderID,
			ProductID: rec.ProductID,
			OptionID:  rec.OptionID,
			Quantity:  rec.Quantity,
			UnitPrice: rec.UnitPrice,
		})
	}
	return byOrder, nil
}

func toOrderRecord(order *domain.Order) orderRecord {
	return orderRecord{
		ID:           order.ID,
		CustomerID:   order.CustomerID,
		AddressID:    order.AddressID,
		Status:       string(order.Status),
		Note:         order.Note,
		Total:        order.Total,
		ShipperID:    order.ShipperID,
		AssignedAt:   order.AssignedAt,
		PaymentEmail: order.PaymentEmail,
	}
}

func (r orderRecord) toDomain() *domain.Order {
	return &domain.Order{
		ID:                r.ID,
		CustomerID:        r.CustomerID,
		AddressID:         r.AddressID,
		Status:            domain.Status(r.Status),
		Note:              r.Note,
		Total:             r.Total,
		ShipperID:         r.ShipperID,
		AssignedAt:        r.AssignedAt,
		PaymentEmail:      r.PaymentEmail,
		PaymentVerifiedAt: r.PaymentVerifiedAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}
