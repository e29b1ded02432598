package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/catalog/domain"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/catalog/ports"
	platformpg "github.com/maiphun1412/thietbi-dientu-backend/internal/platform/postgres"
)

var (
	_ ports.ProductReader   = (*Repository)(nil)
	_ ports.InventoryLedger = (*Repository)(nil)
)

// Repository reads products and keeps stock counters in PostgreSQL. All
// queries resolve their handle through the transaction manager, so ledger
// mutations made inside a checkout transaction stay atomic with it.
type Repository struct {
	tx *platformpg.TxManager
}

// NewRepository wires the repository. Caller manages DB lifecycle.
func NewRepository(tx *platformpg.TxManager) *Repository {
	return &Repository{tx: tx}
}

type productRecord struct {
	ID        int64          `gorm:"primaryKey;column:id"`
	Name      string         `gorm:"column:name"`
	Price     int64          `gorm:"column:price"`
	Stock     int64          `gorm:"column:stock"`
	Sold      int64          `gorm:"column:sold"`
	ImageURLs pq.StringArray `gorm:"column:image_urls;type:text[]"`
	CreatedAt time.Time      `gorm:"column:created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

func (productRecord) TableName() string { return "products" }

type productOptionRecord struct {
	ID        int64  `gorm:"primaryKey;column:id"`
	ProductID int64  `gorm:"column:product_id"`
	Color     string `gorm:"column:color"`
	Size      string `gorm:"column:size"`
	Price     *int64 `gorm:"column:price"`
}

func (productOptionRecord) TableName() string { return "product_options" }

type inventoryRecord struct {
	ID        int64     `gorm:"primaryKey;column:id"`
	OptionID  int64     `gorm:"column:option_id"`
	Stock     int64     `gorm:"column:stock"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (inventoryRecord) TableName() string { return "inventory" }

// GetProduct fetches a product with its variants and their stock.
func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	db := r.tx.DB(ctx).WithContext(ctx)

	var product productRecord
	if err := db.First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}

	var options []productOptionRecord
	if err := db.Order("id").Find(&options, "product_id = ?", id).Error; err != nil {
		return nil, err
	}

	stockByOption := map[int64]int64{}
	if len(options) > 0 {
		optionIDs := make([]int64, 0, len(options))
		for _, o := range options {
			optionIDs = append(optionIDs, o.ID)
		}
		var rows []inventoryRecord
		if err := db.Find(&rows, "option_id IN ?", optionIDs).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			stockByOption[row.OptionID] = row.Stock
		}
	}

	result := &domain.Product{
		ID:        product.ID,
		Name:      product.Name,
		Price:     product.Price,
		Stock:     product.Stock,
		Sold:      product.Sold,
		ImageURLs: product.ImageURLs,
	}
	for _, o := range options {
		result.Variants = append(result.Variants, domain.Variant{
			ID:        o.ID,
			ProductID: o.ProductID,
			Color:     o.Color,
			Size:      o.Size,
			Price:     o.Price,
			Stock:     stockByOption[o.ID],
		})
	}
	return result, nil
}

// TryDecrement locks the stock row, verifies availability, and decrements.
func (r *Repository) TryDecrement(ctx context.Context, productID int64, optionID *int64, qty int64) error {
	db := r.tx.DB(ctx).WithContext(ctx)

	if optionID != nil {
		var row inventoryRecord
		err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, "option_id = ?", *optionID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ports.ErrNotFound
			}
			return err
		}
		if row.Stock < qty {
			return &ports.InsufficientStockError{
				ProductID: productID,
				OptionID:  optionID,
				Requested: qty,
				Available: row.Stock,
			}
		}
		return db.Model(&inventoryRecord{}).
			Where("option_id = ?", *optionID).
			Updates(map[string]any{
				"stock":      gorm.Expr("stock - ?", qty),
				"updated_at": time.Now(),
			}).Error
	}

	var row productRecord
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&row, "id = ?", productID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ErrNotFound
		}
		return err
	}
	if row.Stock < qty {
		return &ports.InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: row.Stock,
		}
	}
	return db.Model(&productRecord{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock - ?", qty),
			"updated_at": time.Now(),
		}).Error
}

// Increment restores stock, e.g. when an order is cancelled.
func (r *Repository) Increment(ctx context.Context, productID int64, optionID *int64, qty int64) error {
	db := r.tx.DB(ctx).WithContext(ctx)

	if optionID != nil {
		result := db.Model(&inventoryRecord{}).
			Where("option_id = ?", *optionID).
			Updates(map[string]any{
				"stock":      gorm.Expr("stock + ?", qty),
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ports.ErrNotFound
		}
		return nil
	}

	result := db.Model(&productRecord{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock + ?", qty),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// AddSold credits completed units to the product counter.
func (r *Repository) AddSold(ctx context.Context, productID int64, qty int64) error {
	db := r.tx.DB(ctx).WithContext(ctx)
	result := db.Model(&productRecord{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"sold":       gorm.Expr("sold + ?", qty),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrNotFound
	}
	return nil
}
