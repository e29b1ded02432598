package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/orders/domain"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/orders/ports"
	platformpg "github.com/maiphun1412/thietbi-dientu-backend/internal/platform/postgres"
)

var (
	_ ports.CustomerRepository = (*CustomerRepository)(nil)
	_ ports.AddressRepository  = (*AddressRepository)(nil)
	_ ports.ShipperRepository  = (*ShipperRepository)(nil)
)

type customerRecord struct {
	ID        int64     `gorm:"primaryKey;column:id"`
	UserID    *int64    `gorm:"column:user_id"`
	FullName  string    `gorm:"column:full_name"`
	Email     string    `gorm:"column:email"`
	Phone     string    `gorm:"column:phone"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (customerRecord) TableName() string { return "customers" }

// CustomerRepository resolves purchasing profiles.
type CustomerRepository struct {
	tx *platformpg.TxManager
}

func NewCustomerRepository(tx *platformpg.TxManager) *CustomerRepository {
	return &CustomerRepository{tx: tx}
}

func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	var record customerRecord
	err := r.tx.DB(ctx).WithContext(ctx).First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrCustomerNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

func (r *CustomerRepository) GetByUserID(ctx context.Context, userID int64) (*domain.Customer, error) {
	var record customerRecord
	err := r.tx.DB(ctx).WithContext(ctx).First(&record, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrCustomerNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

func (r *CustomerRepository) Create(ctx context.Context, customer *domain.Customer) (*domain.Customer, error) {
	record := customerRecord{
		UserID:   customer.UserID,
		FullName: customer.FullName,
		Email:    customer.Email,
		Phone:    customer.Phone,
	}
	if err := r.tx.DB(ctx).WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}
	return record.toDomain(), nil
}

func (r customerRecord) toDomain() *domain.Customer {
	return &domain.Customer{
		ID:        r.ID,
		UserID:    r.UserID,
		FullName:  r.FullName,
		Email:     r.Email,
		Phone:     r.Phone,
		CreatedAt: r.CreatedAt,
	}
}

type addressRecord struct {
	ID         int64     `gorm:"primaryKey;column:id"`
	CustomerID int64     `gorm:"column:customer_id"`
	Line       string    `gorm:"column:line"`
	Ward       string    `gorm:"column:ward"`
	District   string    `gorm:"column:district"`
	City       string    `gorm:"column:city"`
	IsDefault  bool      `gorm:"column:is_default"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (addressRecord) TableName() string { return "addresses" }

// AddressRepository resolves shipping destinations.
type AddressRepository struct {
	tx *platformpg.TxManager
}

func NewAddressRepository(tx *platformpg.TxManager) *AddressRepository {
	return &AddressRepository{tx: tx}
}

func (r *AddressRepository) GetByID(ctx context.Context, id int64) (*domain.Address, error) {
	var record addressRecord
	err := r.tx.DB(ctx).WithContext(ctx).First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrAddressNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

func (r *AddressRepository) Create(ctx context.Context, address *domain.Address) (*domain.Address, error) {
	record := addressRecord{
		CustomerID: address.CustomerID,
		Line:       address.Line,
		Ward:       address.Ward,
		District:   address.District,
		City:       address.City,
		IsDefault:  address.IsDefault,
	}
	if err := r.tx.DB(ctx).WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}
	return record.toDomain(), nil
}

// PreferredFor picks the default address, falling back to the most
// recently created one.
func (r *AddressRepository) PreferredFor(ctx context.Context, customerID int64) (*domain.Address, error) {
	var record addressRecord
	err := r.tx.DB(ctx).WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("is_default DESC, created_at DESC, id DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrAddressNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

func (r addressRecord) toDomain() *domain.Address {
	return &domain.Address{
		ID:         r.ID,
		CustomerID: r.CustomerID,
		Line:       r.Line,
		Ward:       r.Ward,
		District:   r.District,
		City:       r.City,
		IsDefault:  r.IsDefault,
		CreatedAt:  r.CreatedAt,
	}
}

type shipperRecord struct {
	ID       int64  `gorm:"primaryKey;column:id"`
	UserID   *int64 `gorm:"column:user_id"`
	FullName string `gorm:"column:full_name"`
	Phone    string `gorm:"column:phone"`
	Active   bool   `gorm:"column:active"`
}

func (shipperRecord) TableName() string { return "shippers" }

// ShipperRepository looks up couriers.
type ShipperRepository struct {
	tx *platformpg.TxManager
}

func NewShipperRepository(tx *platformpg.TxManager) *ShipperRepository {
	return &ShipperRepository{tx: tx}
}

func (r *ShipperRepository) GetByID(ctx context.Context, id int64) (*domain.Shipper, error) {
	var record shipperRecord
	err := r.tx.DB(ctx).WithContext(ctx).First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrShipperNotFound
		}
		return nil, err
	}
	return &domain.Shipper{
		ID:       record.ID,
		UserID:   record.UserID,
		FullName: record.FullName,
		Phone:    record.Phone,
		Active:   record.Active,
	}, nil
}
