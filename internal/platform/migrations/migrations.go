// Package migrations owns the relational schema for all bounded contexts.
// Adapters keep their own record structs; this package is the single
// AutoMigrate entry point so the schema stays versioned in one place.
package migrations

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Run applies the schema for the bounded contexts.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&userRecord{},
		&customerRecord{},
		&addressRecord{},
		&shipperRecord{},
		&productRecord{},
		&productOptionRecord{},
		&inventoryRecord{},
		&orderRecord{},
		&orderItemRecord{},
		&paymentRecord{},
		&orderStatusHistoryRecord{},
		&notificationRecord{},
	)
}

type userRecord struct {
	ID           int64     `gorm:"primaryKey;column:id"`
	Email        string    `gorm:"column:email;uniqueIndex"`
	PasswordHash string    `gorm:"column:password_hash"`
	FullName     string    `gorm:"column:full_name"`
	Role         string    `gorm:"column:role;type:varchar(32);index"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (userRecord) TableName() string { return "users" }

// A customer profile is created lazily on first checkout for a user.
type customerRecord struct {
	ID        int64     `gorm:"primaryKey;column:id"`
	UserID    *int64    `gorm:"column:user_id;uniqueIndex"`
	FullName  string    `gorm:"column:full_name"`
	Email     string    `gorm:"column:email;index"`
	Phone     string    `gorm:"column:phone"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (customerRecord) TableName() string { return "customers" }

type addressRecord struct {
	ID         int64     `gorm:"primaryKey;column:id"`
	CustomerID int64     `gorm:"column:customer_id;index"`
	Line       string    `gorm:"column:line"`
	Ward       string    `gorm:"column:ward"`
	District   string    `gorm:"column:district"`
	City       string    `gorm:"column:city"`
	IsDefault  bool      `gorm:"column:is_default"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (addressRecord) TableName() string { return "addresses" }

type shipperRecord struct {
	ID        int64     `gorm:"primaryKey;column:id"`
	UserID    *int64    `gorm:"column:user_id;index"`
	FullName  string    `gorm:"column:full_name"`
	Phone     string    `gorm:"column:phone"`
	Active    bool      `gorm:"column:active;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (shipperRecord) TableName() string { return "shippers" }

// Stock lives here for variant-less products; Sold counts completed units.
type productRecord struct {
	ID        int64          `gorm:"primaryKey;column:id"`
	Name      string         `gorm:"column:name;index"`
	Price     int64          `gorm:"column:price"`
	Stock     int64          `gorm:"column:stock"`
	Sold      int64          `gorm:"column:sold"`
	ImageURLs pq.StringArray `gorm:"column:image_urls;type:text[]"`
	CreatedAt time.Time      `gorm:"column:created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

func (productRecord) TableName() string { return "products" }

type productOptionRecord struct {
	ID        int64     `gorm:"primaryKey;column:id"`
	ProductID int64     `gorm:"column:product_id;index"`
	Color     string    `gorm:"column:color"`
	Size      string    `gorm:"column:size"`
	Price     *int64    `gorm:"column:price"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (productOptionRecord) TableName() string { return "product_options" }

// Per-variant stock; a product with rows here ignores products.stock.
type inventoryRecord struct {
	ID        int64     `gorm:"primaryKey;column:id"`
	OptionID  int64     `gorm:"column:option_id;uniqueIndex"`
	Stock     int64     `gorm:"column:stock"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (inventoryRecord) TableName() string { return "inventory" }

type orderRecord struct {
	ID                int64      `gorm:"primaryKey;column:id"`
	CustomerID        *int64     `gorm:"column:customer_id;index"`
	AddressID         *int64     `gorm:"column:address_id"`
	Status            string     `gorm:"column:status;type:varchar(32);index"`
	Note              string     `gorm:"column:note"`
	Total             int64      `gorm:"column:total"`
	ShipperID         *int64     `gorm:"column:shipper_id;index"`
	AssignedAt        *time.Time `gorm:"column:assigned_at"`
	PaymentEmail      string     `gorm:"column:payment_email;index"`
	OtpHash           string     `gorm:"column:otp_hash"`
	OtpExpiresAt      *time.Time `gorm:"column:otp_expires_at"`
	OtpAttempts       int        `gorm:"column:otp_attempts"`
	OtpLastSentAt     *time.Time `gorm:"column:otp_last_sent_at"`
	OtpResendCount    int        `gorm:"column:otp_resend_count"`
	PaymentVerifiedAt *time.Time `gorm:"column:payment_verified_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;index"`
	UpdatedAt         time.Time  `gorm:"column:updated_at"`
}

func (orderRecord) TableName() string { return "orders" }

type orderItemRecord struct {
	ID        int64     `gorm:"primaryKey;column:id"`
	OrderID   int64     `gorm:"column:order_id;index"`
	ProductID int64     `gorm:"column:product_id;index"`
	OptionID  *int64    `gorm:"column:option_id"`
	Quantity  int64     `gorm:"column:quantity"`
	UnitPrice int64     `gorm:"column:unit_price"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (orderItemRecord) TableName() string { return "order_items" }

type paymentRecord struct {
	ID        int64     `gorm:"primaryKey;column:id"`
	OrderID   int64     `gorm:"column:order_id;index"`
	Method    string    `gorm:"column:method;type:varchar(16)"`
	Status    string    `gorm:"column:status;type:varchar(16);index"`
	Amount    int64     `gorm:"column:amount"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (paymentRecord) TableName() string { return "payments" }

type orderStatusHistoryRecord struct {
	ID         int64     `gorm:"primaryKey;column:id"`
	OrderID    int64     `gorm:"column:order_id;index"`
	FromStatus string    `gorm:"column:from_status;type:varchar(32)"`
	ToStatus   string    `gorm:"column:to_status;type:varchar(32)"`
	ChangedBy  *int64    `gorm:"column:changed_by"`
	Note       string    `gorm:"column:note"`
	CreatedAt  time.Time `gorm:"column:created_at;index"`
}

func (orderStatusHistoryRecord) TableName() string { return "order_status_history" }

type notificationRecord struct {
	ID        string    `gorm:"primaryKey;column:id;size:36"`
	Type      string    `gorm:"column:type;type:varchar(64);index"`
	Title     string    `gorm:"column:title"`
	Message   string    `gorm:"column:message"`
	Data      string    `gorm:"column:data;type:jsonb"`
	CreatedAt time.Time `gorm:"column:created_at;index"`
}

func (notificationRecord) TableName() string { return "notifications" }
