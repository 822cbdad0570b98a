package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID        string    `gorm:"primaryKey;size:36;not null" json:"id"`
	Name      string    `gorm:"size:50;not null" json:"name"`
	Email     string    `gorm:"size:254;uniqueIndex;not null" json:"email"` // always lowercased
	Password  string    `gorm:"size:72;not null" json:"-"`                  // bcrypt hash
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

type Product struct {
	ID          string    `gorm:"primaryKey;size:36;not null" json:"_id"`
	Name        string    `gorm:"size:128;index;not null" json:"name"`
	Category    string    `gorm:"size:64" json:"category"`
	Image       string    `gorm:"size:255" json:"image"`
	Price       float64   `gorm:"not null;default:0;check:price >= 0" json:"price"`
	Description string    `gorm:"size:1024" json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type Media struct {
	ID   string `gorm:"primaryKey;size:36;not null" json:"_id"`
	Name string `gorm:"size:128;not null" json:"name"`
	Type string `gorm:"size:32" json:"type"` // video, image
	URL  string `gorm:"size:255;not null" json:"url"`
}

func (m *Media) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// Cart is the single mutable cart of a user.
type Cart struct {
	ID        string     `gorm:"primaryKey;size:36;not null"`
	UserID    string     `gorm:"size:36;uniqueIndex;not null"` // one cart per user
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time `gorm:"index"` // idle carts expire from here
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

type CartItem struct {
	ID        uint   `gorm:"primaryKey"`
	CartID    string `gorm:"size:36;index;not null"`
	ProductID string `gorm:"size:36;not null"`
	Quantity  int    `gorm:"not null"`
}

type PaymentMethod string
type PaymentStatus string
type OrderStatus string

const (
	PaymentMethodCOD      PaymentMethod = "cod"
	PaymentMethodRazorpay PaymentMethod = "razorpay"

	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"

	OrderStatusPlaced     OrderStatus = "placed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type ShippingAddress struct {
	FullName string `gorm:"size:100;not null" json:"fullName"`
	Phone    string `gorm:"size:10;not null" json:"phone"`
	Address  string `gorm:"size:255;not null" json:"address"`
	City     string `gorm:"size:64;not null" json:"city"`
	State    string `gorm:"size:64;not null" json:"state"`
	Pincode  string `gorm:"size:6;not null" json:"pincode"`
}

// Order is an immutable snapshot of a checkout. Only the payment fields change after creation.
type Order struct {
	ID                string          `gorm:"primaryKey;size:36;not null" json:"_id"`
	UserID            string          `gorm:"size:36;index;not null" json:"userId"`
	Items             []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	TotalAmount       float64         `gorm:"not null" json:"totalAmount"` // sum of item subtotals
	ShippingAddress   ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_" json:"shippingAddress"`
	PaymentMethod     PaymentMethod   `gorm:"size:16;not null" json:"paymentMethod"`
	PaymentStatus     PaymentStatus   `gorm:"size:16;not null;default:pending" json:"paymentStatus"`
	OrderStatus       OrderStatus     `gorm:"size:16;not null;default:placed" json:"orderStatus"`
	RazorpayOrderID   string          `gorm:"size:64;index" json:"razorpayOrderId,omitempty"`
	RazorpayPaymentID string          `gorm:"size:64" json:"razorpayPaymentId,omitempty"`
	CreatedAt         time.Time       `gorm:"index" json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// OrderItem copies product attributes at purchase time.
type OrderItem struct {
	ID        uint    `gorm:"primaryKey" json:"-"`
	OrderID   string  `gorm:"size:36;index;not null" json:"-"`
	ProductID string  `gorm:"size:36;not null" json:"productId"`
	Name      string  `gorm:"size:128;not null" json:"name"`
	Price     float64 `gorm:"not null" json:"price"`
	Quantity  int     `gorm:"not null" json:"quantity"`
	Image     string  `gorm:"size:255" json:"image"`
}

type Review struct {
	ID        string    `gorm:"primaryKey;size:36;not null" json:"_id"`
	ProductID string    `gorm:"size:36;not null;uniqueIndex:idx_review_user_product,priority:2;index" json:"productId"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_review_user_product,priority:1" json:"userId"`
	UserName  string    `gorm:"size:50;not null" json:"userName"`
	Rating    int       `gorm:"not null" json:"rating"`
	Comment   string    `gorm:"size:1000" json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// IdempotencyKey remembers which order a client-supplied checkout key produced.
type IdempotencyKey struct {
	UserID    string    `gorm:"primaryKey;size:36;not null"`
	Key       string    `gorm:"column:idem_key;primaryKey;size:128;not null"`
	OrderID   string    `gorm:"size:36;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}

type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}
