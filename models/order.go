package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Order status values. Transitions are operator-driven and deliberately
// unrestricted; every change appends a timeline entry.
const (
	OrderStatusPending        = "pending"
	OrderStatusConfirmed      = "confirmed"
	OrderStatusProcessing     = "processing"
	OrderStatusShipped        = "shipped"
	OrderStatusInTransit      = "in_transit"
	OrderStatusOutForDelivery = "out_for_delivery"
	OrderStatusDelivered      = "delivered"
	OrderStatusCancelled      = "cancelled"
	OrderStatusReturned       = "returned"
	OrderStatusRefunded       = "refunded"
)

// ValidOrderStatuses enumerates every accepted status value.
var ValidOrderStatuses = []string{
	OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
	OrderStatusShipped, OrderStatusInTransit, OrderStatusOutForDelivery,
	OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned,
	OrderStatusRefunded,
}

// TimelineStatusOrderPlaced is the auto-seeded first timeline entry.
const TimelineStatusOrderPlaced = "order_placed"

// Delivery methods and their default door-to-door estimates in days.
const (
	DeliveryMethodStandard  = "standard"
	DeliveryMethodExpress   = "express"
	DeliveryMethodOvernight = "overnight"
)

// Address is a shipping address captured at checkout.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Pricing is the order price breakdown. The invariant
// Total = Subtotal - DiscountAmount + ShippingCost + TaxAmount
// is enforced by the assembler.
type Pricing struct {
	Subtotal       float64 `json:"subtotal"`
	DiscountAmount float64 `json:"discount_amount"`
	ShippingCost   float64 `json:"shipping_cost"`
	TaxAmount      float64 `json:"tax_amount"`
	Total          float64 `json:"total"`
}

// Delivery carries shipment method, estimates and carrier tracking.
type Delivery struct {
	Method            string     `json:"method"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time `json:"actual_delivery,omitempty"`
	TrackingNumber    string     `json:"tracking_number,omitempty"`
	Carrier           string     `json:"carrier,omitempty"`
}

// Payment captures how the order was (or will be) paid.
type Payment struct {
	Method         string     `json:"method"`
	Status         string     `json:"status"`
	GiftCardAmount float64    `json:"gift_card_amount,omitempty"`
	TransactionID  string     `json:"transaction_id,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
}

// Metadata is request context captured once at creation, immutable after.
type Metadata struct {
	Source    string `json:"source,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
}

// Order is the normalized order document persisted at checkout.
type Order struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_number"`
	UserID        string    `gorm:"type:varchar(64);index" json:"user_id"`
	CustomerEmail string    `gorm:"type:varchar(255);index;not null" json:"customer_email"`
	FirstName     string    `gorm:"type:varchar(100)" json:"first_name"`
	LastName      string    `gorm:"type:varchar(100)" json:"last_name"`
	Status        string    `gorm:"type:varchar(24);not null;default:'pending'" json:"status"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`

	Pricing         Pricing  `gorm:"embedded;embeddedPrefix:pricing_" json:"pricing"`
	ShippingAddress Address  `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`
	Delivery        Delivery `gorm:"embedded;embeddedPrefix:delivery_" json:"delivery"`
	Payment         Payment  `gorm:"embedded;embeddedPrefix:payment_" json:"payment"`
	Metadata        Metadata `gorm:"embedded;embeddedPrefix:meta_" json:"metadata"`

	// Snapshot of applied coupons, decoupled from the live coupon records.
	Coupons []CouponSnapshot `gorm:"serializer:json" json:"coupons,omitempty"`

	Timeline []TimelineEntry `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"timeline"`

	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// OrderItem is a single line item on an order.
type OrderItem struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID        uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	ProductID      string    `gorm:"type:varchar(64);not null" json:"product_id"`
	Name           string    `gorm:"type:varchar(255);not null" json:"name"`
	Price          float64   `gorm:"not null" json:"price"`
	Quantity       int       `gorm:"not null" json:"quantity"`
	Variant        string    `gorm:"type:varchar(100)" json:"variant,omitempty"`
	Weight         string    `gorm:"type:varchar(50)" json:"weight,omitempty"`
	IsUpsell       bool      `gorm:"not null;default:false" json:"is_upsell"`
	UpsellDiscount float64   `gorm:"not null;default:0" json:"upsell_discount,omitempty"`
	OriginalPrice  float64   `gorm:"not null;default:0" json:"original_price,omitempty"`
}

// TimelineEntry is one append-only event in an order's history.
type TimelineEntry struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID     uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	Status      string    `gorm:"type:varchar(32);not null" json:"status"`
	Title       string    `gorm:"type:varchar(100)" json:"title"`
	Description string    `gorm:"type:varchar(255)" json:"description"`
	Location    string    `gorm:"type:varchar(100)" json:"location,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"timestamp"`
}

// CheckoutItem is a raw line item from the storefront checkout payload.
type CheckoutItem struct {
	ProductID      string  `json:"product_id" binding:"required"`
	Name           string  `json:"name" binding:"required"`
	Price          float64 `json:"price" binding:"gte=0"`
	Quantity       int     `json:"quantity" binding:"required,min=1"`
	Variant        string  `json:"variant"`
	Weight         string  `json:"weight"`
	IsUpsell       bool    `json:"is_upsell"`
	UpsellDiscount float64 `json:"upsell_discount"`
	OriginalPrice  float64 `json:"original_price"`
}

// GiftCardPayment is the optional gift-card portion of a checkout payload.
// Amount must be positive; a negative debit would credit the card.
type GiftCardPayment struct {
	Code   string  `json:"code"`
	Amount float64 `json:"amount" binding:"omitempty,gt=0"`
}

// CheckoutRequest is the raw storefront checkout payload.
type CheckoutRequest struct {
	OrderNumber   string         `json:"order_number"`
	UserID        string         `json:"user_id"`
	CustomerEmail string         `json:"customer_email" binding:"required,email"`
	FirstName     string         `json:"first_name"`
	LastName      string         `json:"last_name"`
	Items         []CheckoutItem `json:"items" binding:"required,min=1,dive"`

	ShippingCost float64 `json:"shipping_cost" binding:"gte=0"`
	TaxAmount    float64 `json:"tax_amount" binding:"gte=0"`

	ShippingAddress Address `json:"shipping_address"`

	DeliveryMethod    string     `json:"delivery_method"`
	EstimatedDelivery *time.Time `json:"estimated_delivery"`

	PaymentMethod string `json:"payment_method"`

	CouponCode string           `json:"coupon_code"`
	GiftCard   *GiftCardPayment `json:"gift_card"`
}

// RequestContext is the per-request metadata the assembler stamps on orders.
type RequestContext struct {
	Source    string
	UserAgent string
	IPAddress string
	Referrer  string
}

// UpdateOrderStatusRequest drives the timeline manager.
type UpdateOrderStatusRequest struct {
	Status      string `json:"status" binding:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// TrackingView is the reduced customer-facing projection of an order.
type TrackingView struct {
	OrderNumber       string          `json:"order_number"`
	Status            string          `json:"status"`
	Items             []OrderItem     `json:"items"`
	Total             float64         `json:"total"`
	EstimatedDelivery *time.Time      `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time      `json:"actual_delivery,omitempty"`
	TrackingNumber    string          `json:"tracking_number"`
	Carrier           string          `json:"carrier,omitempty"`
	Timeline          []TimelineEntry `json:"timeline"`
	ShippingAddress   Address         `json:"shipping_address"`
	PaymentMethod     string          `json:"payment_method"`
	PaymentStatus     string          `json:"payment_status"`
}

// OrderCreatedEvent is published after an order document is persisted.
type OrderCreatedEvent struct {
	EventType   string    `json:"event_type"`
	OrderNumber string    `json:"order_number"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	Total       float64   `json:"total"`
	ItemCount   int       `json:"item_count"`
	Timestamp   time.Time `json:"timestamp"`
}

// OrderStatusChangedEvent is published when the status changes.
type OrderStatusChangedEvent struct {
	EventType   string    `json:"event_type"`
	OrderNumber string    `json:"order_number"`
	OldStatus   string    `json:"old_status"`
	NewStatus   string    `json:"new_status"`
	Timestamp   time.Time `json:"timestamp"`
}

// ShipmentStatusEvent is the carrier update consumed from the shipment queue.
type ShipmentStatusEvent struct {
	OrderNumber    string     `json:"order_number"`
	Status         string     `json:"status"`
	Description    string     `json:"description"`
	Location       string     `json:"location"`
	TrackingNumber string     `json:"tracking_number"`
	Carrier        string     `json:"carrier"`
	DeliveredAt    *time.Time `json:"delivered_at"`
}
