package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CouponType represents the type of discount a coupon provides.
type CouponType string

const (
	CouponTypePercentage   CouponType = "percentage"
	CouponTypeFixed        CouponType = "fixed"
	CouponTypeFreeShipping CouponType = "free_shipping"
)

// Machine-checkable reasons a coupon evaluation can fail with. The storefront
// maps each one to a distinct customer-facing message.
const (
	ReasonNotFound         = "not_found"
	ReasonInactive         = "inactive"
	ReasonNotStarted       = "not_started"
	ReasonExpired          = "expired"
	ReasonBelowMinimum     = "below_minimum"
	ReasonUsageExhausted   = "usage_exhausted"
	ReasonUserLimitReached = "user_limit_reached"
	ReasonNotApplicable    = "not_applicable"
	ReasonFirstOrderOnly   = "first_order_only"
)

// Coupon represents a promotional coupon stored in Postgres.
type Coupon struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code          string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`
	Type          CouponType `gorm:"type:varchar(20);not null" json:"type"`
	Value         float64    `gorm:"not null" json:"value"`                     // discount amount or percentage; 0 for free_shipping
	MinOrderValue float64    `gorm:"not null;default:0" json:"min_order_value"` // minimum cart subtotal to apply
	MaxDiscount   float64    `gorm:"not null;default:0" json:"max_discount"`    // cap after percentage computation; 0 = uncapped
	UsageLimit    int        `gorm:"not null;default:0" json:"usage_limit"`     // 0 = unlimited
	UsedCount     int        `gorm:"not null;default:0" json:"used_count"`
	UserLimit     int        `gorm:"not null;default:0" json:"user_limit"` // per-user cap; 0 = unlimited

	// Optional scoping. Empty slices mean the coupon applies store-wide.
	ApplicableProducts   []string `gorm:"serializer:json" json:"applicable_products,omitempty"`
	ExcludedProducts     []string `gorm:"serializer:json" json:"excluded_products,omitempty"`
	ApplicableCategories []string `gorm:"serializer:json" json:"applicable_categories,omitempty"`

	FirstOrderOnly bool `gorm:"not null;default:false" json:"first_order_only"`
	ShowOnCart     bool `gorm:"not null;default:false" json:"show_on_cart"`

	Active    bool           `gorm:"not null;default:true" json:"active"`
	StartsAt  *time.Time     `json:"starts_at,omitempty"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// CouponRedemption records one recorded use of a coupon by a user, backing
// per-user usage limits.
type CouponRedemption struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CouponID    uuid.UUID `gorm:"type:uuid;not null;index:idx_redemptions_coupon_user" json:"coupon_id"`
	UserID      string    `gorm:"type:varchar(64);not null;index:idx_redemptions_coupon_user" json:"user_id"`
	OrderNumber string    `gorm:"type:varchar(64);not null" json:"order_number"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// CreateCouponRequest is the payload for creating a new coupon.
type CreateCouponRequest struct {
	Code                 string     `json:"code" binding:"required,min=3,max=64"`
	Type                 CouponType `json:"type" binding:"required,oneof=percentage fixed free_shipping"`
	Value                float64    `json:"value" binding:"gte=0"`
	MinOrderValue        float64    `json:"min_order_value" binding:"gte=0"`
	MaxDiscount          float64    `json:"max_discount" binding:"gte=0"`
	UsageLimit           int        `json:"usage_limit" binding:"gte=0"`
	UserLimit            int        `json:"user_limit" binding:"gte=0"`
	ApplicableProducts   []string   `json:"applicable_products"`
	ExcludedProducts     []string   `json:"excluded_products"`
	ApplicableCategories []string   `json:"applicable_categories"`
	FirstOrderOnly       bool       `json:"first_order_only"`
	ShowOnCart           bool       `json:"show_on_cart"`
	StartsAt             *time.Time `json:"starts_at"`
	ExpiresAt            *time.Time `json:"expires_at"`
}

// CartContext is the cart state a coupon is evaluated against.
type CartContext struct {
	Subtotal     float64  `json:"subtotal" binding:"required,gte=0"`
	UserID       string   `json:"user_id"`
	ProductIDs   []string `json:"product_ids"`
	CategoryIDs  []string `json:"category_ids"`
	IsFirstOrder bool     `json:"is_first_order"`
}

// ValidateCouponRequest is the payload for evaluating a coupon against a cart.
type ValidateCouponRequest struct {
	Code string      `json:"code" binding:"required"`
	Cart CartContext `json:"cart" binding:"required"`
}

// Evaluation is the outcome of evaluating a coupon against a cart. It carries
// no side effects; usage recording happens separately when an order commits.
type Evaluation struct {
	Valid          bool       `json:"valid"`
	Code           string     `json:"code"`
	Type           CouponType `json:"type,omitempty"`
	Value          float64    `json:"value,omitempty"`
	DiscountAmount float64    `json:"discount_amount"`
	FreeShipping   bool       `json:"free_shipping"`
	Reason         string     `json:"reason,omitempty"`
	Message        string     `json:"message,omitempty"`
}

// CouponSnapshot is the frozen view of a coupon stored on an order so later
// coupon edits do not retroactively change historical orders.
type CouponSnapshot struct {
	Code           string     `json:"code"`
	Type           CouponType `json:"type"`
	Value          float64    `json:"value"`
	DiscountAmount float64    `json:"discount_amount"`
}

// CouponAppliedEvent is published to SNS when a coupon use is recorded.
type CouponAppliedEvent struct {
	EventType      string    `json:"event_type"`
	CouponID       string    `json:"coupon_id"`
	CouponCode     string    `json:"coupon_code"`
	CouponType     string    `json:"coupon_type"`
	DiscountAmount float64   `json:"discount_amount"`
	OrderNumber    string    `json:"order_number"`
	UserID         string    `json:"user_id"`
	Timestamp      time.Time `json:"timestamp"`
}
