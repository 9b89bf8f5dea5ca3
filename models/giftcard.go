package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GiftCardCodeLength is the length of every issued redemption code.
const GiftCardCodeLength = 12

// GiftCardTxnDebit is the only transaction type; balances only ever go down.
const GiftCardTxnDebit = "debit"

// ReasonInsufficientBalance reports a debit larger than the remaining
// balance. Partial redemption is not supported.
const ReasonInsufficientBalance = "insufficient_balance"

// GiftCard is a balance-bearing card. Balance starts at Amount and decreases
// monotonically; the card deactivates itself when the balance hits zero.
type GiftCard struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code      string         `gorm:"type:varchar(16);uniqueIndex;not null" json:"code"`
	Amount    float64        `gorm:"not null" json:"amount"` // face value, immutable after issuance
	Balance   float64        `gorm:"not null" json:"balance"`
	Active    bool           `gorm:"not null;default:true" json:"active"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Transactions []GiftCardTransaction `gorm:"foreignKey:GiftCardID;constraint:OnDelete:CASCADE" json:"transactions,omitempty"`
}

// GiftCardTransaction is one append-only ledger entry against a card.
type GiftCardTransaction struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	GiftCardID uuid.UUID `gorm:"type:uuid;not null;index" json:"gift_card_id"`
	Amount     float64   `gorm:"not null" json:"amount"`
	Type       string    `gorm:"type:varchar(16);not null" json:"type"`
	OrderID    string    `gorm:"type:varchar(64)" json:"order_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"date"`
}

// IssueGiftCardRequest is the payload for issuing a new gift card.
type IssueGiftCardRequest struct {
	Amount    float64    `json:"amount" binding:"required,gt=0"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// RedeemGiftCardRequest is the payload for debiting a gift card.
type RedeemGiftCardRequest struct {
	Code    string  `json:"code" binding:"required"`
	Amount  float64 `json:"amount" binding:"required,gt=0"`
	OrderID string  `json:"order_id" binding:"required"`
}

// RedeemGiftCardResponse reports the result of a successful debit.
type RedeemGiftCardResponse struct {
	Success          bool    `json:"success"`
	Code             string  `json:"code"`
	RedeemedAmount   float64 `json:"redeemed_amount"`
	RemainingBalance float64 `json:"remaining_balance"`
}

// ValidateGiftCardRequest is the payload for a read-only balance check.
type ValidateGiftCardRequest struct {
	Code string `json:"code" binding:"required,len=12"`
}

// GiftCardRedeemedEvent is published to SNS after a successful debit.
type GiftCardRedeemedEvent struct {
	EventType        string    `json:"event_type"`
	Code             string    `json:"code"`
	RedeemedAmount   float64   `json:"redeemed_amount"`
	RemainingBalance float64   `json:"remaining_balance"`
	OrderID          string    `json:"order_id"`
	Timestamp        time.Time `json:"timestamp"`
}
