package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/gainmode46-star/gainmode-backend/models"
)

// ErrInsufficientBalance is returned when a debit would overdraw a card.
// Partial redemption is not supported; the full requested amount must fit.
var ErrInsufficientBalance = errors.New("insufficient gift card balance")

// GiftCardRepository defines the interface for gift card data access.
type GiftCardRepository interface {
	Create(ctx context.Context, card *models.GiftCard) error
	FindByCode(ctx context.Context, code string) (*models.GiftCard, error)
	// Debit atomically subtracts amount from the card balance, appends a
	// transaction row, and deactivates the card when the balance reaches
	// zero. Returns the card as it looks after the debit.
	Debit(ctx context.Context, code string, amount float64, orderID string) (*models.GiftCard, error)
}

// GormGiftCardRepository implements GiftCardRepository using GORM.
type GormGiftCardRepository struct {
	db *gorm.DB
}

// NewGormGiftCardRepository creates a new GormGiftCardRepository.
func NewGormGiftCardRepository(db *gorm.DB) GiftCardRepository {
	return &GormGiftCardRepository{db: db}
}

// Create inserts a new gift card. A duplicate code surfaces as the driver's
// unique-violation error; the issuer retries with a fresh code.
func (r *GormGiftCardRepository) Create(ctx context.Context, card *models.GiftCard) error {
	return r.db.WithContext(ctx).Create(card).Error
}

// FindByCode retrieves a gift card with its transaction log (case-insensitive).
func (r *GormGiftCardRepository) FindByCode(ctx context.Context, code string) (*models.GiftCard, error) {
	var card models.GiftCard
	err := r.db.WithContext(ctx).
		Preload("Transactions", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("UPPER(code) = ?", strings.ToUpper(code)).
		First(&card).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// Debit runs the balance check and subtraction as one conditional update
// inside a transaction, so two concurrent redemptions cannot both spend the
// same balance.
func (r *GormGiftCardRepository) Debit(ctx context.Context, code string, amount float64, orderID string) (*models.GiftCard, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("debit amount must be positive, got %v", amount)
	}

	var card models.GiftCard

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("UPPER(code) = ?", strings.ToUpper(code)).
			First(&card).Error; err != nil {
			return err
		}

		result := tx.Model(&models.GiftCard{}).
			Where("id = ? AND active = ? AND balance >= ?", card.ID, true, amount).
			Updates(map[string]interface{}{
				"balance": gorm.Expr("balance - ?", amount),
				"active":  gorm.Expr("balance - ? > 0", amount),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrInsufficientBalance
		}

		txn := models.GiftCardTransaction{
			GiftCardID: card.ID,
			Amount:     amount,
			Type:       models.GiftCardTxnDebit,
			OrderID:    orderID,
		}
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}

		return tx.
			Preload("Transactions", func(db *gorm.DB) *gorm.DB {
				return db.Order("created_at ASC")
			}).
			First(&card, "id = ?", card.ID).Error
	})
	if err != nil {
		return nil, err
	}

	return &card, nil
}
