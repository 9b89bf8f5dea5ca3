package services

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gainmode46-star/gainmode-backend/models"
	aws_pkg "github.com/gainmode46-star/gainmode-backend/pkg/aws"
	"github.com/gainmode46-star/gainmode-backend/repository"
)

const giftCardAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// maxCodeAttempts bounds the retry loop when a generated code collides with
// an existing one.
const maxCodeAttempts = 5

// GiftCardService defines the interface for gift card business logic.
// Redemption drains the balance; a card deactivates itself the moment the
// balance reaches zero and cannot be reactivated.
type GiftCardService interface {
	Issue(ctx context.Context, req *models.IssueGiftCardRequest) (*models.GiftCard, *ServiceError)
	Redeem(ctx context.Context, req *models.RedeemGiftCardRequest) (*models.RedeemGiftCardResponse, *ServiceError)
	Validate(ctx context.Context, code string) (*models.GiftCard, *ServiceError)
}

type giftCardServiceImpl struct {
	repo        repository.GiftCardRepository
	snsClient   aws_pkg.SNSPublisher
	snsTopicArn string
	logger      *zap.Logger
}

// NewGiftCardService creates a new GiftCardService.
func NewGiftCardService(
	repo repository.GiftCardRepository,
	snsClient aws_pkg.SNSPublisher,
	snsTopicArn string,
	logger *zap.Logger,
) GiftCardService {
	return &giftCardServiceImpl{
		repo:        repo,
		snsClient:   snsClient,
		snsTopicArn: snsTopicArn,
		logger:      logger,
	}
}

// Issue opens a new balance-bearing card with a fresh unique code.
func (s *giftCardServiceImpl) Issue(ctx context.Context, req *models.IssueGiftCardRequest) (*models.GiftCard, *ServiceError) {
	if req.Amount <= 0 {
		return nil, &ServiceError{StatusCode: 400, Message: "Gift card amount must be positive"}
	}
	if req.ExpiresAt != nil && req.ExpiresAt.Before(time.Now()) {
		return nil, &ServiceError{StatusCode: 400, Reason: models.ReasonExpired, Message: "Expiry date must be in the future"}
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateGiftCardCode()
		if err != nil {
			s.logger.Error("Failed to generate gift card code", zap.Error(err))
			return nil, &ServiceError{StatusCode: 500, Message: "Failed to issue gift card"}
		}

		card := &models.GiftCard{
			Code:      code,
			Amount:    req.Amount,
			Balance:   req.Amount,
			Active:    true,
			ExpiresAt: req.ExpiresAt,
		}

		err = s.repo.Create(ctx, card)
		if err == nil {
			s.logger.Info("Gift card issued",
				zap.String("code", card.Code),
				zap.Float64("amount", card.Amount),
			)
			return card, nil
		}

		if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "unique") {
			s.logger.Warn("Gift card code collision, retrying", zap.Int("attempt", attempt+1))
			continue
		}

		s.logger.Error("Failed to persist gift card", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to issue gift card"}
	}

	return nil, &ServiceError{StatusCode: 500, Message: "Failed to issue gift card"}
}

// Redeem debits a card. Checks run in a fixed order so each failure surfaces
// as its own reason: exists, active, sufficient balance, not expired.
func (s *giftCardServiceImpl) Redeem(ctx context.Context, req *models.RedeemGiftCardRequest) (*models.RedeemGiftCardResponse, *ServiceError) {
	if req.Amount <= 0 {
		return nil, &ServiceError{StatusCode: 400, Message: "Redemption amount must be positive"}
	}

	card, err := s.repo.FindByCode(ctx, req.Code)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &ServiceError{StatusCode: 404, Reason: models.ReasonNotFound, Message: "Gift card not found"}
		}
		s.logger.Error("Gift card lookup failed", zap.String("code", req.Code), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to look up gift card"}
	}

	if !card.Active {
		return nil, &ServiceError{StatusCode: 400, Reason: models.ReasonInactive, Message: "This gift card is no longer active"}
	}
	if card.Balance < req.Amount {
		return nil, &ServiceError{StatusCode: 400, Reason: models.ReasonInsufficientBalance, Message: "Insufficient gift card balance"}
	}
	if card.ExpiresAt != nil && card.ExpiresAt.Before(time.Now()) {
		return nil, &ServiceError{StatusCode: 400, Reason: models.ReasonExpired, Message: "This gift card has expired"}
	}

	debited, err := s.repo.Debit(ctx, req.Code, req.Amount, req.OrderID)
	if err != nil {
		if err == repository.ErrInsufficientBalance {
			// a concurrent redemption won the balance
			return nil, &ServiceError{StatusCode: 400, Reason: models.ReasonInsufficientBalance, Message: "Insufficient gift card balance"}
		}
		s.logger.Error("Gift card debit failed", zap.String("code", req.Code), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to redeem gift card"}
	}

	s.logger.Info("Gift card redeemed",
		zap.String("code", debited.Code),
		zap.Float64("amount", req.Amount),
		zap.Float64("remaining", debited.Balance),
	)

	s.publishRedeemedEvent(ctx, debited, req.Amount, req.OrderID)

	return &models.RedeemGiftCardResponse{
		Success:          true,
		Code:             debited.Code,
		RedeemedAmount:   req.Amount,
		RemainingBalance: debited.Balance,
	}, nil
}

// Validate is a read-only eligibility and balance check used by the cart UI.
func (s *giftCardServiceImpl) Validate(ctx context.Context, code string) (*models.GiftCard, *ServiceError) {
	if len(code) != models.GiftCardCodeLength {
		return nil, &ServiceError{StatusCode: 400, Message: "Gift card code must be 12 characters"}
	}

	card, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &ServiceError{StatusCode: 404, Reason: models.ReasonNotFound, Message: "Gift card not found"}
		}
		s.logger.Error("Gift card lookup failed", zap.String("code", code), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to look up gift card"}
	}

	if !card.Active {
		return nil, &ServiceError{StatusCode: 400, Reason: models.ReasonInactive, Message: "This gift card has already been used"}
	}
	if card.ExpiresAt != nil && card.ExpiresAt.Before(time.Now()) {
		return nil, &ServiceError{StatusCode: 400, Reason: models.ReasonExpired, Message: "This gift card has expired"}
	}

	return card, nil
}

// generateGiftCardCode draws 12 characters uniformly from [0-9A-Z].
func generateGiftCardCode() (string, error) {
	buf := make([]byte, models.GiftCardCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := make([]byte, models.GiftCardCodeLength)
	for i, b := range buf {
		code[i] = giftCardAlphabet[int(b)%len(giftCardAlphabet)]
	}
	return string(code), nil
}

func (s *giftCardServiceImpl) publishRedeemedEvent(ctx context.Context, card *models.GiftCard, amount float64, orderID string) {
	if s.snsClient == nil || s.snsTopicArn == "" {
		return
	}

	event := models.GiftCardRedeemedEvent{
		EventType:        "gift_card_redeemed",
		Code:             card.Code,
		RedeemedAmount:   amount,
		RemainingBalance: card.Balance,
		OrderID:          orderID,
		Timestamp:        time.Now(),
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal gift_card_redeemed event", zap.Error(err))
		return
	}

	if err := s.snsClient.Publish(ctx, s.snsTopicArn, eventBytes); err != nil {
		s.logger.Error("Failed to publish gift_card_redeemed event", zap.Error(err))
	}
}
