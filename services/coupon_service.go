package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gainmode46-star/gainmode-backend/models"
	aws_pkg "github.com/gainmode46-star/gainmode-backend/pkg/aws"
	"github.com/gainmode46-star/gainmode-backend/repository"
)

// CouponService defines the interface for coupon business logic. Evaluate is
// a pure query; RecordUsage is the separate commit step a checkout triggers
// once, so re-typing a code in the cart never consumes usage.
type CouponService interface {
	CreateCoupon(ctx context.Context, req *models.CreateCouponRequest) (*models.Coupon, *ServiceError)
	Evaluate(ctx context.Context, code string, cart models.CartContext) (*models.Evaluation, *ServiceError)
	RecordUsage(ctx context.Context, code, orderNumber, userID string, discount float64) *ServiceError
	ReleaseUsage(ctx context.Context, code, orderNumber string) error
	GetCoupon(ctx context.Context, code string) (*models.Coupon, *ServiceError)
	DeactivateCoupon(ctx context.Context, code string) *ServiceError
	ListCoupons(ctx context.Context, page, limit int) ([]models.Coupon, int64, *ServiceError)
}

type couponServiceImpl struct {
	repo        repository.CouponRepository
	idem        IdempotencyGuard
	snsClient   aws_pkg.SNSPublisher
	snsTopicArn string
	logger      *zap.Logger
}

// NewCouponService creates a new CouponService.
func NewCouponService(
	repo repository.CouponRepository,
	idem IdempotencyGuard,
	snsClient aws_pkg.SNSPublisher,
	snsTopicArn string,
	logger *zap.Logger,
) CouponService {
	return &couponServiceImpl{
		repo:        repo,
		idem:        idem,
		snsClient:   snsClient,
		snsTopicArn: snsTopicArn,
		logger:      logger,
	}
}

// CreateCoupon creates a new coupon.
func (s *couponServiceImpl) CreateCoupon(ctx context.Context, req *models.CreateCouponRequest) (*models.Coupon, *ServiceError) {
	if req.ExpiresAt != nil && req.ExpiresAt.Before(time.Now()) {
		return nil, &ServiceError{StatusCode: 400, Reason: models.ReasonExpired, Message: "Expiry date must be in the future"}
	}
	if req.Type == models.CouponTypePercentage && req.Value > 100 {
		return nil, &ServiceError{StatusCode: 400, Message: "Percentage discount cannot exceed 100"}
	}
	if req.Type != models.CouponTypeFreeShipping && req.Value <= 0 {
		return nil, &ServiceError{StatusCode: 400, Message: "Discount value must be positive"}
	}

	coupon := &models.Coupon{
		Code:                 strings.ToUpper(req.Code),
		Type:                 req.Type,
		Value:                req.Value,
		MinOrderValue:        req.MinOrderValue,
		MaxDiscount:          req.MaxDiscount,
		UsageLimit:           req.UsageLimit,
		UserLimit:            req.UserLimit,
		ApplicableProducts:   req.ApplicableProducts,
		ExcludedProducts:     req.ExcludedProducts,
		ApplicableCategories: req.ApplicableCategories,
		FirstOrderOnly:       req.FirstOrderOnly,
		ShowOnCart:           req.ShowOnCart,
		StartsAt:             req.StartsAt,
		ExpiresAt:            req.ExpiresAt,
		Active:               true,
	}
	if coupon.Type == models.CouponTypeFreeShipping {
		coupon.Value = 0
	}

	if err := s.repo.Create(ctx, coupon); err != nil {
		if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "unique") {
			return nil, &ServiceError{StatusCode: 409, Message: "Coupon code already exists"}
		}
		s.logger.Error("Failed to create coupon", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to create coupon"}
	}

	s.logger.Info("Coupon created", zap.String("code", coupon.Code), zap.String("type", string(coupon.Type)))
	return coupon, nil
}

// Evaluate decides eligibility and computes the discount for a cart. The
// first failing check wins and is reported as its own reason. No state is
// mutated here.
func (s *couponServiceImpl) Evaluate(ctx context.Context, code string, cart models.CartContext) (*models.Evaluation, *ServiceError) {
	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return rejected(code, models.ReasonNotFound, "Coupon not found"), nil
		}
		s.logger.Error("Coupon lookup failed", zap.String("code", code), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to look up coupon"}
	}

	now := time.Now()

	if !coupon.Active {
		return rejected(coupon.Code, models.ReasonInactive, "This coupon is no longer active"), nil
	}
	if coupon.StartsAt != nil && now.Before(*coupon.StartsAt) {
		return rejected(coupon.Code, models.ReasonNotStarted, "This coupon is not active yet"), nil
	}
	if coupon.ExpiresAt != nil && now.After(*coupon.ExpiresAt) {
		return rejected(coupon.Code, models.ReasonExpired, "This coupon has expired"), nil
	}
	if cart.Subtotal < coupon.MinOrderValue {
		shortfall := coupon.MinOrderValue - cart.Subtotal
		return rejected(coupon.Code, models.ReasonBelowMinimum,
			fmt.Sprintf("Add %.2f more to use this coupon", shortfall)), nil
	}
	if coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit {
		return rejected(coupon.Code, models.ReasonUsageExhausted, "This coupon has reached its usage limit"), nil
	}
	if coupon.UserLimit > 0 && cart.UserID != "" {
		used, err := s.repo.CountRedemptionsByUser(ctx, coupon.ID, cart.UserID)
		if err != nil {
			s.logger.Error("Redemption count failed", zap.String("code", coupon.Code), zap.Error(err))
			return nil, &ServiceError{StatusCode: 500, Message: "Failed to look up coupon usage"}
		}
		if used >= int64(coupon.UserLimit) {
			return rejected(coupon.Code, models.ReasonUserLimitReached, "You have already used this coupon"), nil
		}
	}
	if coupon.FirstOrderOnly && !cart.IsFirstOrder {
		return rejected(coupon.Code, models.ReasonFirstOrderOnly, "This coupon is for first orders only"), nil
	}
	if !scopeAllows(coupon, cart) {
		return rejected(coupon.Code, models.ReasonNotApplicable, "This coupon does not apply to the items in your cart"), nil
	}

	eval := &models.Evaluation{
		Valid:   true,
		Code:    coupon.Code,
		Type:    coupon.Type,
		Value:   coupon.Value,
		Message: "Coupon applied successfully",
	}

	switch coupon.Type {
	case models.CouponTypePercentage:
		discount := cart.Subtotal * coupon.Value / 100
		if coupon.MaxDiscount > 0 && discount > coupon.MaxDiscount {
			discount = coupon.MaxDiscount
		}
		// whole currency units
		eval.DiscountAmount = math.Round(discount)
	case models.CouponTypeFixed:
		discount := coupon.Value
		if discount > cart.Subtotal {
			discount = cart.Subtotal
		}
		eval.DiscountAmount = discount
	case models.CouponTypeFreeShipping:
		eval.FreeShipping = true
	default:
		return nil, &ServiceError{StatusCode: 500, Message: "Unknown coupon type"}
	}

	return eval, nil
}

// RecordUsage commits one use of a coupon for a completed order. The Redis
// guard makes a retried request a no-op, and the conditional increment keeps
// two concurrent checkouts from both passing the limit check.
func (s *couponServiceImpl) RecordUsage(ctx context.Context, code, orderNumber, userID string, discount float64) *ServiceError {
	code = strings.ToUpper(code)

	if s.idem != nil {
		claimed, err := s.idem.SetOnce(ctx, "coupon", orderNumber+":"+code, "recorded")
		if err != nil {
			s.logger.Warn("Idempotency check failed, proceeding", zap.Error(err))
		} else if !claimed {
			s.logger.Info("Coupon usage already recorded",
				zap.String("code", code), zap.String("order_number", orderNumber))
			return nil
		}
	}

	ok, err := s.repo.TryIncrementUsage(ctx, code)
	if err != nil {
		s.logger.Error("Failed to increment coupon usage", zap.String("code", code), zap.Error(err))
		return &ServiceError{StatusCode: 500, Message: "Failed to apply coupon"}
	}
	if !ok {
		return &ServiceError{StatusCode: 409, Reason: models.ReasonUsageExhausted, Message: "This coupon has reached its usage limit"}
	}

	coupon, ferr := s.repo.FindByCode(ctx, code)
	if ferr != nil {
		s.logger.Error("Coupon vanished after increment", zap.String("code", code), zap.Error(ferr))
		return &ServiceError{StatusCode: 500, Message: "Failed to apply coupon"}
	}

	if userID != "" {
		if err := s.repo.RecordRedemption(ctx, &models.CouponRedemption{
			CouponID:    coupon.ID,
			UserID:      userID,
			OrderNumber: orderNumber,
		}); err != nil {
			s.logger.Error("Failed to record coupon redemption", zap.String("code", code), zap.Error(err))
		}
	}

	s.publishCouponAppliedEvent(ctx, coupon, orderNumber, userID, discount)
	return nil
}

// ReleaseUsage compensates RecordUsage when a later checkout step fails.
func (s *couponServiceImpl) ReleaseUsage(ctx context.Context, code, orderNumber string) error {
	code = strings.ToUpper(code)

	if err := s.repo.DecrementUsage(ctx, code); err != nil {
		return err
	}
	if coupon, err := s.repo.FindByCode(ctx, code); err == nil {
		_ = s.repo.RemoveRedemption(ctx, coupon.ID, orderNumber)
	}
	if s.idem != nil {
		_ = s.idem.Release(ctx, "coupon", orderNumber+":"+code)
	}
	return nil
}

// GetCoupon retrieves a coupon by code.
func (s *couponServiceImpl) GetCoupon(ctx context.Context, code string) (*models.Coupon, *ServiceError) {
	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, &ServiceError{StatusCode: 404, Reason: models.ReasonNotFound, Message: "Coupon not found"}
	}
	return coupon, nil
}

// DeactivateCoupon deactivates a coupon by code.
func (s *couponServiceImpl) DeactivateCoupon(ctx context.Context, code string) *ServiceError {
	if err := s.repo.Deactivate(ctx, code); err != nil {
		if err == gorm.ErrRecordNotFound {
			return &ServiceError{StatusCode: 404, Reason: models.ReasonNotFound, Message: "Coupon not found"}
		}
		s.logger.Error("Failed to deactivate coupon", zap.String("code", code), zap.Error(err))
		return &ServiceError{StatusCode: 500, Message: "Failed to deactivate coupon"}
	}

	s.logger.Info("Coupon deactivated", zap.String("code", code))
	return nil
}

// ListCoupons returns paginated coupons.
func (s *couponServiceImpl) ListCoupons(ctx context.Context, page, limit int) ([]models.Coupon, int64, *ServiceError) {
	coupons, total, err := s.repo.FindAll(ctx, page, limit)
	if err != nil {
		s.logger.Error("Failed to list coupons", zap.Error(err))
		return nil, 0, &ServiceError{StatusCode: 500, Message: "Failed to list coupons"}
	}
	return coupons, total, nil
}

func rejected(code, reason, message string) *models.Evaluation {
	return &models.Evaluation{
		Valid:   false,
		Code:    strings.ToUpper(code),
		Reason:  reason,
		Message: message,
	}
}

// scopeAllows checks the optional product/category scoping lists. Empty
// lists mean the coupon applies store-wide. Scoping is only decidable when
// the cart context carries item IDs.
func scopeAllows(coupon *models.Coupon, cart models.CartContext) bool {
	for _, excluded := range coupon.ExcludedProducts {
		for _, pid := range cart.ProductIDs {
			if pid == excluded {
				return false
			}
		}
	}

	if len(coupon.ApplicableProducts) > 0 {
		if !intersects(coupon.ApplicableProducts, cart.ProductIDs) {
			return false
		}
	}
	if len(coupon.ApplicableCategories) > 0 && len(cart.CategoryIDs) > 0 {
		if !intersects(coupon.ApplicableCategories, cart.CategoryIDs) {
			return false
		}
	}
	return true
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func (s *couponServiceImpl) publishCouponAppliedEvent(ctx context.Context, coupon *models.Coupon, orderNumber, userID string, discount float64) {
	if s.snsClient == nil || s.snsTopicArn == "" {
		return
	}

	event := models.CouponAppliedEvent{
		EventType:      "coupon_applied",
		CouponID:       coupon.ID.String(),
		CouponCode:     coupon.Code,
		CouponType:     string(coupon.Type),
		DiscountAmount: discount,
		OrderNumber:    orderNumber,
		UserID:         userID,
		Timestamp:      time.Now(),
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal coupon_applied event", zap.Error(err))
		return
	}

	if err := s.snsClient.Publish(ctx, s.snsTopicArn, eventBytes); err != nil {
		s.logger.Error("Failed to publish coupon_applied event", zap.Error(err))
		return
	}

	s.logger.Info("Published coupon_applied event",
		zap.String("coupon_code", coupon.Code),
		zap.String("order_number", orderNumber),
	)
}
