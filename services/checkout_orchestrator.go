package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/gainmode46-star/gainmode-backend/models"
)

// compensation is one rollback step recorded after a checkout step commits.
type compensation struct {
	name string
	fn   func(ctx context.Context) error
}

// CheckoutOrchestrator sequences the checkout steps — evaluate coupon,
// validate gift card, create order, record coupon usage, redeem gift card —
// and keeps a step log of compensating actions so a failure partway does not
// leave committed state behind. The store offers no multi-document
// transactions, so compensation is best-effort: a rollback that itself fails
// is logged and left for reconciliation.
type CheckoutOrchestrator struct {
	coupons   CouponService
	giftCards GiftCardService
	orders    OrderService
	idem      IdempotencyGuard
	logger    *zap.Logger
}

// NewCheckoutOrchestrator creates a new CheckoutOrchestrator.
func NewCheckoutOrchestrator(
	coupons CouponService,
	giftCards GiftCardService,
	orders OrderService,
	idem IdempotencyGuard,
	logger *zap.Logger,
) *CheckoutOrchestrator {
	return &CheckoutOrchestrator{
		coupons:   coupons,
		giftCards: giftCards,
		orders:    orders,
		idem:      idem,
		logger:    logger,
	}
}

// Checkout runs the full checkout sequence and returns the persisted order.
// When the client supplies an idempotency key, a retried request returns the
// order created by the first attempt instead of creating a second one.
func (o *CheckoutOrchestrator) Checkout(ctx context.Context, req *models.CheckoutRequest, reqCtx models.RequestContext, idemKey string) (*models.Order, *ServiceError) {
	if idemKey != "" && o.idem != nil {
		if existing, err := o.idem.Get(ctx, "checkout", idemKey); err == nil && existing != "" {
			o.logger.Info("Duplicate checkout request",
				zap.String("idempotency_key", idemKey),
				zap.String("order_number", existing),
			)
			return o.orders.GetByNumber(ctx, existing)
		}
	}

	var subtotal float64
	productIDs := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		subtotal += it.Price * float64(it.Quantity)
		productIDs = append(productIDs, it.ProductID)
	}

	// Step 1: evaluate coupon (pure; consumes no usage yet).
	pricing := PricingInput{}
	if req.CouponCode != "" {
		cart := models.CartContext{
			Subtotal:     subtotal,
			UserID:       req.UserID,
			ProductIDs:   productIDs,
			IsFirstOrder: o.isFirstOrder(ctx, req.UserID),
		}
		eval, svcErr := o.coupons.Evaluate(ctx, req.CouponCode, cart)
		if svcErr != nil {
			return nil, svcErr
		}
		if !eval.Valid {
			return nil, &ServiceError{StatusCode: 400, Reason: eval.Reason, Message: eval.Message}
		}
		pricing.DiscountAmount = eval.DiscountAmount
		pricing.FreeShipping = eval.FreeShipping
		pricing.Coupons = []models.CouponSnapshot{
			{
				Code:           eval.Code,
				Type:           eval.Type,
				Value:          eval.Value,
				DiscountAmount: eval.DiscountAmount,
			},
		}
	}

	// Step 2: validate gift card before committing anything.
	if req.GiftCard != nil && req.GiftCard.Code != "" {
		if req.GiftCard.Amount <= 0 {
			return nil, &ServiceError{StatusCode: 400, Message: "Gift card amount must be positive"}
		}
		card, svcErr := o.giftCards.Validate(ctx, req.GiftCard.Code)
		if svcErr != nil {
			return nil, svcErr
		}
		if card.Balance < req.GiftCard.Amount {
			return nil, &ServiceError{StatusCode: 400, Reason: models.ReasonInsufficientBalance, Message: "Insufficient gift card balance"}
		}
		pricing.GiftCardAmount = req.GiftCard.Amount
	}

	// Step 3: assemble and persist the order.
	order := o.orders.Assemble(req, reqCtx, pricing)
	if svcErr := o.orders.CreateOrder(ctx, order); svcErr != nil {
		return nil, svcErr
	}

	steps := []compensation{
		{
			name: "cancel_order",
			fn: func(ctx context.Context) error {
				_, svcErr := o.orders.UpdateStatus(ctx, order.OrderNumber, &models.UpdateOrderStatusRequest{
					Status:      models.OrderStatusCancelled,
					Description: "Checkout failed after order creation",
				})
				if svcErr != nil {
					return svcErr
				}
				return nil
			},
		},
	}

	// Step 4: record coupon usage.
	if req.CouponCode != "" {
		if svcErr := o.coupons.RecordUsage(ctx, req.CouponCode, order.OrderNumber, req.UserID, pricing.DiscountAmount); svcErr != nil {
			o.rollback(ctx, order.OrderNumber, steps)
			return nil, svcErr
		}
		steps = append(steps, compensation{
			name: "release_coupon_usage",
			fn: func(ctx context.Context) error {
				return o.coupons.ReleaseUsage(ctx, req.CouponCode, order.OrderNumber)
			},
		})
	}

	// Step 5: redeem the gift card, the final committed step.
	if req.GiftCard != nil && req.GiftCard.Code != "" {
		_, svcErr := o.giftCards.Redeem(ctx, &models.RedeemGiftCardRequest{
			Code:    req.GiftCard.Code,
			Amount:  req.GiftCard.Amount,
			OrderID: order.OrderNumber,
		})
		if svcErr != nil {
			o.rollback(ctx, order.OrderNumber, steps)
			return nil, svcErr
		}
	}

	if idemKey != "" && o.idem != nil {
		if _, err := o.idem.SetOnce(ctx, "checkout", idemKey, order.OrderNumber); err != nil {
			o.logger.Warn("Failed to store checkout idempotency key", zap.Error(err))
		}
	}

	return order, nil
}

// rollback runs the recorded compensations in reverse order.
func (o *CheckoutOrchestrator) rollback(ctx context.Context, orderNumber string, steps []compensation) {
	for i := len(steps) - 1; i >= 0; i-- {
		if err := steps[i].fn(ctx); err != nil {
			o.logger.Error("Checkout compensation failed",
				zap.String("order_number", orderNumber),
				zap.String("step", steps[i].name),
				zap.Error(err),
			)
		}
	}
}

func (o *CheckoutOrchestrator) isFirstOrder(ctx context.Context, userID string) bool {
	if userID == "" {
		return false
	}
	orders, svcErr := o.orders.GetUserOrders(ctx, userID)
	if svcErr != nil {
		return false
	}
	return len(orders) == 0
}
