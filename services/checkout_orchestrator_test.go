package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gainmode46-star/gainmode-backend/models"
	"github.com/gainmode46-star/gainmode-backend/services"
)

type checkoutFixture struct {
	couponRepo   *mockCouponRepo
	giftCardRepo *mockGiftCardRepo
	orderRepo    *mockOrderRepo
	coupons      services.CouponService
	giftCards    services.GiftCardService
	orders       services.OrderService
	orchestrator *services.CheckoutOrchestrator
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	f := &checkoutFixture{
		couponRepo:   newMockCouponRepo(),
		giftCardRepo: newMockGiftCardRepo(),
		orderRepo:    &mockOrderRepo{},
	}
	idem := newMockIdem()
	sns := &mockSNSPublisher{}
	f.coupons = services.NewCouponService(f.couponRepo, idem, sns, "", logger)
	f.giftCards = services.NewGiftCardService(f.giftCardRepo, sns, "", logger)
	f.orders = services.NewOrderService(f.orderRepo, &mockProducer{}, sns, "", logger)
	f.orchestrator = services.NewCheckoutOrchestrator(f.coupons, f.giftCards, f.orders, idem, logger)
	return f
}

func TestCheckoutHappyPathWithCouponAndGiftCard(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)

	coupon := percentageCoupon("LAUNCH10", 10, 0, 0)
	coupon.UsageLimit = 100
	require.NoError(t, f.couponRepo.Create(ctx, coupon))

	card, svcErr := f.giftCards.Issue(ctx, &models.IssueGiftCardRequest{Amount: 1000})
	require.Nil(t, svcErr)

	req := checkoutRequest()
	req.CouponCode = "LAUNCH10"
	req.GiftCard = &models.GiftCardPayment{Code: card.Code, Amount: 500}

	order, svcErr := f.orchestrator.Checkout(ctx, req, models.RequestContext{Source: "web"}, "key-1")
	require.Nil(t, svcErr)

	// 10% of 5300, rounded
	assert.Equal(t, 530.0, order.Pricing.DiscountAmount)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	require.Len(t, order.Coupons, 1)
	assert.Equal(t, "LAUNCH10", order.Coupons[0].Code)
	assert.Equal(t, 10.0, order.Coupons[0].Value, "snapshot keeps the coupon's own value")
	assert.Equal(t, 530.0, order.Coupons[0].DiscountAmount)
	assert.Equal(t, 500.0, order.Payment.GiftCardAmount)

	assert.Equal(t, 1, coupon.UsedCount)
	assert.Equal(t, 500.0, f.giftCardRepo.cards[card.Code].Balance)
}

func TestCheckoutRejectsNonPositiveGiftCardAmount(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)

	card, svcErr := f.giftCards.Issue(ctx, &models.IssueGiftCardRequest{Amount: 1000})
	require.Nil(t, svcErr)

	for _, amount := range []float64{0, -100} {
		req := checkoutRequest()
		req.GiftCard = &models.GiftCardPayment{Code: card.Code, Amount: amount}

		_, svcErr = f.orchestrator.Checkout(ctx, req, models.RequestContext{}, "")
		require.NotNil(t, svcErr, "amount %v", amount)
		assert.Equal(t, 400, svcErr.StatusCode)
	}

	assert.Empty(t, f.orderRepo.orders, "no order is created for a non-positive tender")
	assert.Equal(t, 1000.0, f.giftCardRepo.cards[card.Code].Balance, "a negative amount must not credit the card")
}

func TestCheckoutIdempotentRetry(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)

	coupon := percentageCoupon("RETRY10", 10, 0, 0)
	require.NoError(t, f.couponRepo.Create(ctx, coupon))

	req := checkoutRequest()
	req.CouponCode = "RETRY10"

	first, svcErr := f.orchestrator.Checkout(ctx, req, models.RequestContext{}, "key-retry")
	require.Nil(t, svcErr)

	second, svcErr := f.orchestrator.Checkout(ctx, req, models.RequestContext{}, "key-retry")
	require.Nil(t, svcErr)

	assert.Equal(t, first.OrderNumber, second.OrderNumber, "a retried key returns the original order")
	assert.Len(t, f.orderRepo.orders, 1)
	assert.Equal(t, 1, coupon.UsedCount)
}

func TestCheckoutRejectsInvalidCoupon(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)

	req := checkoutRequest()
	req.CouponCode = "NOSUCHCODE"

	_, svcErr := f.orchestrator.Checkout(ctx, req, models.RequestContext{}, "")
	require.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
	assert.Equal(t, models.ReasonNotFound, svcErr.Reason)
	assert.Empty(t, f.orderRepo.orders, "no order is created for an invalid coupon")
}

func TestCheckoutRejectsUnderfundedGiftCard(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)

	card, svcErr := f.giftCards.Issue(ctx, &models.IssueGiftCardRequest{Amount: 100})
	require.Nil(t, svcErr)

	req := checkoutRequest()
	req.GiftCard = &models.GiftCardPayment{Code: card.Code, Amount: 500}

	_, svcErr = f.orchestrator.Checkout(ctx, req, models.RequestContext{}, "")
	require.NotNil(t, svcErr)
	assert.Equal(t, models.ReasonInsufficientBalance, svcErr.Reason)
	assert.Empty(t, f.orderRepo.orders)
	assert.Equal(t, 100.0, f.giftCardRepo.cards[card.Code].Balance)
}

// failingGiftCards passes the pre-check but fails at redemption, standing in
// for a balance lost to a concurrent checkout between the two calls.
type failingGiftCards struct {
	services.GiftCardService
}

func (f *failingGiftCards) Redeem(_ context.Context, _ *models.RedeemGiftCardRequest) (*models.RedeemGiftCardResponse, *services.ServiceError) {
	return nil, &services.ServiceError{StatusCode: 400, Reason: models.ReasonInsufficientBalance, Message: "Insufficient gift card balance"}
}

func TestCheckoutRollsBackWhenRedemptionFails(t *testing.T) {
	ctx := context.Background()
	logger, _ := zap.NewDevelopment()

	couponRepo := newMockCouponRepo()
	giftCardRepo := newMockGiftCardRepo()
	orderRepo := &mockOrderRepo{}
	idem := newMockIdem()
	sns := &mockSNSPublisher{}

	coupons := services.NewCouponService(couponRepo, idem, sns, "", logger)
	giftCards := &failingGiftCards{services.NewGiftCardService(giftCardRepo, sns, "", logger)}
	orders := services.NewOrderService(orderRepo, &mockProducer{}, sns, "", logger)
	orchestrator := services.NewCheckoutOrchestrator(coupons, giftCards, orders, idem, logger)

	coupon := percentageCoupon("DOOMED10", 10, 0, 0)
	require.NoError(t, couponRepo.Create(ctx, coupon))

	card, svcErr := services.NewGiftCardService(giftCardRepo, sns, "", logger).
		Issue(ctx, &models.IssueGiftCardRequest{Amount: 1000})
	require.Nil(t, svcErr)

	req := checkoutRequest()
	req.CouponCode = "DOOMED10"
	req.GiftCard = &models.GiftCardPayment{Code: card.Code, Amount: 500}

	_, svcErr = orchestrator.Checkout(ctx, req, models.RequestContext{}, "key-doomed")
	require.NotNil(t, svcErr)
	assert.Equal(t, models.ReasonInsufficientBalance, svcErr.Reason)

	// Compensations ran: coupon usage released, order cancelled.
	assert.Equal(t, 0, coupon.UsedCount)
	require.Len(t, orderRepo.orders, 1)
	assert.Equal(t, models.OrderStatusCancelled, orderRepo.orders[0].Status)

	// The failed attempt did not claim the idempotency key; a corrected
	// retry goes through as a fresh checkout.
	req.GiftCard = nil
	order, svcErr := orchestrator.Checkout(ctx, req, models.RequestContext{}, "key-doomed")
	require.Nil(t, svcErr)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, 1, coupon.UsedCount)
}
