package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gainmode46-star/gainmode-backend/models"
	"github.com/gainmode46-star/gainmode-backend/repository"
	"github.com/gainmode46-star/gainmode-backend/services"
)

// --- Mock Repository ---

type mockCouponRepo struct {
	coupons     map[string]*models.Coupon
	redemptions []models.CouponRedemption
}

func newMockCouponRepo() *mockCouponRepo {
	return &mockCouponRepo{coupons: make(map[string]*models.Coupon)}
}

func (m *mockCouponRepo) Create(_ context.Context, c *models.Coupon) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.coupons[strings.ToUpper(c.Code)] = c
	return nil
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*models.Coupon, error) {
	c, ok := m.coupons[strings.ToUpper(code)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (m *mockCouponRepo) TryIncrementUsage(_ context.Context, code string) (bool, error) {
	c, ok := m.coupons[strings.ToUpper(code)]
	if !ok {
		return false, nil
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return false, nil
	}
	c.UsedCount++
	return true, nil
}

func (m *mockCouponRepo) DecrementUsage(_ context.Context, code string) error {
	if c, ok := m.coupons[strings.ToUpper(code)]; ok && c.UsedCount > 0 {
		c.UsedCount--
	}
	return nil
}

func (m *mockCouponRepo) Deactivate(_ context.Context, code string) error {
	c, ok := m.coupons[strings.ToUpper(code)]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.Active = false
	return nil
}

func (m *mockCouponRepo) FindAll(_ context.Context, _, _ int) ([]models.Coupon, int64, error) {
	var result []models.Coupon
	for _, c := range m.coupons {
		result = append(result, *c)
	}
	return result, int64(len(result)), nil
}

func (m *mockCouponRepo) RecordRedemption(_ context.Context, r *models.CouponRedemption) error {
	m.redemptions = append(m.redemptions, *r)
	return nil
}

func (m *mockCouponRepo) RemoveRedemption(_ context.Context, couponID uuid.UUID, orderNumber string) error {
	kept := m.redemptions[:0]
	for _, r := range m.redemptions {
		if r.CouponID != couponID || r.OrderNumber != orderNumber {
			kept = append(kept, r)
		}
	}
	m.redemptions = kept
	return nil
}

func (m *mockCouponRepo) CountRedemptionsByUser(_ context.Context, couponID uuid.UUID, userID string) (int64, error) {
	var n int64
	for _, r := range m.redemptions {
		if r.CouponID == couponID && r.UserID == userID {
			n++
		}
	}
	return n, nil
}

var _ repository.CouponRepository = (*mockCouponRepo)(nil)

// --- Mock SNS Publisher ---

type mockSNSPublisher struct {
	published [][]byte
}

func (m *mockSNSPublisher) Publish(_ context.Context, _ string, message []byte) error {
	m.published = append(m.published, message)
	return nil
}

// --- Mock Idempotency Guard ---

type mockIdem struct {
	entries map[string]string
}

func newMockIdem() *mockIdem {
	return &mockIdem{entries: make(map[string]string)}
}

func (m *mockIdem) Get(_ context.Context, scope, key string) (string, error) {
	return m.entries[scope+":"+key], nil
}

func (m *mockIdem) SetOnce(_ context.Context, scope, key, value string) (bool, error) {
	if _, exists := m.entries[scope+":"+key]; exists {
		return false, nil
	}
	m.entries[scope+":"+key] = value
	return true, nil
}

func (m *mockIdem) Release(_ context.Context, scope, key string) error {
	delete(m.entries, scope+":"+key)
	return nil
}

// --- Helpers ---

func newTestCouponService(repo repository.CouponRepository) services.CouponService {
	logger, _ := zap.NewDevelopment()
	return services.NewCouponService(repo, newMockIdem(), &mockSNSPublisher{},
		"arn:aws:sns:us-east-1:000000000000:promotion-events", logger)
}

func percentageCoupon(code string, value, minOrder, maxDiscount float64) *models.Coupon {
	return &models.Coupon{
		ID:            uuid.New(),
		Code:          code,
		Type:          models.CouponTypePercentage,
		Value:         value,
		MinOrderValue: minOrder,
		MaxDiscount:   maxDiscount,
		Active:        true,
	}
}

// --- Evaluate ---

func TestEvaluatePercentageDiscountWithCap(t *testing.T) {
	repo := newMockCouponRepo()
	require.NoError(t, repo.Create(context.Background(), percentageCoupon("SUMMER20", 20, 0, 500)))
	svc := newTestCouponService(repo)

	eval, svcErr := svc.Evaluate(context.Background(), "SUMMER20", models.CartContext{Subtotal: 4000})
	require.Nil(t, svcErr)
	assert.True(t, eval.Valid)
	assert.Equal(t, 500.0, eval.DiscountAmount, "cap should clamp 800 down to 500")

	eval, svcErr = svc.Evaluate(context.Background(), "SUMMER20", models.CartContext{Subtotal: 1000})
	require.Nil(t, svcErr)
	assert.Equal(t, 200.0, eval.DiscountAmount)
}

func TestEvaluateRoundsToWholeUnits(t *testing.T) {
	repo := newMockCouponRepo()
	require.NoError(t, repo.Create(context.Background(), percentageCoupon("ODD15", 15, 0, 0)))
	svc := newTestCouponService(repo)

	// 15% of 333 is 49.95, rounded to 50
	eval, svcErr := svc.Evaluate(context.Background(), "ODD15", models.CartContext{Subtotal: 333})
	require.Nil(t, svcErr)
	assert.Equal(t, 50.0, eval.DiscountAmount)
}

func TestEvaluateMinimumOrderBoundary(t *testing.T) {
	repo := newMockCouponRepo()
	require.NoError(t, repo.Create(context.Background(), percentageCoupon("BIG10", 10, 2000, 0)))
	svc := newTestCouponService(repo)

	eval, svcErr := svc.Evaluate(context.Background(), "BIG10", models.CartContext{Subtotal: 1999.99})
	require.Nil(t, svcErr)
	assert.False(t, eval.Valid)
	assert.Equal(t, models.ReasonBelowMinimum, eval.Reason)
	assert.Contains(t, eval.Message, "0.01")

	eval, svcErr = svc.Evaluate(context.Background(), "BIG10", models.CartContext{Subtotal: 2000})
	require.Nil(t, svcErr)
	assert.True(t, eval.Valid, "subtotal equal to the minimum qualifies")
	assert.Equal(t, 200.0, eval.DiscountAmount)
}

func TestEvaluateSave15Scenario(t *testing.T) {
	repo := newMockCouponRepo()
	c := percentageCoupon("SAVE15", 15, 2000, 750)
	require.NoError(t, repo.Create(context.Background(), c))
	svc := newTestCouponService(repo)

	eval, svcErr := svc.Evaluate(context.Background(), "SAVE15", models.CartContext{Subtotal: 3000})
	require.Nil(t, svcErr)
	assert.Equal(t, 450.0, eval.DiscountAmount)
	assert.Equal(t, 15.0, eval.Value, "the percentage itself rides along for snapshots")

	eval, svcErr = svc.Evaluate(context.Background(), "save15", models.CartContext{Subtotal: 6000})
	require.Nil(t, svcErr)
	assert.Equal(t, 750.0, eval.DiscountAmount, "cap should clamp 900 down to 750")
}

func TestEvaluateFixedDiscountCappedAtSubtotal(t *testing.T) {
	repo := newMockCouponRepo()
	require.NoError(t, repo.Create(context.Background(), &models.Coupon{
		ID: uuid.New(), Code: "FLAT500", Type: models.CouponTypeFixed, Value: 500, Active: true,
	}))
	svc := newTestCouponService(repo)

	eval, svcErr := svc.Evaluate(context.Background(), "FLAT500", models.CartContext{Subtotal: 300})
	require.Nil(t, svcErr)
	assert.True(t, eval.Valid)
	assert.Equal(t, 300.0, eval.DiscountAmount, "discount never exceeds the subtotal")
}

func TestEvaluateFreeShipping(t *testing.T) {
	repo := newMockCouponRepo()
	require.NoError(t, repo.Create(context.Background(), &models.Coupon{
		ID: uuid.New(), Code: "SHIPFREE", Type: models.CouponTypeFreeShipping, Active: true,
	}))
	svc := newTestCouponService(repo)

	eval, svcErr := svc.Evaluate(context.Background(), "SHIPFREE", models.CartContext{Subtotal: 100})
	require.Nil(t, svcErr)
	assert.True(t, eval.Valid)
	assert.True(t, eval.FreeShipping)
	assert.Equal(t, 0.0, eval.DiscountAmount)
}

func TestEvaluateRejectionReasons(t *testing.T) {
	ctx := context.Background()
	repo := newMockCouponRepo()
	svc := newTestCouponService(repo)

	past := time.Now().Add(-24 * time.Hour)
	future := time.Now().Add(24 * time.Hour)

	inactive := percentageCoupon("GONE", 10, 0, 0)
	inactive.Active = false
	require.NoError(t, repo.Create(ctx, inactive))

	expired := percentageCoupon("EXPIRED", 10, 0, 0)
	expired.ExpiresAt = &past
	require.NoError(t, repo.Create(ctx, expired))

	notStarted := percentageCoupon("SOON", 10, 0, 0)
	notStarted.StartsAt = &future
	require.NoError(t, repo.Create(ctx, notStarted))

	exhausted := percentageCoupon("USEDUP", 10, 0, 0)
	exhausted.UsageLimit = 5
	exhausted.UsedCount = 5
	require.NoError(t, repo.Create(ctx, exhausted))

	firstOnly := percentageCoupon("WELCOME", 10, 0, 0)
	firstOnly.FirstOrderOnly = true
	require.NoError(t, repo.Create(ctx, firstOnly))

	scoped := percentageCoupon("PROTEIN10", 10, 0, 0)
	scoped.ApplicableProducts = []string{"whey-1kg"}
	require.NoError(t, repo.Create(ctx, scoped))

	cases := []struct {
		code   string
		cart   models.CartContext
		reason string
	}{
		{"MISSING", models.CartContext{Subtotal: 100}, models.ReasonNotFound},
		{"GONE", models.CartContext{Subtotal: 100}, models.ReasonInactive},
		{"EXPIRED", models.CartContext{Subtotal: 100}, models.ReasonExpired},
		{"SOON", models.CartContext{Subtotal: 100}, models.ReasonNotStarted},
		{"USEDUP", models.CartContext{Subtotal: 100}, models.ReasonUsageExhausted},
		{"WELCOME", models.CartContext{Subtotal: 100, IsFirstOrder: false}, models.ReasonFirstOrderOnly},
		{"PROTEIN10", models.CartContext{Subtotal: 100, ProductIDs: []string{"creatine-300g"}}, models.ReasonNotApplicable},
	}

	for _, tc := range cases {
		eval, svcErr := svc.Evaluate(ctx, tc.code, tc.cart)
		require.Nil(t, svcErr, tc.code)
		assert.False(t, eval.Valid, tc.code)
		assert.Equal(t, tc.reason, eval.Reason, tc.code)
	}
}

func TestEvaluateExcludedProductWins(t *testing.T) {
	repo := newMockCouponRepo()
	c := percentageCoupon("NOTFORYOU", 10, 0, 0)
	c.ExcludedProducts = []string{"gift-hamper"}
	require.NoError(t, repo.Create(context.Background(), c))
	svc := newTestCouponService(repo)

	eval, svcErr := svc.Evaluate(context.Background(), "NOTFORYOU",
		models.CartContext{Subtotal: 500, ProductIDs: []string{"whey-1kg", "gift-hamper"}})
	require.Nil(t, svcErr)
	assert.False(t, eval.Valid)
	assert.Equal(t, models.ReasonNotApplicable, eval.Reason)
}

func TestEvaluateUserLimitReached(t *testing.T) {
	ctx := context.Background()
	repo := newMockCouponRepo()
	c := percentageCoupon("ONCEEACH", 10, 0, 0)
	c.UserLimit = 1
	require.NoError(t, repo.Create(ctx, c))
	require.NoError(t, repo.RecordRedemption(ctx, &models.CouponRedemption{
		CouponID: c.ID, UserID: "user-1", OrderNumber: "ORD-1",
	}))
	svc := newTestCouponService(repo)

	eval, svcErr := svc.Evaluate(ctx, "ONCEEACH", models.CartContext{Subtotal: 100, UserID: "user-1"})
	require.Nil(t, svcErr)
	assert.Equal(t, models.ReasonUserLimitReached, eval.Reason)

	eval, svcErr = svc.Evaluate(ctx, "ONCEEACH", models.CartContext{Subtotal: 100, UserID: "user-2"})
	require.Nil(t, svcErr)
	assert.True(t, eval.Valid, "a different user is unaffected")
}

func TestEvaluateHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	repo := newMockCouponRepo()
	c := percentageCoupon("PURE", 10, 0, 0)
	c.UsageLimit = 100
	require.NoError(t, repo.Create(ctx, c))
	svc := newTestCouponService(repo)

	for i := 0; i < 10; i++ {
		eval, svcErr := svc.Evaluate(ctx, "PURE", models.CartContext{Subtotal: 100})
		require.Nil(t, svcErr)
		assert.True(t, eval.Valid)
	}
	assert.Equal(t, 0, c.UsedCount, "evaluation must not consume usage")
}

// --- RecordUsage / ReleaseUsage ---

func TestRecordUsageIncrementsOnce(t *testing.T) {
	ctx := context.Background()
	repo := newMockCouponRepo()
	c := percentageCoupon("TRACKED", 10, 0, 0)
	c.UsageLimit = 10
	require.NoError(t, repo.Create(ctx, c))
	svc := newTestCouponService(repo)

	require.Nil(t, svc.RecordUsage(ctx, "TRACKED", "ORD-100", "user-1", 50))
	assert.Equal(t, 1, c.UsedCount)

	// A retried request for the same order is absorbed by the guard.
	require.Nil(t, svc.RecordUsage(ctx, "TRACKED", "ORD-100", "user-1", 50))
	assert.Equal(t, 1, c.UsedCount)

	require.Nil(t, svc.RecordUsage(ctx, "TRACKED", "ORD-101", "user-1", 50))
	assert.Equal(t, 2, c.UsedCount)
}

func TestRecordUsageRejectsWhenExhausted(t *testing.T) {
	ctx := context.Background()
	repo := newMockCouponRepo()
	c := percentageCoupon("LASTONE", 10, 0, 0)
	c.UsageLimit = 1
	c.UsedCount = 1
	require.NoError(t, repo.Create(ctx, c))
	svc := newTestCouponService(repo)

	svcErr := svc.RecordUsage(ctx, "LASTONE", "ORD-200", "user-1", 10)
	require.NotNil(t, svcErr)
	assert.Equal(t, 409, svcErr.StatusCode)
	assert.Equal(t, models.ReasonUsageExhausted, svcErr.Reason)
	assert.Equal(t, 1, c.UsedCount)
}

func TestReleaseUsageRestoresCount(t *testing.T) {
	ctx := context.Background()
	repo := newMockCouponRepo()
	c := percentageCoupon("ROLLBACK", 10, 0, 0)
	c.UserLimit = 1
	require.NoError(t, repo.Create(ctx, c))
	svc := newTestCouponService(repo)

	require.Nil(t, svc.RecordUsage(ctx, "ROLLBACK", "ORD-300", "user-1", 25))
	assert.Equal(t, 1, c.UsedCount)
	assert.Len(t, repo.redemptions, 1)

	require.NoError(t, svc.ReleaseUsage(ctx, "ROLLBACK", "ORD-300"))
	assert.Equal(t, 0, c.UsedCount)
	assert.Empty(t, repo.redemptions)

	// The same order can record again after a release.
	require.Nil(t, svc.RecordUsage(ctx, "ROLLBACK", "ORD-300", "user-1", 25))
	assert.Equal(t, 1, c.UsedCount)
}

// --- CreateCoupon ---

func TestCreateCouponNormalizesAndValidates(t *testing.T) {
	ctx := context.Background()
	repo := newMockCouponRepo()
	svc := newTestCouponService(repo)

	coupon, svcErr := svc.CreateCoupon(ctx, &models.CreateCouponRequest{
		Code: "newyear25", Type: models.CouponTypePercentage, Value: 25,
	})
	require.Nil(t, svcErr)
	assert.Equal(t, "NEWYEAR25", coupon.Code)
	assert.True(t, coupon.Active)

	_, svcErr = svc.CreateCoupon(ctx, &models.CreateCouponRequest{
		Code: "TOOMUCH", Type: models.CouponTypePercentage, Value: 150,
	})
	require.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)

	past := time.Now().Add(-time.Hour)
	_, svcErr = svc.CreateCoupon(ctx, &models.CreateCouponRequest{
		Code: "OLD", Type: models.CouponTypeFixed, Value: 10, ExpiresAt: &past,
	})
	require.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
}
