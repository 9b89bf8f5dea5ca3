package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gainmode46-star/gainmode-backend/models"
)

// CouponRepository defines the interface for coupon data access.
type CouponRepository interface {
	Create(ctx context.Context, coupon *models.Coupon) error
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	// TryIncrementUsage atomically increments used_count, refusing when the
	// usage limit is already reached. Returns false when no row qualified.
	TryIncrementUsage(ctx context.Context, code string) (bool, error)
	DecrementUsage(ctx context.Context, code string) error
	Deactivate(ctx context.Context, code string) error
	FindAll(ctx context.Context, page, limit int) ([]models.Coupon, int64, error)

	RecordRedemption(ctx context.Context, redemption *models.CouponRedemption) error
	RemoveRedemption(ctx context.Context, couponID uuid.UUID, orderNumber string) error
	CountRedemptionsByUser(ctx context.Context, couponID uuid.UUID, userID string) (int64, error)
}

// GormCouponRepository implements CouponRepository using GORM.
type GormCouponRepository struct {
	db *gorm.DB
}

// NewGormCouponRepository creates a new GormCouponRepository.
func NewGormCouponRepository(db *gorm.DB) CouponRepository {
	return &GormCouponRepository{db: db}
}

// Create inserts a new coupon into the database.
func (r *GormCouponRepository) Create(ctx context.Context, coupon *models.Coupon) error {
	return r.db.WithContext(ctx).Create(coupon).Error
}

// FindByCode retrieves a coupon by its code (case-insensitive). Inactive
// coupons are returned too; the evaluator reports inactive as its own reason.
func (r *GormCouponRepository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		Where("UPPER(code) = ?", strings.ToUpper(code)).
		First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// TryIncrementUsage performs the check-and-increment as one conditional
// update so two concurrent redemptions cannot both pass the limit check.
func (r *GormCouponRepository) TryIncrementUsage(ctx context.Context, code string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("UPPER(code) = ? AND (usage_limit = 0 OR used_count < usage_limit)", strings.ToUpper(code)).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DecrementUsage compensates a recorded use when a later checkout step fails.
func (r *GormCouponRepository) DecrementUsage(ctx context.Context, code string) error {
	return r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("UPPER(code) = ? AND used_count > 0", strings.ToUpper(code)).
		UpdateColumn("used_count", gorm.Expr("used_count - 1")).
		Error
}

// Deactivate sets active = false for a coupon.
func (r *GormCouponRepository) Deactivate(ctx context.Context, code string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("UPPER(code) = ?", strings.ToUpper(code)).
		Update("active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindAll retrieves paginated coupons.
func (r *GormCouponRepository) FindAll(ctx context.Context, page, limit int) ([]models.Coupon, int64, error) {
	var coupons []models.Coupon
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Coupon{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&coupons).Error; err != nil {
		return nil, 0, err
	}

	return coupons, total, nil
}

// RecordRedemption appends one per-user redemption row.
func (r *GormCouponRepository) RecordRedemption(ctx context.Context, redemption *models.CouponRedemption) error {
	return r.db.WithContext(ctx).Create(redemption).Error
}

// RemoveRedemption deletes the redemption row for a rolled-back order.
func (r *GormCouponRepository) RemoveRedemption(ctx context.Context, couponID uuid.UUID, orderNumber string) error {
	return r.db.WithContext(ctx).
		Where("coupon_id = ? AND order_number = ?", couponID, orderNumber).
		Delete(&models.CouponRedemption{}).
		Error
}

// CountRedemptionsByUser counts how many times a user has used a coupon.
func (r *GormCouponRepository) CountRedemptionsByUser(ctx context.Context, couponID uuid.UUID, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CouponRedemption{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&count).Error
	return count, err
}
