package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/gainmode46-star/gainmode-backend/models"
)

// StatusUpdate is one status transition applied to an order. The timeline
// entry it carries is appended in the same transaction.
type StatusUpdate struct {
	Status         string
	Title          string
	Description    string
	Location       string
	TrackingNumber string
	Carrier        string
	ActualDelivery *time.Time
}

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	// FindByNumberOrEmail matches the query against order numbers and
	// customer emails; on an email match the most recent order wins.
	FindByNumberOrEmail(ctx context.Context, query string) (*models.Order, error)
	FindByUserID(ctx context.Context, userID string, limit int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderNumber string, update StatusUpdate) (*models.Order, error)
}

// GormOrderRepository implements OrderRepository using GORM.
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository.
func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

func withAssociations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items").
		Preload("Timeline", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		})
}

// Create persists a new order with its items and seeded timeline.
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByNumber retrieves a single order by its order number.
func (r *GormOrderRepository) FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := withAssociations(r.db.WithContext(ctx)).
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByNumberOrEmail looks up an order by exact order number or customer
// email. Multiple email matches resolve to the most recently created order.
func (r *GormOrderRepository) FindByNumberOrEmail(ctx context.Context, query string) (*models.Order, error) {
	var order models.Order
	err := withAssociations(r.db.WithContext(ctx)).
		Where("order_number = ? OR LOWER(customer_email) = ?", query, strings.ToLower(query)).
		Order("created_at DESC").
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByUserID retrieves a user's orders, newest first, capped at limit.
func (r *GormOrderRepository) FindByUserID(ctx context.Context, userID string, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := withAssociations(r.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus sets the new status and appends the timeline entry in one
// transaction, then returns the refreshed order.
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, orderNumber string, update StatusUpdate) (*models.Order, error) {
	var order models.Order

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("order_number = ?", orderNumber).
			First(&order).Error; err != nil {
			return err
		}

		fields := map[string]interface{}{"status": update.Status}
		if update.TrackingNumber != "" {
			fields["delivery_tracking_number"] = update.TrackingNumber
		}
		if update.Carrier != "" {
			fields["delivery_carrier"] = update.Carrier
		}
		if update.ActualDelivery != nil {
			fields["delivery_actual_delivery"] = *update.ActualDelivery
		}
		if err := tx.Model(&order).Updates(fields).Error; err != nil {
			return err
		}

		entry := models.TimelineEntry{
			OrderID:     order.ID,
			Status:      update.Status,
			Title:       update.Title,
			Description: update.Description,
			Location:    update.Location,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		return withAssociations(tx).First(&order, "id = ?", order.ID).Error
	})
	if err != nil {
		return nil, err
	}

	return &order, nil
}
