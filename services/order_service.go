package services

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gainmode46-star/gainmode-backend/kafka"
	"github.com/gainmode46-star/gainmode-backend/models"
	aws_pkg "github.com/gainmode46-star/gainmode-backend/pkg/aws"
	"github.com/gainmode46-star/gainmode-backend/repository"
)

// defaultCountry is stamped on shipping addresses that omit one.
const defaultCountry = "India"

// maxOrderHistory caps how many orders a user-history query returns.
const maxOrderHistory = 100

// deliveryDays maps a delivery method to its default estimate.
var deliveryDays = map[string]int{
	models.DeliveryMethodStandard:  7,
	models.DeliveryMethodExpress:   3,
	models.DeliveryMethodOvernight: 1,
}

// statusTitles are the human timeline titles per status.
var statusTitles = map[string]string{
	models.TimelineStatusOrderPlaced: "Order Placed",
	models.OrderStatusPending:        "Order Pending",
	models.OrderStatusConfirmed:      "Order Confirmed",
	models.OrderStatusProcessing:     "Being Prepared",
	models.OrderStatusShipped:        "Shipped",
	models.OrderStatusInTransit:      "In Transit",
	models.OrderStatusOutForDelivery: "Out for Delivery",
	models.OrderStatusDelivered:      "Delivered",
	models.OrderStatusCancelled:      "Order Cancelled",
	models.OrderStatusReturned:       "Order Returned",
	models.OrderStatusRefunded:       "Order Refunded",
}

// PricingInput is the discount context the checkout flow feeds the assembler.
type PricingInput struct {
	DiscountAmount float64
	FreeShipping   bool
	GiftCardAmount float64
	Coupons        []models.CouponSnapshot
}

// OrderService defines the interface for order business logic.
type OrderService interface {
	// Assemble normalizes a raw checkout payload into an order document.
	// It performs no writes; persistence is a separate step so the
	// checkout orchestrator controls sequencing.
	Assemble(req *models.CheckoutRequest, reqCtx models.RequestContext, pricing PricingInput) *models.Order
	CreateOrder(ctx context.Context, order *models.Order) *ServiceError
	GetByNumber(ctx context.Context, orderNumber string) (*models.Order, *ServiceError)
	GetUserOrders(ctx context.Context, userID string) ([]models.Order, *ServiceError)
	Track(ctx context.Context, query string) (*models.TrackingView, *ServiceError)
	UpdateStatus(ctx context.Context, orderNumber string, req *models.UpdateOrderStatusRequest) (*models.Order, *ServiceError)
	ApplyShipmentEvent(ctx context.Context, evt *models.ShipmentStatusEvent) error
}

type orderServiceImpl struct {
	repo        repository.OrderRepository
	producer    kafka.ProducerAPI
	snsClient   aws_pkg.SNSPublisher
	snsTopicArn string
	logger      *zap.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	repo repository.OrderRepository,
	producer kafka.ProducerAPI,
	snsClient aws_pkg.SNSPublisher,
	snsTopicArn string,
	logger *zap.Logger,
) OrderService {
	return &orderServiceImpl{
		repo:        repo,
		producer:    producer,
		snsClient:   snsClient,
		snsTopicArn: snsTopicArn,
		logger:      logger,
	}
}

// Assemble builds the normalized order document: explicit defaults, pricing
// breakdown, delivery estimate, seeded timeline, generated order number.
func (s *orderServiceImpl) Assemble(req *models.CheckoutRequest, reqCtx models.RequestContext, pricing PricingInput) *models.Order {
	now := time.Now()

	orderNumber := req.OrderNumber
	if orderNumber == "" {
		orderNumber = generateOrderNumber(now)
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	var subtotal float64
	for _, it := range req.Items {
		items = append(items, models.OrderItem{
			ProductID:      it.ProductID,
			Name:           it.Name,
			Price:          it.Price,
			Quantity:       it.Quantity,
			Variant:        it.Variant,
			Weight:         it.Weight,
			IsUpsell:       it.IsUpsell,
			UpsellDiscount: it.UpsellDiscount,
			OriginalPrice:  it.OriginalPrice,
		})
		subtotal += it.Price * float64(it.Quantity)
	}

	shippingCost := req.ShippingCost
	if pricing.FreeShipping {
		shippingCost = 0
	}

	discount := pricing.DiscountAmount
	if discount > subtotal {
		discount = subtotal
	}

	address := req.ShippingAddress
	if address.Country == "" {
		address.Country = defaultCountry
	}

	method := strings.ToLower(req.DeliveryMethod)
	if _, ok := deliveryDays[method]; !ok {
		method = models.DeliveryMethodStandard
	}
	estimated := req.EstimatedDelivery
	if estimated == nil {
		est := now.AddDate(0, 0, deliveryDays[method])
		estimated = &est
	}

	paymentMethod := strings.ToLower(req.PaymentMethod)
	if paymentMethod == "" {
		paymentMethod = "cod"
	}

	order := &models.Order{
		OrderNumber:   orderNumber,
		UserID:        req.UserID,
		CustomerEmail: strings.ToLower(req.CustomerEmail),
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Status:        models.OrderStatusPending,
		Items:         items,
		Pricing: models.Pricing{
			Subtotal:       subtotal,
			DiscountAmount: discount,
			ShippingCost:   shippingCost,
			TaxAmount:      req.TaxAmount,
			Total:          subtotal - discount + shippingCost + req.TaxAmount,
		},
		ShippingAddress: address,
		Delivery: models.Delivery{
			Method:            method,
			EstimatedDelivery: estimated,
		},
		Payment: models.Payment{
			Method:         paymentMethod,
			Status:         "pending",
			GiftCardAmount: pricing.GiftCardAmount,
		},
		Metadata: models.Metadata{
			Source:    reqCtx.Source,
			UserAgent: reqCtx.UserAgent,
			IPAddress: reqCtx.IPAddress,
			Referrer:  reqCtx.Referrer,
		},
		Coupons: pricing.Coupons,
		Timeline: []models.TimelineEntry{
			{
				Status:      models.TimelineStatusOrderPlaced,
				Title:       statusTitles[models.TimelineStatusOrderPlaced],
				Description: "Your order has been placed",
			},
		},
	}

	return order
}

// CreateOrder persists the assembled order and publishes the created event.
func (s *orderServiceImpl) CreateOrder(ctx context.Context, order *models.Order) *ServiceError {
	if err := s.repo.Create(ctx, order); err != nil {
		s.logger.Error("Failed to persist order",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err),
		)
		return &ServiceError{StatusCode: 500, Message: "Failed to create order"}
	}

	s.logger.Info("Order created",
		zap.String("order_number", order.OrderNumber),
		zap.Float64("total", order.Pricing.Total),
		zap.Int("items", len(order.Items)),
	)

	s.publishOrderCreated(ctx, order)
	return nil
}

// GetByNumber retrieves a single order by its order number.
func (s *orderServiceImpl) GetByNumber(ctx context.Context, orderNumber string) (*models.Order, *ServiceError) {
	order, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &ServiceError{StatusCode: 404, Reason: models.ReasonNotFound, Message: "Order not found"}
		}
		s.logger.Error("Order lookup failed", zap.String("order_number", orderNumber), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch order"}
	}
	return order, nil
}

// GetUserOrders retrieves a user's orders, newest first, capped at 100.
func (s *orderServiceImpl) GetUserOrders(ctx context.Context, userID string) ([]models.Order, *ServiceError) {
	orders, err := s.repo.FindByUserID(ctx, userID, maxOrderHistory)
	if err != nil {
		s.logger.Error("Failed to fetch orders", zap.String("user_id", userID), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch orders"}
	}
	return orders, nil
}

// Track looks up an order by number or email and projects it into the
// customer-facing tracking view.
func (s *orderServiceImpl) Track(ctx context.Context, query string) (*models.TrackingView, *ServiceError) {
	order, err := s.repo.FindByNumberOrEmail(ctx, strings.TrimSpace(query))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &ServiceError{StatusCode: 404, Reason: models.ReasonNotFound, Message: "No order found for that order number or email"}
		}
		s.logger.Error("Order tracking lookup failed", zap.String("query", query), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to track order"}
	}

	trackingNumber := order.Delivery.TrackingNumber
	if trackingNumber == "" {
		trackingNumber = "TRK" + strings.ToUpper(strings.ReplaceAll(order.ID.String(), "-", ""))[:15]
	}

	timeline := order.Timeline
	if len(timeline) == 0 {
		timeline = []models.TimelineEntry{
			{
				Status:      models.TimelineStatusOrderPlaced,
				Title:       statusTitles[models.TimelineStatusOrderPlaced],
				Description: "Your order has been placed",
				CreatedAt:   order.CreatedAt,
			},
		}
	}

	return &models.TrackingView{
		OrderNumber:       order.OrderNumber,
		Status:            order.Status,
		Items:             order.Items,
		Total:             order.Pricing.Total,
		EstimatedDelivery: order.Delivery.EstimatedDelivery,
		ActualDelivery:    order.Delivery.ActualDelivery,
		TrackingNumber:    trackingNumber,
		Carrier:           order.Delivery.Carrier,
		Timeline:          timeline,
		ShippingAddress:   order.ShippingAddress,
		PaymentMethod:     order.Payment.Method,
		PaymentStatus:     order.Payment.Status,
	}, nil
}

// UpdateStatus applies an operator-driven status change. Transitions are
// deliberately unrestricted; every change appends a timeline entry.
func (s *orderServiceImpl) UpdateStatus(ctx context.Context, orderNumber string, req *models.UpdateOrderStatusRequest) (*models.Order, *ServiceError) {
	status := strings.ToLower(req.Status)
	if !isValidStatus(status) {
		return nil, &ServiceError{StatusCode: 400, Message: fmt.Sprintf("Unknown order status %q", req.Status)}
	}

	current, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &ServiceError{StatusCode: 404, Reason: models.ReasonNotFound, Message: "Order not found"}
		}
		s.logger.Error("Order lookup failed", zap.String("order_number", orderNumber), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to update order"}
	}
	oldStatus := current.Status

	update := repository.StatusUpdate{
		Status:      status,
		Title:       statusTitles[status],
		Description: req.Description,
		Location:    req.Location,
	}
	if status == models.OrderStatusDelivered {
		now := time.Now()
		update.ActualDelivery = &now
	}

	order, err := s.repo.UpdateStatus(ctx, orderNumber, update)
	if err != nil {
		s.logger.Error("Order status update failed", zap.String("order_number", orderNumber), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to update order"}
	}

	s.logger.Info("Order status updated",
		zap.String("order_number", orderNumber),
		zap.String("old_status", oldStatus),
		zap.String("new_status", status),
	)

	s.publishStatusChanged(ctx, orderNumber, oldStatus, status)
	return order, nil
}

// ApplyShipmentEvent maps a carrier update onto the order, including tracking
// details and the actual delivery timestamp.
func (s *orderServiceImpl) ApplyShipmentEvent(ctx context.Context, evt *models.ShipmentStatusEvent) error {
	status := strings.ToLower(evt.Status)
	if !isValidStatus(status) {
		return fmt.Errorf("unknown shipment status %q for order %s", evt.Status, evt.OrderNumber)
	}

	update := repository.StatusUpdate{
		Status:         status,
		Title:          statusTitles[status],
		Description:    evt.Description,
		Location:       evt.Location,
		TrackingNumber: evt.TrackingNumber,
		Carrier:        evt.Carrier,
	}
	if status == models.OrderStatusDelivered {
		delivered := time.Now()
		if evt.DeliveredAt != nil {
			delivered = *evt.DeliveredAt
		}
		update.ActualDelivery = &delivered
	}

	if _, err := s.repo.UpdateStatus(ctx, evt.OrderNumber, update); err != nil {
		return fmt.Errorf("failed to apply shipment event for order %s: %w", evt.OrderNumber, err)
	}

	s.logger.Info("Shipment event applied",
		zap.String("order_number", evt.OrderNumber),
		zap.String("status", status),
		zap.String("location", evt.Location),
	)
	return nil
}

func isValidStatus(status string) bool {
	for _, s := range models.ValidOrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// generateOrderNumber synthesizes ORD-<epoch millis>-<5-char base36 random>.
func generateOrderNumber(now time.Time) string {
	const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	suffix := make([]byte, 5)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			// fall back to a time-derived digit; uniqueness still holds
			// through the millisecond component
			suffix[i] = alphabet[now.UnixNano()%int64(len(alphabet))]
			continue
		}
		suffix[i] = alphabet[n.Int64()]
	}
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), string(suffix))
}

func (s *orderServiceImpl) publishOrderCreated(ctx context.Context, order *models.Order) {
	event := models.OrderCreatedEvent{
		EventType:   "order_created",
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Email:       order.CustomerEmail,
		Total:       order.Pricing.Total,
		ItemCount:   len(order.Items),
		Timestamp:   time.Now(),
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal order_created event", zap.Error(err))
		return
	}

	if s.producer != nil {
		if err := s.producer.Publish(ctx, order.OrderNumber, eventBytes); err != nil {
			// best-effort; the order itself is already committed
			s.logger.Error("Failed to produce order_created event", zap.Error(err))
		}
	}
	if s.snsClient != nil && s.snsTopicArn != "" {
		if err := s.snsClient.Publish(ctx, s.snsTopicArn, eventBytes); err != nil {
			s.logger.Error("Failed to publish order_created event", zap.Error(err))
		}
	}
}

func (s *orderServiceImpl) publishStatusChanged(ctx context.Context, orderNumber, oldStatus, newStatus string) {
	event := models.OrderStatusChangedEvent{
		EventType:   "order_status_changed",
		OrderNumber: orderNumber,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
		Timestamp:   time.Now(),
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal order_status_changed event", zap.Error(err))
		return
	}

	if s.producer != nil {
		if err := s.producer.Publish(ctx, orderNumber, eventBytes); err != nil {
			s.logger.Error("Failed to produce order_status_changed event", zap.Error(err))
		}
	}
}
