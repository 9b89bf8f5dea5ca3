package services

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/gainmode46-star/gainmode-backend/models"
	aws_pkg "github.com/gainmode46-star/gainmode-backend/pkg/aws"
)

// ShipmentConsumer consumes carrier shipment events from SQS and applies
// them to orders through the timeline manager.
type ShipmentConsumer struct {
	sqsConsumer *aws_pkg.SQSConsumer
	orders      OrderService
	logger      *zap.Logger
}

// NewShipmentConsumer creates a new ShipmentConsumer.
func NewShipmentConsumer(sqsConsumer *aws_pkg.SQSConsumer, orders OrderService, logger *zap.Logger) *ShipmentConsumer {
	return &ShipmentConsumer{
		sqsConsumer: sqsConsumer,
		orders:      orders,
		logger:      logger,
	}
}

// Start begins polling the shipment events queue until ctx is cancelled.
func (c *ShipmentConsumer) Start(ctx context.Context) {
	c.logger.Info("Starting shipment events consumer")

	err := c.sqsConsumer.StartPolling(ctx, func(ctx context.Context, body string) error {
		return c.handleMessage(ctx, body)
	})
	if err != nil && err != context.Canceled {
		c.logger.Error("Shipment consumer polling error", zap.Error(err))
	}
}

func (c *ShipmentConsumer) handleMessage(ctx context.Context, body string) error {
	// unwrap SNS envelope if present
	var snsEnvelope struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(body), &snsEnvelope); err == nil && snsEnvelope.Message != "" {
		body = snsEnvelope.Message
	}

	var evt models.ShipmentStatusEvent
	if err := json.Unmarshal([]byte(body), &evt); err != nil {
		c.logger.Warn("Invalid shipment event payload, dropping", zap.Error(err))
		return nil // don't retry invalid JSON
	}

	if evt.OrderNumber == "" || evt.Status == "" {
		c.logger.Warn("Shipment event missing fields, dropping",
			zap.String("order_number", evt.OrderNumber),
			zap.String("status", evt.Status),
		)
		return nil
	}

	if err := c.orders.ApplyShipmentEvent(ctx, &evt); err != nil {
		c.logger.Error("Failed to apply shipment event",
			zap.String("order_number", evt.OrderNumber),
			zap.Error(err),
		)
		// message becomes visible again and is retried
		return err
	}

	return nil
}
