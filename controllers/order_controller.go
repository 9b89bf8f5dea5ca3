package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gainmode46-star/gainmode-backend/models"
	"github.com/gainmode46-star/gainmode-backend/services"
)

// OrderController handles HTTP requests for checkout, order lookup, status
// updates, and tracking.
type OrderController struct {
	orderService services.OrderService
	checkout     *services.CheckoutOrchestrator
}

// NewOrderController creates a new OrderController.
func NewOrderController(orderService services.OrderService, checkout *services.CheckoutOrchestrator) *OrderController {
	return &OrderController{orderService: orderService, checkout: checkout}
}

// CreateOrder handles POST /orders. Callers may send an Idempotency-Key
// header; retries with the same key return the original order.
func (oc *OrderController) CreateOrder(ctx *gin.Context) {
	var req models.CheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	reqCtx := models.RequestContext{
		Source:    ctx.GetHeader("X-Order-Source"),
		UserAgent: ctx.Request.UserAgent(),
		IPAddress: ctx.ClientIP(),
		Referrer:  ctx.Request.Referer(),
	}
	if reqCtx.Source == "" {
		reqCtx.Source = "web"
	}

	idemKey := ctx.GetHeader("Idempotency-Key")

	order, svcErr := oc.checkout.Checkout(ctx.Request.Context(), &req, reqCtx, idemKey)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message, "reason": svcErr.Reason})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"success": true, "order": order})
}

// GetOrder handles GET /orders/:order_number.
func (oc *OrderController) GetOrder(ctx *gin.Context) {
	orderNumber := ctx.Param("order_number")
	if orderNumber == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Order number is required"})
		return
	}

	order, svcErr := oc.orderService.GetByNumber(ctx.Request.Context(), orderNumber)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message, "reason": svcErr.Reason})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

// GetUserOrders handles GET /orders?userId=. The query parameter wins; the
// identity resolved by the auth middleware is the fallback.
func (oc *OrderController) GetUserOrders(ctx *gin.Context) {
	userID := ctx.Query("userId")
	if userID == "" {
		userID = ctx.Query("user_id")
	}
	if userID == "" {
		userID = ctx.GetString("user_id")
	}
	if userID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	orders, svcErr := oc.orderService.GetUserOrders(ctx.Request.Context(), userID)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "orders": orders, "count": len(orders)})
}

// TrackOrder handles GET /orders/track?query= (path form also accepted).
// The query is an order number or a customer email; email matches resolve
// to the most recent order.
func (oc *OrderController) TrackOrder(ctx *gin.Context) {
	query := ctx.Query("query")
	if query == "" {
		query = ctx.Param("query")
	}
	if query == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Order number or email is required"})
		return
	}

	view, svcErr := oc.orderService.Track(ctx.Request.Context(), query)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message, "reason": svcErr.Reason})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "tracking": view})
}

// UpdateOrderStatus handles PATCH /orders/:order_number/status (admin only).
func (oc *OrderController) UpdateOrderStatus(ctx *gin.Context) {
	orderNumber := ctx.Param("order_number")
	if orderNumber == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Order number is required"})
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	order, svcErr := oc.orderService.UpdateStatus(ctx.Request.Context(), orderNumber, &req)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message, "reason": svcErr.Reason})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}
