package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gainmode46-star/gainmode-backend/controllers"
	"github.com/gainmode46-star/gainmode-backend/middleware"
)

// Register sets up all HTTP routes.
func Register(
	r *gin.Engine,
	jwtSecret []byte,
	couponController *controllers.CouponController,
	giftCardController *controllers.GiftCardController,
	orderController *controllers.OrderController,
) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := middleware.Authenticate(jwtSecret)

	couponRoutes := r.Group("/coupons")
	couponRoutes.Use(auth)
	couponRoutes.POST("/validate", couponController.ValidateCoupon)
	couponRoutes.GET("/:code", couponController.GetCoupon)

	couponAdmin := couponRoutes.Group("")
	couponAdmin.Use(middleware.AdminOnly())
	couponAdmin.POST("", couponController.CreateCoupon)
	couponAdmin.GET("", couponController.ListCoupons)
	couponAdmin.DELETE("/:code", couponController.DeactivateCoupon)

	giftCardRoutes := r.Group("/gift-cards")
	giftCardRoutes.Use(auth)
	giftCardRoutes.POST("/validate", giftCardController.ValidateGiftCard)
	giftCardRoutes.POST("/redeem", middleware.RateLimit(), giftCardController.RedeemGiftCard)

	giftCardAdmin := giftCardRoutes.Group("")
	giftCardAdmin.Use(middleware.AdminOnly())
	giftCardAdmin.POST("/generate", giftCardController.GenerateGiftCard)

	orderRoutes := r.Group("/orders")
	orderRoutes.Use(auth)
	orderRoutes.POST("", middleware.RateLimit(), orderController.CreateOrder)
	orderRoutes.GET("", orderController.GetUserOrders)
	orderRoutes.GET("/track", orderController.TrackOrder)
	orderRoutes.GET("/track/:query", orderController.TrackOrder)
	orderRoutes.GET("/:order_number", orderController.GetOrder)
	orderRoutes.PATCH("/:order_number/status", middleware.AdminOnly(), orderController.UpdateOrderStatus)
}
