package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gainmode46-star/gainmode-backend/models"
	"github.com/gainmode46-star/gainmode-backend/services"
)

// GiftCardController handles HTTP requests for gift card operations.
type GiftCardController struct {
	giftCardService services.GiftCardService
}

// NewGiftCardController creates a new GiftCardController.
func NewGiftCardController(giftCardService services.GiftCardService) *GiftCardController {
	return &GiftCardController{giftCardService: giftCardService}
}

// GenerateGiftCard handles POST /gift-cards/generate.
func (gc *GiftCardController) GenerateGiftCard(ctx *gin.Context) {
	var req models.IssueGiftCardRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	card, svcErr := gc.giftCardService.Issue(ctx.Request.Context(), &req)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message, "reason": svcErr.Reason})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"success": true, "giftCard": card})
}

// RedeemGiftCard handles POST /gift-cards/redeem.
func (gc *GiftCardController) RedeemGiftCard(ctx *gin.Context) {
	var req models.RedeemGiftCardRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	resp, svcErr := gc.giftCardService.Redeem(ctx.Request.Context(), &req)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message, "reason": svcErr.Reason})
		return
	}

	ctx.JSON(http.StatusOK, resp)
}

// ValidateGiftCard handles POST /gift-cards/validate. Read-only; balance is
// untouched until redemption at checkout.
func (gc *GiftCardController) ValidateGiftCard(ctx *gin.Context) {
	var req models.ValidateGiftCardRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	card, svcErr := gc.giftCardService.Validate(ctx.Request.Context(), req.Code)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message, "reason": svcErr.Reason})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success":   true,
		"code":      card.Code,
		"balance":   card.Balance,
		"expiresAt": card.ExpiresAt,
	})
}
