package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/schoolhub/booking-backend/internal/services"
	"github.com/schoolhub/booking-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// WebhookSignatureHeader carries the HMAC of the raw webhook body
const WebhookSignatureHeader = "X-Razorpay-Signature"

// PaymentHandler receives server-to-server gateway notifications
type PaymentHandler struct {
	recon  *services.ReconciliationService
	logger *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(recon *services.ReconciliationService, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{recon: recon, logger: logger}
}

// Webhook handles gateway payment events
// POST /api/v1/payments/webhook
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty webhook body", "code": "INVALID_REQUEST"})
		return
	}

	result, err := h.recon.HandleWebhook(c.Request.Context(), body, c.GetHeader(WebhookSignatureHeader), utils.CallerInfo(c))
	if err != nil {
		// Storage errors surface as 500 so the gateway retries
		respondBookingError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
