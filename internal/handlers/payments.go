package handlers

import (
	"net/http"

	"tulpar/internal/models"

	"github.com/gin-gonic/gin"
)

// Payments handlers

// VerifyPayment - POST /api/payments/verify
// Клиентское подтверждение оплаты после возврата со страницы шлюза
func (h *Handlers) VerifyPayment(c *gin.Context) {
	var req models.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.services.Registrations.VerifyPayment(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// PaymentWebhook - POST /api/payments/webhook
// Асинхронное уведомление платежного шлюза. Не за basic auth, подлинность
// подтверждается HMAC подписью тела запроса.
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	signature := c.GetHeader("X-Webhook-Signature")
	result, err := h.services.Registrations.HandleWebhook(c.Request.Context(), body, signature)
	if err != nil {
		respondError(c, err)
		return
	}

	// 200 на applied, duplicate и ignored, чтобы шлюз не ретраил доставку
	c.JSON(http.StatusOK, gin.H{"result": result})
}
