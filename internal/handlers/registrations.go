package handlers

import (
	"net/http"
	"strconv"

	"tulpar/internal/middleware"
	"tulpar/internal/models"

	"github.com/gin-gonic/gin"
)

// Registrations handlers

// RegisterForEvent - POST /api/events/:id/register
// Зарегистрироваться на событие. Бесплатное событие: место сразу или лист
// ожидания. Платное: создается платеж, место выдается после оплаты.
func (h *Handlers) RegisterForEvent(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	userID, ok := middleware.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	response, err := h.services.Registrations.Register(c.Request.Context(), eventID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	// 201 только когда место выдано сразу
	status := http.StatusOK
	if response.Status == models.RegistrationStatusRegistered {
		status = http.StatusCreated
	}
	c.JSON(status, response)
}

// CancelRegistration - POST /api/events/:id/cancel
// Отменить регистрацию или выйти из листа ожидания
func (h *Handlers) CancelRegistration(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	userID, ok := middleware.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.services.Registrations.Cancel(c.Request.Context(), eventID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// MyRegistrations - GET /api/registrations
// Регистрации и позиции в листах ожидания текущего пользователя
func (h *Handlers) MyRegistrations(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	response, err := h.services.Registrations.MyRegistrations(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}
