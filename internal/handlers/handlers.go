package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"tulpar/internal/database"
	"tulpar/internal/models"
	"tulpar/internal/search"
	"tulpar/internal/service"

	"github.com/gin-gonic/gin"
)

// Handlers содержит все HTTP handlers
type Handlers struct {
	services *service.Services
	db       *database.DB
	es       *search.ElasticsearchClient
}

// NewHandlers создает новый экземпляр handlers
func NewHandlers(services *service.Services, db *database.DB, es *search.ElasticsearchClient) *Handlers {
	return &Handlers{
		services: services,
		db:       db,
		es:       es,
	}
}

// respondError переводит доменную ошибку в HTTP статус. Неизвестные ошибки
// логируются и отдаются как 500 без деталей.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, models.ErrNotRegistered):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNoMatchingIntent):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrEventClosed),
		errors.Is(err, models.ErrAlreadyRegistered),
		errors.Is(err, models.ErrEventFull),
		errors.Is(err, models.ErrDuplicateWaitlistEntry),
		errors.Is(err, models.ErrSeatUnavailableRefundRequired):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrTamperedPayment):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		slog.Error("Unhandled error", "error", err, "path", c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// Health - GET /health
// Проверка состояния сервиса и его зависимостей
func (h *Handlers) Health(c *gin.Context) {
	dbHealth := h.db.HealthCheck(c.Request.Context())

	status := http.StatusOK
	esStatus := "disabled"
	if h.es != nil {
		esStatus = "healthy"
		if err := h.es.HealthCheck(c.Request.Context()); err != nil {
			esStatus = "unhealthy"
		}
	}

	if dbHealth.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"database":      dbHealth,
		"elasticsearch": esStatus,
	})
}
