package api

import (
	"context"
	"net/http"
	"time"

	"tulpar/internal/config"
	"tulpar/internal/handlers"
	"tulpar/internal/metrics"
	"tulpar/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Server инкапсулирует HTTP сервер и маршрутизацию
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer создает сервер и настраивает маршруты. authMW защищает все
// пользовательские операции; webhook шлюза остается вне basic auth и
// проверяется подписью тела.
func NewServer(cfg *config.Config, h *handlers.Handlers, authMW gin.HandlerFunc) *Server {
	gin.SetMode(cfg.GinMode)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS())
	router.Use(metrics.Middleware())

	server := &Server{
		router: router,
		httpServer: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      router,
			ReadTimeout:  cfg.RequestTimeout,
			WriteTimeout: cfg.RequestTimeout,
		},
	}
	server.setupRoutes(h, authMW)
	return server
}

func (s *Server) setupRoutes(h *handlers.Handlers, authMW gin.HandlerFunc) {
	s.router.GET("/health", h.Health)
	s.router.GET("/metrics", metrics.Handler())

	api := s.router.Group("/api")
	{
		// Открытые маршруты
		api.GET("/events", h.ListEvents)
		api.GET("/events/:id", h.GetEvent)
		api.POST("/payments/webhook", h.PaymentWebhook)

		// Маршруты под basic auth
		authed := api.Group("")
		authed.Use(authMW)
		{
			authed.POST("/events", h.CreateEvent)
			authed.POST("/events/:id/register", h.RegisterForEvent)
			authed.POST("/events/:id/cancel", h.CancelRegistration)
			authed.POST("/payments/verify", h.VerifyPayment)
			authed.GET("/registrations", h.MyRegistrations)
		}
	}
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
