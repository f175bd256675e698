package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"supermock/internal/core/ports"
	"supermock/internal/infrastructure/middleware"
	"supermock/internal/infrastructure/monitoring"
	"supermock/pkg/config"
	"supermock/pkg/errors"
)

// Services are the collaborators behind the HTTP surface.
type Services struct {
	Auth          ports.AuthService
	Queue         ports.QueueService
	Sessions      ports.SessionService
	Notifications ports.NotificationService
	Profiles      ports.ProfileService
	Health        *monitoring.HealthChecker
	// WebSocket serves the hub upgrade on /ws when set.
	WebSocket http.HandlerFunc
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// NewRouter builds the gin engine with the middleware chain and every route.
func NewRouter(cfg *config.Config, svc Services, logger *zap.SugaredLogger) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.RequestIDMiddleware(),
		middleware.CORSMiddleware(cfg.Auth.AllowedOrigins),
		middleware.TracingMiddleware(),
		middleware.RequestLoggingMiddleware(logger.Desugar()),
		middleware.ErrorHandlerMiddleware(logger),
	)

	router.NoRoute(func(c *gin.Context) {
		_ = c.Error(errors.NewNotFoundError("route"))
	})

	if svc.Health != nil {
		NewHealthHandler(svc.Health).SetupRoutes(router)
	}
	if svc.Metrics != nil {
		router.GET("/metrics", gin.WrapH(svc.Metrics))
	}
	if svc.WebSocket != nil {
		router.GET(cfg.Signal.Path, gin.WrapF(svc.WebSocket))
	}

	// Dev tokens are never issued outside dev mode.
	if cfg.DevMode {
		NewAuthHandler(svc.Auth, cfg.Auth.AccessTokenTTL).SetupRoutes(router)
	}

	api := router.Group("/api/v1")
	api.Use(
		middleware.NewHTTPRateLimitMiddleware(cfg),
		middleware.AuthMiddleware(svc.Auth, cfg.DevMode),
	)
	{
		NewQueueHandler(svc.Queue).SetupRoutes(api)
		NewSessionHandler(svc.Sessions).SetupRoutes(api)
		NewNotificationHandler(svc.Notifications).SetupRoutes(api)
		NewProfileHandler(svc.Profiles).SetupRoutes(api)
	}

	return router
}
