package handler

import (
	"wallet-service/internal/adapter/http/middleware"
	"wallet-service/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	IdempotencySvc ports.IdempotencyService
	APIKey         string
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Deep health check, outside the authenticated surface
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	walletHandler := NewWalletHandler(deps.WalletSvc, deps.IdempotencySvc, deps.Logger)

	wallet := r.Group("/wallet", middleware.APIKeyAuth(deps.APIKey, deps.Logger))
	{
		wallet.GET("/health", walletHandler.Ping)
		wallet.POST("", walletHandler.Create)
		wallet.GET("/:id", walletHandler.Get)
		wallet.PATCH("/:id", walletHandler.UpdateBalance)
	}

	return r
}
