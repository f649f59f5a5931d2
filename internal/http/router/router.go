package router

import (
	"github.com/gin-gonic/gin"

	"github.com/tricykol/auth-backend/internal/config"
	"github.com/tricykol/auth-backend/internal/http/handlers"
	"github.com/tricykol/auth-backend/internal/http/middleware"
	"github.com/tricykol/auth-backend/internal/service"
)

// SetupRouter собирает gin engine со всеми маршрутами и middleware.
func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	otpGroup := api.Group("/auth/otp")
	otpGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		otpGroup.POST("/request", authHandler.RequestOTP)
		otpGroup.POST("/verify", authHandler.VerifyOTP)
	}

	protected := api.Group("/auth")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/me", authHandler.Me)
	}

	return r
}
