package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tricykol/auth-backend/internal/config"
	"github.com/tricykol/auth-backend/internal/db"
	httpHandlers "github.com/tricykol/auth-backend/internal/http/handlers"
	httpRouter "github.com/tricykol/auth-backend/internal/http/router"
	"github.com/tricykol/auth-backend/internal/logger"
	"github.com/tricykol/auth-backend/internal/repository"
	"github.com/tricykol/auth-backend/internal/service"
	"github.com/tricykol/auth-backend/internal/sms"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.Env)

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.SessionTokenTTL)
	gateway := sms.NewClient(cfg.SMSBaseURL, cfg.SMSAPIKey, cfg.SMSSenderName, cfg.SMSTemplate, cfg.SMSTimeout)

	// Репозитории.
	otpRepo := repository.NewOTPRepository(dbConn)
	driverRepo := repository.NewDriverRepository(dbConn)
	accountRepo := repository.NewAccountRepository(dbConn)
	auditRepo := repository.NewAuditRepository(dbConn)

	// Сервисы.
	authService := service.NewAuthService(otpRepo, driverRepo, accountRepo, gateway, tokenManager, cfg.OTPTTL)
	auditService := service.NewAuditService(auditRepo)

	// HTTP хэндлеры и роутер.
	authHandler := httpHandlers.NewAuthHandler(authService, auditService, accountRepo)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	engine := httpRouter.SetupRouter(cfg, authHandler, healthHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
