package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/lessonbook/payments-backend/internal/config"
	"github.com/lessonbook/payments-backend/internal/database"
	"github.com/lessonbook/payments-backend/internal/handlers"
	"github.com/lessonbook/payments-backend/internal/middleware"
	"github.com/lessonbook/payments-backend/internal/services"
	"github.com/lessonbook/payments-backend/pkg/jwt"
	"github.com/lessonbook/payments-backend/pkg/processor"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting lesson payments backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	gateway := processor.NewStripeGateway(processor.StripeConfig{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		APIBaseURL:    cfg.Stripe.APIBaseURL,
	}, logger)

	// Payment audit store: Postgres when configured, the log otherwise
	var (
		auditDB       *sqlx.DB
		auditRecorder services.AuditRecorder
		auditPinger   handlers.Pinger
		auditReader   handlers.AuditReader
	)
	if cfg.AuditEnabled() {
		logger.Info("Connecting to audit database...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		auditDB, err = database.NewConnection(ctx, cfg.Database)
		if err != nil {
			cancel()
			logger.Fatalf("Failed to connect to database: %v", err)
		}

		auditRepo := database.NewPaymentAuditRepository(auditDB, logger)
		if err := auditRepo.EnsureSchema(ctx); err != nil {
			cancel()
			logger.Fatalf("Failed to prepare audit schema: %v", err)
		}
		cancel()

		auditRecorder = auditRepo
		auditPinger = auditRepo
		auditReader = auditRepo
		logger.Info("Audit database connection established")
	} else {
		auditRecorder = services.NewLogAuditRecorder(logger)
		logger.Info("DATABASE_URL not set, payment audits go to the log")
	}

	// Initialize services
	auditService := services.NewAuditService(auditRecorder, logger)
	lessonService := services.NewLessonService(gateway, services.LessonOptions{
		Currency:           cfg.Stripe.Currency,
		ReturnURL:          cfg.Stripe.ReturnURL,
		PaymentMethodLimit: cfg.Reports.PaymentMethodLimit,
	}, logger)
	accountService := services.NewAccountService(gateway, cfg.Reports.PaymentMethodLimit, logger)
	reportingService := services.NewReportingService(gateway, services.ReportingOptions{
		Window:             cfg.Reports.Window,
		BalancePageSize:    cfg.Reports.BalancePageSize,
		IntentPageSize:     cfg.Reports.IntentPageSize,
		PaymentMethodLimit: cfg.Reports.PaymentMethodLimit,
	}, logger)

	var cronService *services.CronService
	if cfg.Cron.Enabled {
		cronService = services.NewCronService(cfg.Cron.Schedule, reportingService, logger)
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
	}

	h := handlers.Handlers{
		Pages:    handlers.NewPageHandler(cfg.Stripe.PublishableKey, cfg.Static.Dir, cfg.Static.ErrorPage),
		Lessons:  handlers.NewLessonHandler(lessonService, auditService),
		Accounts: handlers.NewAccountHandler(accountService, auditService),
		Reports:  handlers.NewReportHandler(reportingService),
		Webhook:  handlers.NewWebhookHandler(gateway, auditService, logger),
		Health:   handlers.NewHealthHandler(auditPinger, version),
	}

	// Back-office login only exists when the reports are protected
	var reportAuth gin.HandlerFunc
	if cfg.Reports.RequireAuth {
		jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
		adminAuthService := services.NewAdminAuthService(cfg.Admin.Email, cfg.Admin.PasswordHash, jwtService, logger)
		rateLimitService := services.NewRateLimitService(services.DefaultRateLimitConfig())
		h.Admin = handlers.NewAdminAuthHandler(adminAuthService, rateLimitService, logger)
		reportAuth = middleware.AdminAuth(jwtService, logger)
		if auditReader != nil {
			h.Audits = handlers.NewAuditHandler(auditReader)
		}
		logger.Info("Reporting endpoints require an admin token")
	}

	if cfg.Stripe.WebhookSecret == "" {
		logger.Warn("STRIPE_WEBHOOK_SECRET not set, webhook signatures are not verified")
	}

	// Initialize Gin router
	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Metrics())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORS.AllowedOrigins,
		AllowMethods:  cfg.CORS.AllowedMethods,
		AllowHeaders:  cfg.CORS.AllowedHeaders,
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))

	handlers.RegisterRoutes(router, h, reportAuth)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // report scans page through the whole window
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if cronService != nil {
		cronService.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	if auditDB != nil {
		auditDB.Close()
	}

	logger.Info("Server exited successfully")
}
