package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/neuroshield/scan-api/pkg/auth"
	"github.com/neuroshield/scan-api/pkg/logger"
	"github.com/neuroshield/scan-api/pkg/messaging/redis"
	"github.com/neuroshield/scan-api/pkg/metrics"
	"github.com/neuroshield/scan-api/pkg/security"
	"github.com/neuroshield/scan-api/pkg/worker"

	"github.com/neuroshield/scan-api/internal/config"
	"github.com/neuroshield/scan-api/internal/handler"
	authHandler "github.com/neuroshield/scan-api/internal/handler/auth"
	dashboardHandler "github.com/neuroshield/scan-api/internal/handler/dashboard"
	patientHandler "github.com/neuroshield/scan-api/internal/handler/patient"
	scanHandler "github.com/neuroshield/scan-api/internal/handler/scan"
	"github.com/neuroshield/scan-api/internal/middleware"
	"github.com/neuroshield/scan-api/internal/notifier"
	"github.com/neuroshield/scan-api/internal/predictor"
	"github.com/neuroshield/scan-api/internal/repository/postgres"
	"github.com/neuroshield/scan-api/internal/router"
	authService "github.com/neuroshield/scan-api/internal/service/auth"
	gatewayService "github.com/neuroshield/scan-api/internal/service/gateway"
	ingestionService "github.com/neuroshield/scan-api/internal/service/ingestion"
	patientService "github.com/neuroshield/scan-api/internal/service/patient"
	"github.com/neuroshield/scan-api/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	patientRepo := postgres.NewPatientRepository(db)
	scanRepo := postgres.NewScanRepository(db)
	userRepo := postgres.NewUserRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// Shared infrastructure
	appMetrics := metrics.NewMetrics("neuroshield", "scan_api")
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	hasher := security.NewBcryptHasher(0)

	blobs, err := storage.NewLocalStore(cfg.Storage.UploadDir, cfg.Storage.MaxFileSize)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize image store")
	}

	predictorClient := predictor.NewClient(predictor.Config{
		URL:         cfg.Predictor.URL,
		Timeout:     time.Duration(cfg.Predictor.TimeoutSeconds) * time.Second,
		MaxFailures: cfg.Predictor.MaxFailures,
	})

	alertNotifier := notifier.NewEmailNotifier(notifier.Config{
		Enabled:  cfg.Alerts.Enabled,
		SMTPHost: cfg.Alerts.SMTPHost,
		SMTPPort: cfg.Alerts.SMTPPort,
		SMTPUser: cfg.Alerts.SMTPUser,
		SMTPPass: cfg.Alerts.SMTPPass,
		From:     cfg.Alerts.From,
	}, appLogger)

	// Services
	patientSvc := patientService.NewService(patientRepo, appLogger)
	authSvc := authService.NewService(userRepo, patientRepo, hasher, jwtService)
	gatewaySvc := gatewayService.NewService(patientRepo, scanRepo, appLogger)
	ingestionSvc := ingestionService.NewService(
		scanRepo,
		patientRepo,
		outboxRepo,
		blobs,
		predictorClient,
		alertNotifier,
		appMetrics,
		appLogger,
		time.Duration(cfg.Predictor.TimeoutSeconds)*time.Second,
	)

	// Handlers
	h := handler.NewHandler(db)
	authH := authHandler.NewHandler(authSvc)
	patientH := patientHandler.NewHandler(patientSvc, gatewaySvc)
	scanH := scanHandler.NewHandler(ingestionSvc)
	dashboardH := dashboardHandler.NewHandler(gatewaySvc)

	authMiddleware := middleware.NewAuthMiddleware(jwtService)

	r := router.NewRouter(authMiddleware, authH, patientH, scanH, dashboardH, h, router.RouterConfig{
		RateLimitRPS:   50,
		RateLimitBurst: 100,
		MetricsPrefix:  "neuroshield_http",
	})
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	// Outbox processor publishes queued domain events to Redis.
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	processorCtx, stopProcessor := context.WithCancel(context.Background())
	defer stopProcessor()

	outboxProcessor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{}, appLogger, appMetrics)
	go outboxProcessor.Start(processorCtx)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	stopProcessor()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
