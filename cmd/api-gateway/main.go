package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/cutroom-api/api/swagger"
	"github.com/noah-isme/cutroom-api/internal/repository"
	"github.com/noah-isme/cutroom-api/internal/service"
	"github.com/noah-isme/cutroom-api/pkg/cache"
	"github.com/noah-isme/cutroom-api/pkg/config"
	"github.com/noah-isme/cutroom-api/pkg/database"
	"github.com/noah-isme/cutroom-api/pkg/logger"
)

// @title Cutroom API
// @version 0.1.0
// @description Delivery and revision lifecycle for video editing engagements
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	validate := validator.New()

	publisher, closePublisher := buildPublisher(ctx, cfg, logr)
	defer closePublisher()

	dispatcher := service.NewEventDispatcher(publisher, metrics, logr, service.EventDispatcherConfig{
		Workers:    cfg.Events.Workers,
		BufferSize: cfg.Events.BufferSize,
		MaxRetries: cfg.Events.MaxRetries,
		RetryDelay: cfg.Events.RetryDelay,
	})
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	var payments service.PaymentGateway = service.NoopPaymentGateway{Logger: logr}
	if cfg.Payments.Enabled {
		payments = service.NewHTTPPaymentGateway(cfg.Payments, logr)
	}

	deliveryRepo := repository.NewDeliveryRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	annotations := service.NewAnnotationService(commentRepo, deliveryRepo, projectRepo, validate, logr,
		service.WithAnnotationAudit(auditRepo),
	)
	deliveries := service.NewDeliveryService(deliveryRepo, projectRepo, annotations, validate, logr,
		service.WithPaymentGateway(payments),
		service.WithEventEmitter(dispatcher),
		service.WithDeliveryAudit(auditRepo),
		service.WithDeliveryMetrics(metrics),
		service.WithDeliveryConfig(service.DeliveryServiceConfig{
			VersionConflictRetries: cfg.Deliveries.VersionConflictRetries,
			AllowedSchemes:         cfg.Deliveries.AllowedSchemes,
		}),
	)
	boards := service.NewBoardService(projectRepo, logr, service.WithBoardExport(cfg.Boards.ExportEnabled))

	router := newRouter(cfg, logr, routerDeps{
		tokens:      service.NewTokenVerifier(cfg.JWT),
		metrics:     metrics,
		db:          db,
		deliveries:  deliveries,
		annotations: annotations,
		boards:      boards,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// buildPublisher picks the lifecycle event sink. A Redis outage at boot
// falls back to logging so deliveries keep working.
func buildPublisher(ctx context.Context, cfg *config.Config, logr *zap.Logger) (service.EventPublisher, func()) {
	fallback := service.LogEventPublisher{Logger: logr}
	if cfg.Events.Driver != "redis" {
		return fallback, func() {}
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, lifecycle events will only be logged", zap.Error(err))
		return fallback, func() {}
	}
	publisher := repository.NewEventStreamRepository(client, cfg.Events.StreamName, cfg.Events.MaxLen, logr)
	return publisher, func() { closeRedis(client, logr) }
}

func closeRedis(client *redis.Client, logr *zap.Logger) {
	if err := client.Close(); err != nil {
		logr.Warn("close redis", zap.Error(err))
	}
}
