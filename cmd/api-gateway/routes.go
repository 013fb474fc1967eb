package main

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/cutroom-api/internal/handler"
	"github.com/noah-isme/cutroom-api/internal/middleware"
	"github.com/noah-isme/cutroom-api/internal/models"
	"github.com/noah-isme/cutroom-api/internal/service"
	"github.com/noah-isme/cutroom-api/pkg/config"
	"github.com/noah-isme/cutroom-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/cutroom-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/cutroom-api/pkg/middleware/requestid"
)

type routerDeps struct {
	tokens      middleware.TokenValidator
	metrics     *service.MetricsService
	db          *sqlx.DB
	deliveries  *service.DeliveryService
	annotations *service.AnnotationService
	boards      *service.BoardService
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	metricsHandler := handler.NewMetricsHandler(deps.metrics, deps.db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if !cfg.Deliveries.Enabled {
		logr.Warn("delivery routes disabled by ENABLE_DELIVERIES")
		return r
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(deps.tokens))

	deliveryHandler := handler.NewDeliveryHandler(deps.deliveries, deps.annotations)
	commentHandler := handler.NewCommentHandler(deps.annotations)
	boardHandler := handler.NewBoardHandler(deps.boards)

	editors := middleware.RequireRoles(models.RoleEditor, models.RoleAdmin)
	reviewers := middleware.RequireRoles(models.RoleCreator, models.RoleAdmin)

	projects := api.Group("/projects/:id")
	projects.POST("/deliveries", editors, deliveryHandler.Submit)
	projects.GET("/deliveries", deliveryHandler.List)
	projects.GET("/actions", deliveryHandler.Actions)
	projects.GET("/board", boardHandler.Board)
	projects.GET("/board/export", boardHandler.Export)

	deliveries := api.Group("/deliveries/:id")
	deliveries.GET("", deliveryHandler.Get)
	deliveries.POST("/approve", reviewers, deliveryHandler.Approve)
	deliveries.POST("/revisions", reviewers, deliveryHandler.RequestRevision)
	deliveries.GET("/comments", commentHandler.List)
	deliveries.POST("/comments", commentHandler.Create)

	api.PUT("/comments/:id/resolved", commentHandler.SetResolved)
	api.DELETE("/comments/:id", commentHandler.Delete)
	api.POST("/comments/:id/replies", commentHandler.Reply)
	api.DELETE("/replies/:id", commentHandler.DeleteReply)

	return r
}
