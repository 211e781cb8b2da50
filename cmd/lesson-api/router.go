package main

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lesson-registration-api/api/swagger"
	"github.com/noah-isme/lesson-registration-api/internal/handler"
	"github.com/noah-isme/lesson-registration-api/internal/middleware"
	"github.com/noah-isme/lesson-registration-api/internal/models"
	"github.com/noah-isme/lesson-registration-api/pkg/config"
	"github.com/noah-isme/lesson-registration-api/pkg/logger"
	reqidmiddleware "github.com/noah-isme/lesson-registration-api/pkg/middleware/requestid"
)

func newRouter(app *application, logr *zap.Logger) *gin.Engine {
	cfg := app.cfg
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(app.metrics))
	}

	metricsHandler := handler.NewMetricsHandler(app.metrics)
	registrationHandler := handler.NewRegistrationHandler(app.registrationSvc, app.audit, app.roster, app.trimesters)
	trimesterHandler := handler.NewTrimesterHandler(app.trimesters)

	r.GET("/health", metricsHandler.Health)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Docs.Enabled {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(strings.TrimRight(cfg.APIPrefix, "/"))
	api.Use(middleware.JWT(app.tokens))

	staff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleInstructor)
	anyone := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleInstructor, models.RoleParent)
	office := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

	registrations := api.Group("/registrations")
	registrations.GET("", staff, registrationHandler.List)
	registrations.POST("", anyone, registrationHandler.Create)
	registrations.POST("/bulk", office, registrationHandler.BulkCreate)
	registrations.GET("/export", staff, registrationHandler.Export)
	registrations.PATCH("/:id", office, registrationHandler.Update)
	registrations.DELETE("/:id", office, registrationHandler.Delete)
	registrations.GET("/:id/history", office, registrationHandler.History)

	api.GET("/trimesters", anyone, trimesterHandler.Overview)
	api.GET("/metrics/summary", office, metricsHandler.Snapshot)

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}
