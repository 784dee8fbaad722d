package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/docreview-backend/internal/http/handlers"
	httpMW "github.com/yungbote/docreview-backend/internal/http/middleware"
	"github.com/yungbote/docreview-backend/internal/observability"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	AuthMiddleware *httpMW.AuthMiddleware

	ReviewHandler  *httpH.ReviewHandler
	VersionHandler *httpH.VersionHandler
	JobHandler     *httpH.JobHandler
	HealthHandler  *httpH.HealthHandler
	// Function serves the single-endpoint action API.
	Function http.Handler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Review
	if cfg.ReviewHandler != nil {
		api.POST("/review", cfg.ReviewHandler.Review)
		api.POST("/review/render", cfg.ReviewHandler.Render)
		api.POST("/review/fix", cfg.ReviewHandler.Fix)
		api.POST("/review/rewrite", cfg.ReviewHandler.Rewrite)
	}

	// Review jobs
	if cfg.JobHandler != nil {
		api.POST("/review/jobs", cfg.JobHandler.StartJob)
		api.GET("/review/jobs/:id", cfg.JobHandler.GetJob)
	}

	// Versions
	if cfg.VersionHandler != nil {
		api.POST("/documents/:documentId/versions", cfg.VersionHandler.SaveVersion)
		api.GET("/documents/:documentId/versions", cfg.VersionHandler.ListVersions)
		api.GET("/documents/:documentId/versions/next", cfg.VersionHandler.NextVersionNumber)
		api.GET("/documents/:documentId/versions/:versionId", cfg.VersionHandler.GetVersion)
	}

	// Function-style entry point
	if cfg.Function != nil {
		api.POST("/fn", gin.WrapH(cfg.Function))
	}

	return r
}
