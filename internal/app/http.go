package app

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/docreview-backend/internal/functions"
	apphttp "github.com/yungbote/docreview-backend/internal/http"
	httpH "github.com/yungbote/docreview-backend/internal/http/handlers"
	httpMW "github.com/yungbote/docreview-backend/internal/http/middleware"
	"github.com/yungbote/docreview-backend/internal/observability"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Review   *httpH.ReviewHandler
	Version  *httpH.VersionHandler
	Job      *httpH.JobHandler
	// Function is the action-dispatch entry point mounted at /api/fn.
	Function *functions.Dispatcher
}

func wireHandlers(log *logger.Logger, clients *Clients, services Services) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.Check{
		"storage": func(ctx context.Context) error {
			_, err := clients.Store.ListByPrefix(ctx, "healthcheck/")
			return err
		},
	}
	if clients.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return clients.Redis.Ping(ctx).Err() }
	}
	h := Handlers{
		Health:   httpH.NewHealthHandler(checks),
		Review:   httpH.NewReviewHandler(services.Engine),
		Version:  httpH.NewVersionHandler(services.Engine),
		Function: functions.NewDispatcher(log, services.Engine),
	}
	if services.Jobs != nil {
		h.Job = httpH.NewJobHandler(services.Jobs)
	}
	return h
}

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, serviceName string, h Handlers) *gin.Engine {
	var auth *httpMW.AuthMiddleware
	if cfg.JWTSecretKey != "" {
		auth = httpMW.NewAuthMiddleware(log, cfg.JWTSecretKey)
	}
	return apphttp.NewRouter(apphttp.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    serviceName,
		AuthMiddleware: auth,
		ReviewHandler:  h.Review,
		VersionHandler: h.Version,
		JobHandler:     h.Job,
		HealthHandler:  h.Health,
		Function:       h.Function,
	})
}
