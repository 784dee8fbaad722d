package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/docreview-backend/internal/domain"
	apphttp "github.com/yungbote/docreview-backend/internal/http"
	"github.com/yungbote/docreview-backend/internal/observability"
	"github.com/yungbote/docreview-backend/internal/platform/envutil"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
	"github.com/yungbote/docreview-backend/internal/temporalx/temporalworker"
)

const serviceName = "docreview-api"

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Clients  *Clients
	Services Services
	Metrics  *observability.Metrics
	Router   *gin.Engine

	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: envutil.String("OTEL_SERVICE_NAME", serviceName),
		Environment: envutil.String("APP_ENV", ""),
		Version:     envutil.String("APP_VERSION", ""),
	})
	metrics := observability.Init(log)

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}
	services, err := wireServices(log, cfg, clients)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}
	handlers := wireHandlers(log, clients, services)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Clients:      clients,
		Services:     services,
		Metrics:      metrics,
		Router:       wireRouter(log, cfg, metrics, serviceName, handlers),
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background loops that live as long as ctx.
func (a *App) Start(ctx context.Context) {
	a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	if a.Clients.Redis != nil {
		rdb := a.Clients.Redis
		a.Metrics.StartRedisCollector(ctx, a.Log, observability.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
	}
	if a.Services.Events != nil {
		err := a.Services.Events.Subscribe(ctx, func(ev domain.VersionEvent) {
			a.Log.Info("version event", "type", ev.Type, "document_id", ev.DocumentID, "version_id", ev.VersionID)
		})
		if err != nil {
			a.Log.Warn("version event subscription failed", "error", err)
		}
	}
}

// Run serves the API until ctx ends.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("HTTP server listening", "addr", a.Cfg.HTTPAddr)
	srv := &apphttp.Server{Engine: a.Router}
	return srv.Run(ctx, a.Cfg.HTTPAddr, a.Cfg.ShutdownTimeout)
}

// RunWorker polls the review task queue until ctx ends.
func (a *App) RunWorker(ctx context.Context) error {
	if a.Clients.Temporal == nil {
		return fmt.Errorf("worker requires TEMPORAL_ADDRESS")
	}
	runner, err := temporalworker.NewRunner(a.Log, a.Clients.Temporal, a.Services.Engine)
	if err != nil {
		return err
	}
	if err := runner.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.otelShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
		_ = a.otelShutdown(shutdownCtx)
		cancel()
	}
	a.Clients.Close()
	if a.Log != nil {
		a.Log.Sync()
	}
}
