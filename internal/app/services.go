package app

import (
	"fmt"

	"github.com/yungbote/docreview-backend/internal/modules/review"
	"github.com/yungbote/docreview-backend/internal/modules/review/detect"
	"github.com/yungbote/docreview-backend/internal/modules/review/extraction"
	"github.com/yungbote/docreview-backend/internal/modules/review/fix"
	"github.com/yungbote/docreview-backend/internal/modules/review/versions"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
	"github.com/yungbote/docreview-backend/internal/platform/redis"
	"github.com/yungbote/docreview-backend/internal/temporalx"
	"github.com/yungbote/docreview-backend/internal/temporalx/reviewrun"
)

type Services struct {
	Engine *review.Engine
	Events *redis.EventBus
	// Jobs is nil when Temporal is not configured.
	Jobs *reviewrun.Jobs
}

func wireServices(log *logger.Logger, cfg Config, clients *Clients) (Services, error) {
	log.Info("Wiring services...")

	rules := detect.LoadRuleSet(log)
	detector, err := detect.New(log, rules, clients.Model)
	if err != nil {
		return Services{}, fmt.Errorf("init detector: %w", err)
	}

	var opts []versions.Option
	var events *redis.EventBus
	if clients.Redis != nil {
		opts = append(opts, versions.WithLocker(redis.NewLocker(log, clients.Redis, cfg.VersionLockTTL, cfg.VersionLockWait)))
		events = redis.NewEventBus(log, clients.Redis, redis.ConfigFromEnv().Channel)
		opts = append(opts, versions.WithEvents(events))
	}

	engine, err := review.NewEngine(log, review.Deps{
		Extractor:       extraction.New(log, clients.Store, clients.OCR),
		Detector:        detector,
		Fixer:           fix.NewApplier(rules, cfg.FixScope),
		Versions:        versions.NewManager(log, clients.Store, opts...),
		Model:           clients.Model,
		ExternalEnabled: cfg.ExternalEnabled,
	})
	if err != nil {
		return Services{}, err
	}

	svc := Services{Engine: engine, Events: events}
	if clients.Temporal != nil {
		svc.Jobs = reviewrun.NewJobs(clients.Temporal, temporalx.LoadConfig().TaskQueue)
	}
	return svc, nil
}
