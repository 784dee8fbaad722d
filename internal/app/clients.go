package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/docreview-backend/internal/modules/review/extraction"
	"github.com/yungbote/docreview-backend/internal/platform/gcp"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
	"github.com/yungbote/docreview-backend/internal/platform/objectstore"
	"github.com/yungbote/docreview-backend/internal/platform/openai"
	"github.com/yungbote/docreview-backend/internal/platform/redis"
	"github.com/yungbote/docreview-backend/internal/temporalx"
)

type ocrCloser interface {
	extraction.OCRProvider
	Close() error
}

// Clients holds the external connections. Every field except Store may be nil.
type Clients struct {
	Store    objectstore.Store
	OCR      extraction.OCRProvider
	Model    openai.Client
	Redis    *goredis.Client
	Temporal temporalsdkclient.Client

	closers []func() error
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (*Clients, error) {
	log.Info("Wiring clients...")
	c := &Clients{}

	store, ocrStore, err := resolveDocumentStore(log, cfg.Storage)
	if err != nil {
		return nil, err
	}
	c.Store = store
	if closer, ok := store.(interface{ Close() error }); ok {
		c.closers = append(c.closers, closer.Close)
	}

	if ocrStore != nil {
		ocr, err := newOCRProvider(log, cfg, ocrStore)
		if err != nil {
			c.Close()
			return nil, err
		}
		if ocr != nil {
			c.OCR = ocr
			c.closers = append(c.closers, ocr.Close)
		}
	}

	if openai.ConfigFromEnv().APIKey != "" {
		model, err := openai.NewClient(log)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init openai client: %w", err)
		}
		c.Model = model
	} else {
		log.Warn("OPENAI_API_KEY not set; model-assisted review and rewrite disabled")
	}

	if rcfg := redis.ConfigFromEnv(); rcfg.Enabled() {
		rdb, err := redis.Dial(ctx, rcfg)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init redis: %w", err)
		}
		c.Redis = rdb
		c.closers = append(c.closers, rdb.Close)
	}

	tc, err := temporalx.NewClient(ctx, log)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init temporal: %w", err)
	}
	if tc != nil {
		c.Temporal = tc
		c.closers = append(c.closers, func() error { tc.Close(); return nil })
	}
	return c, nil
}

func newOCRProvider(log *logger.Logger, cfg Config, store gcp.OCRStore) (ocrCloser, error) {
	switch cfg.OCRProvider {
	case OCRProviderVision:
		v, err := gcp.NewVisionOCR(log, store, cfg.VisionOutputPrefix)
		if err != nil {
			return nil, fmt.Errorf("init vision ocr: %w", err)
		}
		return v, nil
	case OCRProviderDocumentAI:
		d, err := gcp.NewDocumentAIOCR(log, store, gcp.DocumentAIConfigFromEnv())
		if err != nil {
			return nil, fmt.Errorf("init document ai ocr: %w", err)
		}
		return d, nil
	default:
		log.Warn("OCR disabled; documents are read as plain text")
		return nil, nil
	}
}

// Close releases connections in reverse order of creation.
func (c *Clients) Close() {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
	c.closers = nil
}
