package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/docreview-backend/internal/modules/review/fix"
	"github.com/yungbote/docreview-backend/internal/platform/envutil"
	"github.com/yungbote/docreview-backend/internal/platform/gcp"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
)

const (
	OCRProviderVision     = "vision"
	OCRProviderDocumentAI = "documentai"
	OCRProviderNone       = "none"
)

type Config struct {
	HTTPAddr        string
	MetricsAddr     string
	JWTSecretKey    string
	ShutdownTimeout time.Duration

	Storage     gcp.ObjectStorageConfig
	OCRProvider string
	// VisionOutputPrefix is where Vision writes its JSON results inside the document bucket.
	VisionOutputPrefix string

	FixScope        fix.Scope
	ExternalEnabled bool

	VersionLockTTL  time.Duration
	VersionLockWait time.Duration
}

func LoadConfig(log *logger.Logger) (Config, error) {
	storageCfg, err := gcp.ResolveObjectStorageConfigFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("object storage config: %w", err)
	}
	scope, ok := fix.ParseScope(envutil.String("REVIEW_FIX_SCOPE", ""))
	if !ok {
		return Config{}, fmt.Errorf("invalid REVIEW_FIX_SCOPE %q (allowed: %q, %q)", envutil.String("REVIEW_FIX_SCOPE", ""), fix.ScopeGlobal, fix.ScopeSpan)
	}
	ocr := strings.ToLower(envutil.String("OCR_PROVIDER", OCRProviderVision))
	switch ocr {
	case OCRProviderVision, OCRProviderDocumentAI, OCRProviderNone:
	default:
		return Config{}, fmt.Errorf("invalid OCR_PROVIDER %q", ocr)
	}
	if storageCfg.IsMemoryMode() && ocr != OCRProviderNone {
		log.Warn("OCR needs GCS-backed storage; disabling OCR", "ocr_provider", ocr, "storage_mode", storageCfg.Mode)
		ocr = OCRProviderNone
	}

	cfg := Config{
		HTTPAddr:           ":" + envutil.String("PORT", "8080"),
		MetricsAddr:        envutil.String("METRICS_ADDR", ""),
		JWTSecretKey:       envutil.String("JWT_SECRET_KEY", ""),
		ShutdownTimeout:    time.Duration(envutil.Int("SHUTDOWN_TIMEOUT_SECONDS", 15)) * time.Second,
		Storage:            storageCfg,
		OCRProvider:        ocr,
		VisionOutputPrefix: envutil.String("VISION_OUTPUT_PREFIX", "ocr-output/vision"),
		FixScope:           scope,
		ExternalEnabled:    envutil.Bool("REVIEW_EXTERNAL_ENABLED", false),
		VersionLockTTL:     envutil.Millis("VERSION_LOCK_TTL_MS", 15*time.Second),
		VersionLockWait:    envutil.Millis("VERSION_LOCK_WAIT_MS", 5*time.Second),
	}
	if cfg.JWTSecretKey == "" {
		log.Warn("JWT_SECRET_KEY not set; API routes are unauthenticated")
	}
	return cfg, nil
}
