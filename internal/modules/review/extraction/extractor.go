package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/docreview-backend/internal/domain"
	"github.com/yungbote/docreview-backend/internal/observability"
	"github.com/yungbote/docreview-backend/internal/platform/ctxutil"
	"github.com/yungbote/docreview-backend/internal/platform/envutil"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
	"github.com/yungbote/docreview-backend/internal/platform/objectstore"
)

const (
	DefaultPollInterval    = time.Second
	DefaultMaxPollAttempts = 40
)

// OCRProvider is an async OCR backend: start a job for a stored document, then poll it.
type OCRProvider interface {
	StartJob(ctx context.Context, storageKey, contentType string) (string, error)
	PollJob(ctx context.Context, jobID string) (domain.OCRJobStatus, error)
}

// Extractor turns a DocumentRef into text: OCR, then a direct plain-text read, then a placeholder.
// It never fails; the provenance on the result says which stage produced the text.
type Extractor struct {
	Log   *logger.Logger
	Store objectstore.Store
	OCR   OCRProvider

	PollInterval    time.Duration
	MaxPollAttempts int
}

func New(log *logger.Logger, store objectstore.Store, ocr OCRProvider) *Extractor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Extractor{
		Log:             log.With("component", "ReviewExtractor"),
		Store:           store,
		OCR:             ocr,
		PollInterval:    envutil.Millis("OCR_POLL_INTERVAL_MS", DefaultPollInterval),
		MaxPollAttempts: envutil.Int("OCR_POLL_MAX_ATTEMPTS", DefaultMaxPollAttempts),
	}
}

func (e *Extractor) Extract(ctx context.Context, ref domain.DocumentRef) domain.ExtractedText {
	ctx = ctxutil.Default(ctx)
	log := e.log().With("storage_key", ref.StorageKey, "document_id", ref.DocumentID)
	warnings := []string{}

	if e.OCR != nil {
		text, err := e.runOCR(ctx, ref)
		observability.Current().IncOCRJob(ocrOutcome(err))
		if err == nil {
			log.Debug("extraction stage succeeded", "stage", "ocr", "bytes", len(text))
			return domain.ExtractedText{Text: text, Provenance: domain.ProvenanceOCR, Warnings: warnings}
		}
		log.Warn("extraction stage skipped", "stage", "ocr", "error", err)
		warnings = append(warnings, "ocr: "+err.Error())
	}

	text, err := e.readPlain(ctx, ref)
	if err == nil {
		log.Debug("extraction stage succeeded", "stage", "plain-read", "bytes", len(text))
		return domain.ExtractedText{Text: text, Provenance: domain.ProvenancePlainRead, Warnings: warnings}
	}
	log.Warn("extraction stage skipped", "stage", "plain-read", "error", err)
	warnings = append(warnings, "plain-read: "+err.Error())

	log.Warn("extraction fell back to placeholder text")
	return domain.ExtractedText{
		Text:       PlaceholderText(ref.StorageKey),
		Provenance: domain.ProvenancePlaceholder,
		Warnings:   warnings,
	}
}

func (e *Extractor) log() *logger.Logger {
	if e.Log == nil {
		return logger.NewNop()
	}
	return e.Log
}

// PlaceholderText is the demo body returned when nothing could be extracted. It names the
// storage key so it is never mistaken for the document itself.
func PlaceholderText(storageKey string) string {
	key := strings.TrimSpace(storageKey)
	if key == "" {
		key = "(unknown)"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[Placeholder text: no extractable text was found for the document stored at %q.]\n", key)
	b.WriteString("\n")
	b.WriteString("SERVICES AGREEMENT\n")
	b.WriteString("The Supplier shall provide the Services promptly after each order.\n")
	b.WriteString("The Supplier accepts liability without limitation for any breach of this Agreement.\n")
	b.WriteString("This Agreement shall automatically renew for successive one-year terms.\n")
	return b.String()
}
