package gcp

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/yungbote/docreview-backend/internal/domain"
	"github.com/yungbote/docreview-backend/internal/platform/ctxutil"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
)

type DocumentAIConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
	OutputPrefix     string
}

func DocumentAIConfigFromEnv() DocumentAIConfig {
	cfg := DocumentAIConfig{
		ProjectID:        strings.TrimSpace(os.Getenv("GCP_PROJECT_ID")),
		Location:         strings.TrimSpace(os.Getenv("DOCUMENTAI_LOCATION")),
		ProcessorID:      strings.TrimSpace(os.Getenv("DOCUMENTAI_PROCESSOR_ID")),
		ProcessorVersion: strings.TrimSpace(os.Getenv("DOCUMENTAI_PROCESSOR_VERSION")),
		OutputPrefix:     strings.TrimSpace(os.Getenv("DOCUMENTAI_OUTPUT_PREFIX")),
	}
	if cfg.Location == "" {
		cfg.Location = "us"
	}
	if cfg.OutputPrefix == "" {
		cfg.OutputPrefix = "ocr-output/documentai"
	}
	return cfg
}

// DocumentAIOCR runs a Document AI OCR processor in batch mode against the stored document.
type DocumentAIOCR struct {
	log       *logger.Logger
	docClient *documentai.DocumentProcessorClient
	store     OCRStore
	cfg       DocumentAIConfig
	processor string
}

func NewDocumentAIOCR(log *logger.Logger, store OCRStore, cfg DocumentAIConfig) (*DocumentAIOCR, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if store == nil {
		return nil, fmt.Errorf("store required")
	}
	name := processorName(cfg.ProjectID, cfg.Location, cfg.ProcessorID, cfg.ProcessorVersion)
	if name == "" {
		return nil, fmt.Errorf("documentai requires GCP_PROJECT_ID, DOCUMENTAI_LOCATION and DOCUMENTAI_PROCESSOR_ID")
	}
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
	opts := append([]option.ClientOption{option.WithEndpoint(endpoint)}, ClientOptionsFromEnv()...)
	c, err := documentai.NewDocumentProcessorClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}
	slog := log.With("service", "gcp.DocumentAIOCR")
	slog.Info("Document AI initialized", "endpoint", endpoint, "processor", name)
	return &DocumentAIOCR{
		log:       slog,
		docClient: c,
		store:     store,
		cfg:       cfg,
		processor: name,
	}, nil
}

func (s *DocumentAIOCR) Close() error {
	if s == nil || s.docClient == nil {
		return nil
	}
	return s.docClient.Close()
}

func documentAISupports(mediaType string) bool {
	switch mediaType {
	case "application/pdf", "image/tiff", "image/gif", "image/jpeg", "image/png", "image/bmp", "image/webp":
		return true
	default:
		return false
	}
}

func (s *DocumentAIOCR) StartJob(ctx context.Context, storageKey, contentType string) (string, error) {
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	mediaType := normalizeMediaType(contentType)
	if mediaType == "" {
		mediaType = normalizeMediaType(contentTypeForKey(storageKey))
	}
	if !documentAISupports(mediaType) {
		return "", fmt.Errorf("documentai %q: %w", mediaType, ErrUnsupportedContentType)
	}

	outPrefix := jobOutputPrefix(s.cfg.OutputPrefix)
	req := &documentaipb.BatchProcessRequest{
		Name: s.processor,
		InputDocuments: &documentaipb.BatchDocumentsInputConfig{
			Source: &documentaipb.BatchDocumentsInputConfig_GcsDocuments{
				GcsDocuments: &documentaipb.GcsDocuments{
					Documents: []*documentaipb.GcsDocument{
						{GcsUri: s.store.URI(storageKey), MimeType: mediaType},
					},
				},
			},
		},
		DocumentOutputConfig: &documentaipb.DocumentOutputConfig{
			Destination: &documentaipb.DocumentOutputConfig_GcsOutputConfig_{
				GcsOutputConfig: &documentaipb.DocumentOutputConfig_GcsOutputConfig{
					GcsUri: s.store.URI(outPrefix),
				},
			},
		},
	}
	op, err := s.docClient.BatchProcessDocuments(ctx, req)
	if err != nil {
		return "", fmt.Errorf("documentai BatchProcessDocuments: %w", err)
	}
	s.log.Debug("documentai job started", "operation", op.Name(), "storage_key", storageKey, "output_prefix", outPrefix)
	return encodeJobID(op.Name(), outPrefix), nil
}

func (s *DocumentAIOCR) PollJob(ctx context.Context, jobID string) (domain.OCRJobStatus, error) {
	ctx = ctxutil.Default(ctx)
	opName, outPrefix, err := decodeJobID(jobID)
	if err != nil {
		return domain.OCRJobStatus{State: domain.OCRJobFailed, Detail: err.Error()}, nil
	}

	pollCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	op := s.docClient.BatchProcessDocumentsOperation(opName)
	if _, err := op.Poll(pollCtx); err != nil {
		if op.Done() {
			return domain.OCRJobStatus{State: domain.OCRJobFailed, Detail: err.Error()}, nil
		}
		return domain.OCRJobStatus{State: domain.OCRJobRunning}, fmt.Errorf("documentai poll %s: %w", opName, err)
	}
	if !op.Done() {
		return domain.OCRJobStatus{State: domain.OCRJobRunning}, nil
	}

	keys, err := listJSONKeys(ctx, s.store, outPrefix)
	if err != nil {
		return domain.OCRJobStatus{State: domain.OCRJobFailed, Detail: err.Error()}, nil
	}
	lines := []string{}
	for _, key := range keys {
		b, _, err := s.store.Get(ctx, key)
		if err != nil {
			return domain.OCRJobStatus{State: domain.OCRJobFailed, Detail: err.Error()}, nil
		}
		docLines, err := documentLines(b)
		if err != nil {
			s.log.Warn("documentai output unreadable", "key", key, "error", err)
			continue
		}
		lines = append(lines, docLines...)
	}
	if err := s.store.DeletePrefix(ctx, outPrefix); err != nil {
		s.log.Warn("documentai output cleanup failed", "output_prefix", outPrefix, "error", err)
	}
	return domain.OCRJobStatus{State: domain.OCRJobSucceeded, Lines: lines}, nil
}

// documentLines decodes one output shard and returns page lines via their text anchors.
// Shards without line layout fall back to the document text split on newlines.
func documentLines(b []byte) ([]string, error) {
	doc := &documentaipb.Document{}
	if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(b, doc); err != nil {
		return nil, fmt.Errorf("decode document shard: %w", err)
	}
	full := doc.GetText()
	out := []string{}
	for _, page := range doc.GetPages() {
		for _, line := range page.GetLines() {
			txt := collapseWhitespace(textFromAnchor(full, line.GetLayout().GetTextAnchor()))
			if txt != "" {
				out = append(out, txt)
			}
		}
	}
	if len(out) == 0 {
		out = splitLines(full)
	}
	return out, nil
}

func textFromAnchor(full string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil || len(anchor.TextSegments) == 0 || full == "" {
		return ""
	}
	var b strings.Builder
	for _, seg := range anchor.TextSegments {
		if seg == nil {
			continue
		}
		start := int(seg.StartIndex)
		end := int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > len(full) {
			end = len(full)
		}
		if start >= end {
			continue
		}
		b.WriteString(full[start:end])
	}
	return b.String()
}

func processorName(project, location, processorID, version string) string {
	project = strings.TrimSpace(project)
	location = strings.TrimSpace(location)
	processorID = strings.TrimSpace(processorID)
	version = strings.TrimSpace(version)

	if project == "" || location == "" || processorID == "" {
		return ""
	}
	base := fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processorID)
	if version != "" {
		return base + "/processorVersions/" + version
	}
	return base
}
