package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/yungbote/docreview-backend/internal/domain"
	"github.com/yungbote/docreview-backend/internal/platform/ctxutil"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
)

// VisionOCR runs Cloud Vision DOCUMENT_TEXT_DETECTION as an async file job. The job id
// carries the long-running operation name and the output folder it writes JSON into.
type VisionOCR struct {
	log          *logger.Logger
	visionClient *vision.ImageAnnotatorClient
	store        OCRStore
	outputPrefix string
	batchSize    int32
}

func NewVisionOCR(log *logger.Logger, store OCRStore, outputPrefix string) (*VisionOCR, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if store == nil {
		return nil, fmt.Errorf("store required")
	}
	ctx := context.Background()
	vClient, err := vision.NewImageAnnotatorClient(ctx, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	if strings.TrimSpace(outputPrefix) == "" {
		outputPrefix = "ocr-output/vision"
	}
	return &VisionOCR{
		log:          log.With("service", "gcp.VisionOCR"),
		visionClient: vClient,
		store:        store,
		outputPrefix: outputPrefix,
		batchSize:    10,
	}, nil
}

func (s *VisionOCR) Close() error {
	if s == nil || s.visionClient == nil {
		return nil
	}
	return s.visionClient.Close()
}

func visionSupports(mediaType string) bool {
	switch mediaType {
	case "application/pdf", "image/tiff", "image/gif":
		return true
	default:
		return false
	}
}

func (s *VisionOCR) StartJob(ctx context.Context, storageKey, contentType string) (string, error) {
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	mediaType := normalizeMediaType(contentType)
	if mediaType == "" {
		mediaType = normalizeMediaType(contentTypeForKey(storageKey))
	}
	if !visionSupports(mediaType) {
		return "", fmt.Errorf("vision %q: %w", mediaType, ErrUnsupportedContentType)
	}

	outPrefix := jobOutputPrefix(s.outputPrefix)
	req := &visionpb.AsyncBatchAnnotateFilesRequest{
		Requests: []*visionpb.AsyncAnnotateFileRequest{
			{
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				InputConfig: &visionpb.InputConfig{
					GcsSource: &visionpb.GcsSource{Uri: s.store.URI(storageKey)},
					MimeType:  mediaType,
				},
				OutputConfig: &visionpb.OutputConfig{
					GcsDestination: &visionpb.GcsDestination{Uri: s.store.URI(outPrefix)},
					BatchSize:      s.batchSize,
				},
			},
		},
	}
	op, err := s.visionClient.AsyncBatchAnnotateFiles(ctx, req)
	if err != nil {
		return "", fmt.Errorf("vision AsyncBatchAnnotateFiles: %w", err)
	}
	s.log.Debug("vision job started", "operation", op.Name(), "storage_key", storageKey, "output_prefix", outPrefix)
	return encodeJobID(op.Name(), outPrefix), nil
}

func (s *VisionOCR) PollJob(ctx context.Context, jobID string) (domain.OCRJobStatus, error) {
	ctx = ctxutil.Default(ctx)
	opName, outPrefix, err := decodeJobID(jobID)
	if err != nil {
		return domain.OCRJobStatus{State: domain.OCRJobFailed, Detail: err.Error()}, nil
	}

	pollCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	op := s.visionClient.AsyncBatchAnnotateFilesOperation(opName)
	if _, err := op.Poll(pollCtx); err != nil {
		if op.Done() {
			return domain.OCRJobStatus{State: domain.OCRJobFailed, Detail: err.Error()}, nil
		}
		return domain.OCRJobStatus{State: domain.OCRJobRunning}, fmt.Errorf("vision poll %s: %w", opName, err)
	}
	if !op.Done() {
		return domain.OCRJobStatus{State: domain.OCRJobRunning}, nil
	}

	lines, err := s.collectLines(ctx, outPrefix)
	if err != nil {
		return domain.OCRJobStatus{State: domain.OCRJobFailed, Detail: err.Error()}, nil
	}
	if err := s.store.DeletePrefix(ctx, outPrefix); err != nil {
		s.log.Warn("vision output cleanup failed", "output_prefix", outPrefix, "error", err)
	}
	return domain.OCRJobStatus{State: domain.OCRJobSucceeded, Lines: lines}, nil
}

func (s *VisionOCR) collectLines(ctx context.Context, outPrefix string) ([]string, error) {
	keys, err := listJSONKeys(ctx, s.store, outPrefix)
	if err != nil {
		return nil, fmt.Errorf("list vision output: %w", err)
	}
	lines := []string{}
	for _, key := range keys {
		b, _, err := s.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read vision output %s: %w", key, err)
		}
		pageLines, err := parseVisionOutputLines(b)
		if err != nil {
			s.log.Warn("vision output unreadable", "key", key, "error", err)
			continue
		}
		lines = append(lines, pageLines...)
	}
	return lines, nil
}

// parseVisionOutputLines reads one AsyncBatchAnnotateFiles output shard. Responses appear in page
// order; per-page errors are skipped.
func parseVisionOutputLines(b []byte) ([]string, error) {
	var shard struct {
		Responses []struct {
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
			Context struct {
				PageNumber int `json:"pageNumber"`
			} `json:"context"`
			FullTextAnnotation *struct {
				Text string `json:"text"`
			} `json:"fullTextAnnotation"`
		} `json:"responses"`
	}
	if err := json.Unmarshal(b, &shard); err != nil {
		return nil, fmt.Errorf("decode vision shard: %w", err)
	}
	out := []string{}
	for _, r := range shard.Responses {
		if r.Error != nil && r.Error.Message != "" {
			continue
		}
		if r.FullTextAnnotation == nil {
			continue
		}
		out = append(out, splitLines(r.FullTextAnnotation.Text)...)
	}
	return out, nil
}
