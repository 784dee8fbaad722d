package gcp

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/docreview-backend/internal/platform/objectstore"
)

var ErrUnsupportedContentType = errors.New("content type not supported by OCR provider")

// OCRStore is what the OCR providers need from the document bucket: reading the
// source by gs:// URI and collecting the JSON the provider writes back.
type OCRStore interface {
	objectstore.Store
	URI(key string) string
	DeletePrefix(ctx context.Context, prefix string) error
}

const jobIDSep = "|"

func encodeJobID(operation, outputPrefix string) string {
	return operation + jobIDSep + outputPrefix
}

func decodeJobID(jobID string) (operation, outputPrefix string, err error) {
	op, prefix, ok := strings.Cut(jobID, jobIDSep)
	if !ok || strings.TrimSpace(op) == "" || strings.TrimSpace(prefix) == "" {
		return "", "", fmt.Errorf("malformed OCR job id %q", jobID)
	}
	return op, prefix, nil
}

// jobOutputPrefix gives every job its own output folder so concurrent jobs never read each other's JSON.
func jobOutputPrefix(base string) string {
	base = strings.Trim(strings.TrimSpace(base), "/")
	if base == "" {
		base = "ocr-output"
	}
	return base + "/" + uuid.NewString() + "/"
}

func normalizeMediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// listJSONKeys returns the .json keys under prefix in lexical order, which both providers use for page order.
func listJSONKeys(ctx context.Context, store objectstore.Store, prefix string) ([]string, error) {
	objs, err := store.ListByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(objs))
	for _, o := range objs {
		if strings.HasSuffix(strings.ToLower(o.Key), ".json") {
			keys = append(keys, o.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// splitLines breaks provider text into non-empty lines, keeping provider order.
func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		line = collapseWhitespace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
