package extraction

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/yungbote/docreview-backend/internal/domain"
)

var (
	errNoStore    = errors.New("no object store configured")
	errNotTextual = errors.New("content type is not textual")
	errEmptyBody  = errors.New("document body is empty")
)

// IsTextual reports whether a declared content type may be read as plain text.
func IsTextual(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "text/") || mediaType == "application/json"
}

func (e *Extractor) readPlain(ctx context.Context, ref domain.DocumentRef) (string, error) {
	if e.Store == nil {
		return "", errNoStore
	}
	data, storedType, err := e.Store.Get(ctx, ref.StorageKey)
	if err != nil {
		return "", fmt.Errorf("read %q: %w", ref.StorageKey, err)
	}
	declared := strings.TrimSpace(ref.ContentType)
	if declared == "" {
		declared = storedType
	}
	if !IsTextual(declared) {
		return "", fmt.Errorf("%q: %w", declared, errNotTextual)
	}
	text, err := decodeText(data, declared)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errEmptyBody
	}
	return text, nil
}

// decodeText converts body to UTF-8 using the charset parameter of contentType. Without a
// charset the body is taken as UTF-8; invalid sequences become U+FFFD.
func decodeText(body []byte, contentType string) (string, error) {
	_, params, _ := mime.ParseMediaType(contentType)
	charset := strings.ToLower(strings.TrimSpace(params["charset"]))
	switch charset {
	case "", "utf-8", "utf8", "us-ascii":
	default:
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return "", fmt.Errorf("unsupported charset %q: %w", charset, err)
		}
		decoded, err := enc.NewDecoder().Bytes(body)
		if err != nil {
			return "", fmt.Errorf("decode %s: %w", charset, err)
		}
		body = decoded
	}
	text := strings.TrimPrefix(string(body), "\ufeff")
	return strings.ToValidUTF8(text, "\ufffd"), nil
}
