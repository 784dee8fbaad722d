package gcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/yungbote/docreview-backend/internal/platform/logger"
	"github.com/yungbote/docreview-backend/internal/platform/objectstore"
)

// DocumentStore is the GCS-backed objectstore.Store holding uploaded documents, OCR output and versions.
type DocumentStore struct {
	log           *logger.Logger
	storageClient *storage.Client
	storageMode   ObjectStorageMode
	emulatorHost  string
	bucket        string
	httpClient    *http.Client
}

var _ objectstore.Store = (*DocumentStore)(nil)

func NewDocumentStore(log *logger.Logger) (*DocumentStore, error) {
	storageCfg, err := ResolveObjectStorageConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("resolve object storage config: %w", err)
	}
	return NewDocumentStoreWithConfig(log, storageCfg)
}

func NewDocumentStoreWithConfig(log *logger.Logger, storageCfg ObjectStorageConfig) (*DocumentStore, error) {
	if err := ValidateObjectStorageConfig(storageCfg); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	if storageCfg.IsMemoryMode() {
		return nil, fmt.Errorf("object storage mode %q is not served by GCS", storageCfg.Mode)
	}
	serviceLog := log.With("service", "DocumentStore")

	ctx := context.Background()
	stClient, err := newStorageClientForMode(ctx, storageCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog.Info(
		"Object storage initialized",
		"mode", storageCfg.Mode,
		"mode_source", storageCfg.ModeSource(),
		"emulator_host", storageCfg.EmulatorHost,
		"bucket", storageCfg.Bucket,
	)

	return &DocumentStore{
		log:           serviceLog,
		storageClient: stClient,
		storageMode:   storageCfg.Mode,
		emulatorHost:  strings.TrimRight(strings.TrimSpace(storageCfg.EmulatorHost), "/"),
		bucket:        storageCfg.Bucket,
		httpClient:    http.DefaultClient,
	}, nil
}

func newStorageClientForMode(ctx context.Context, storageCfg ObjectStorageConfig) (*storage.Client, error) {
	switch storageCfg.Mode {
	case ObjectStorageModeGCS:
		opts := ClientOptionsFromEnv()
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case ObjectStorageModeGCSEmulator:
		endpoint := strings.TrimRight(strings.TrimSpace(storageCfg.EmulatorHost), "/")
		_ = os.Setenv("STORAGE_EMULATOR_HOST", endpoint)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &ObjectStorageConfigError{
			Code: ObjectStorageConfigErrorInvalidMode,
			Mode: string(storageCfg.Mode),
		}
	}
}

// Bucket is the name of the bucket all keys are relative to.
func (s *DocumentStore) Bucket() string { return s.bucket }

// URI renders a gs:// URI for key.
func (s *DocumentStore) URI(key string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, strings.TrimLeft(key, "/"))
}

func (s *DocumentStore) Close() error {
	if s == nil || s.storageClient == nil {
		return nil
	}
	return s.storageClient.Close()
}

func (s *DocumentStore) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.storageClient.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if w.ContentType == "" {
		w.ContentType = contentTypeForKey(key)
	}
	if len(metadata) > 0 {
		w.Metadata = maps.Clone(metadata)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if s.isEmulatorMode() {
		return s.emulatorGet(ctx, key)
	}
	r, err := s.storageClient.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, "", s.wrapErr("open GCS reader", key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("read GCS object %q: %w", key, err)
	}
	return data, r.Attrs.ContentType, nil
}

func (s *DocumentStore) Head(ctx context.Context, key string) (*objectstore.ObjectAttrs, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if s.isEmulatorMode() {
		return s.emulatorHead(ctx, key)
	}
	attrs, err := s.storageClient.Bucket(s.bucket).Object(key).Attrs(ctx)
	if err != nil {
		return nil, s.wrapErr("fetch GCS object attrs", key, err)
	}
	return &objectstore.ObjectAttrs{
		Key:         key,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		Updated:     attrs.Updated,
		ETag:        attrs.Etag,
		Metadata:    maps.Clone(attrs.Metadata),
	}, nil
}

func (s *DocumentStore) ListByPrefix(ctx context.Context, prefix string) ([]objectstore.ObjectInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	it := s.storageClient.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	out := []objectstore.ObjectInfo{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list prefix %q: %w", prefix, err)
		}
		out = append(out, objectstore.ObjectInfo{
			Key:          attrs.Name,
			Size:         attrs.Size,
			LastModified: attrs.Updated,
		})
	}
	return out, nil
}

func (s *DocumentStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.storageClient.Bucket(s.bucket).Object(key).Delete(ctx); err != nil {
		return s.wrapErr("delete GCS object", key, err)
	}
	return nil
}

// DeletePrefix removes every object under prefix, logging and skipping individual failures.
func (s *DocumentStore) DeletePrefix(ctx context.Context, prefix string) error {
	objs, err := s.ListByPrefix(ctx, prefix)
	if err != nil {
		return err
	}
	for _, o := range objs {
		if err := s.Delete(ctx, o.Key); err != nil {
			s.log.Warn("delete under prefix failed", "prefix", prefix, "key", o.Key, "error", err)
		}
	}
	return nil
}

func (s *DocumentStore) wrapErr(op, key string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%s %q: %w", op, key, objectstore.ErrNotFound)
	}
	return fmt.Errorf("%s %q in bucket %q: %w", op, key, s.bucket, err)
}

func (s *DocumentStore) isEmulatorMode() bool {
	return s != nil && IsEmulatorObjectStorageMode(s.storageMode) && s.emulatorHost != ""
}

func (s *DocumentStore) emulatorObjectURL(key string, media bool) string {
	u := fmt.Sprintf("%s/storage/v1/b/%s/o/%s", s.emulatorHost, url.PathEscape(s.bucket), url.PathEscape(key))
	if media {
		u += "?alt=media"
	}
	return u
}

// Emulator reads go over the JSON API.
func (s *DocumentStore) emulatorGet(ctx context.Context, key string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.emulatorObjectURL(key, true), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed creating emulator download request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed emulator download request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, "", fmt.Errorf("emulator download %q: %w", key, objectstore.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, "", fmt.Errorf("emulator download failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read emulator body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (s *DocumentStore) emulatorHead(ctx context.Context, key string) (*objectstore.ObjectAttrs, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.emulatorObjectURL(key, false), nil)
	if err != nil {
		return nil, fmt.Errorf("failed creating emulator attrs request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed emulator attrs request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("emulator attrs %q: %w", key, objectstore.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("emulator attrs failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return decodeEmulatorAttrs(key, resp.Body)
}

func decodeEmulatorAttrs(key string, r io.Reader) (*objectstore.ObjectAttrs, error) {
	var payload struct {
		Size        string            `json:"size"`
		ContentType string            `json:"contentType"`
		Updated     string            `json:"updated"`
		ETag        string            `json:"etag"`
		Metadata    map[string]string `json:"metadata"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode emulator attrs: %w", err)
	}
	size, _ := strconv.ParseInt(strings.TrimSpace(payload.Size), 10, 64)
	updated := time.Time{}
	if ts := strings.TrimSpace(payload.Updated); ts != "" {
		if parsed, parseErr := time.Parse(time.RFC3339, ts); parseErr == nil {
			updated = parsed
		}
	}
	return &objectstore.ObjectAttrs{
		Key:         key,
		Size:        size,
		ContentType: payload.ContentType,
		Updated:     updated,
		ETag:        payload.ETag,
		Metadata:    payload.Metadata,
	}, nil
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch {
	case strings.HasSuffix(s, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(s, ".tif"), strings.HasSuffix(s, ".tiff"):
		return "image/tiff"
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".txt"), strings.HasSuffix(s, ".md"):
		return "text/plain; charset=utf-8"
	case strings.HasSuffix(s, ".html"), strings.HasSuffix(s, ".htm"):
		return "text/html; charset=utf-8"
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	default:
		return ""
	}
}
