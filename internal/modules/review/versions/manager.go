// Package versions persists numbered, append-only snapshots of a document's text.
package versions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/docreview-backend/internal/domain"
	pkgerrors "github.com/yungbote/docreview-backend/internal/pkg/errors"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
	"github.com/yungbote/docreview-backend/internal/platform/objectstore"
)

var (
	ErrInvalidVersionType = errors.New("invalid version type")
	ErrVersionNotFound    = errors.New("version not found")
	ErrVersionLocked      = errors.New("document version lock unavailable")
	// ErrStorageRead and ErrStorageWrite wrap object-store failures that abort a save.
	ErrStorageRead  = errors.New("version storage read failed")
	ErrStorageWrite = errors.New("version storage write failed")
)

// Locker serialises saves for one document. Release must be safe to call once.
type Locker interface {
	Lock(ctx context.Context, documentID string) (release func(), err error)
}

type EventPublisher interface {
	PublishVersionEvent(ctx context.Context, ev domain.VersionEvent) error
}

const defaultHeadConcurrency = 8

// Manager derives version numbers from stored metadata and writes new snapshots. Without a
// Locker two concurrent saves for one document may compute the same number.
type Manager struct {
	log    *logger.Logger
	store  objectstore.Store
	locker Locker
	events EventPublisher

	now             func() time.Time
	newID           func() string
	headConcurrency int
}

type Option func(*Manager)

func WithLocker(l Locker) Option { return func(m *Manager) { m.locker = l } }

func WithEvents(p EventPublisher) Option { return func(m *Manager) { m.events = p } }

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

func WithHeadConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.headConcurrency = n
		}
	}
}

func NewManager(log *logger.Logger, store objectstore.Store, opts ...Option) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	m := &Manager{
		log:             log.With("service", "VersionManager"),
		store:           store,
		now:             time.Now,
		newID:           uuid.NewString,
		headConcurrency: defaultHeadConcurrency,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SaveRequest describes one snapshot. An empty VersionType means reviewed.
type SaveRequest struct {
	DocumentID       string
	CaseID           string
	Text             string
	VersionType      string
	FixedIssueIDs    []string
	OriginalFilename string
}

type entry struct {
	info  objectstore.ObjectInfo
	attrs *objectstore.ObjectAttrs
}

func validateID(kind, id string) error {
	id = strings.TrimSpace(id)
	if id == "" || strings.Contains(id, "/") || id == "." || id == ".." {
		return fmt.Errorf("%w: %s %q", pkgerrors.ErrInvalidArgument, kind, id)
	}
	return nil
}

// loadEntries lists the document's versions and reads each one's metadata in parallel. A
// failed Head leaves attrs nil; only the listing error is returned.
func (m *Manager) loadEntries(ctx context.Context, documentID string) ([]entry, error) {
	infos, err := m.store.ListByPrefix(ctx, VersionPrefix(documentID))
	if err != nil {
		return nil, err
	}
	entries := make([]entry, len(infos))
	var mu sync.Mutex
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.headConcurrency)
	for i, info := range infos {
		entries[i].info = info
		g.Go(func() error {
			attrs, err := m.store.Head(gctx, info.Key)
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				m.log.Warn("version metadata unreadable", "key", info.Key, "error", err)
				return nil
			}
			entries[i].attrs = attrs
			return nil
		})
	}
	_ = g.Wait()
	if failed > 0 {
		m.log.Warn("version metadata partially unavailable", "document_id", documentID, "failed", failed, "total", len(infos))
	}
	return entries, nil
}

func nextNumber(entries []entry) float64 {
	if len(entries) == 0 {
		return 1
	}
	highest := 0.0
	for _, e := range entries {
		md := map[string]string{}
		if e.attrs != nil {
			md = e.attrs.Metadata
		}
		if n := parseVersionNumber(md); n > highest {
			highest = n
		}
	}
	return math.Floor(highest) + 1
}

// NextVersionNumber is floor(max stored number)+1, or 1 when the document has no versions.
func (m *Manager) NextVersionNumber(ctx context.Context, documentID string) (float64, error) {
	if err := validateID("document id", documentID); err != nil {
		return 0, err
	}
	entries, err := m.loadEntries(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("%w: list %s: %v", ErrStorageRead, documentID, err)
	}
	return nextNumber(entries), nil
}

// SaveVersion writes text as the document's next version. Any storage failure is returned.
func (m *Manager) SaveVersion(ctx context.Context, req SaveRequest) (domain.Version, error) {
	if err := validateID("document id", req.DocumentID); err != nil {
		return domain.Version{}, err
	}
	vt := domain.VersionTypeReviewed
	if strings.TrimSpace(req.VersionType) != "" {
		parsed, ok := domain.ParseVersionType(req.VersionType)
		if !ok {
			return domain.Version{}, fmt.Errorf("%w: %q", ErrInvalidVersionType, req.VersionType)
		}
		vt = parsed
	}

	if m.locker != nil {
		release, err := m.locker.Lock(ctx, req.DocumentID)
		if err != nil {
			return domain.Version{}, fmt.Errorf("%w: %v", ErrVersionLocked, err)
		}
		defer release()
	}

	entries, err := m.loadEntries(ctx, req.DocumentID)
	if err != nil {
		m.log.Error("version listing failed during save", "document_id", req.DocumentID, "error", err)
		return domain.Version{}, fmt.Errorf("%w: list %s: %v", ErrStorageRead, req.DocumentID, err)
	}

	fixed := make([]string, 0, len(req.FixedIssueIDs))
	for _, id := range req.FixedIssueIDs {
		if id = strings.TrimSpace(id); id != "" {
			fixed = append(fixed, id)
		}
	}
	versionID := m.newID()
	v := domain.Version{
		VersionID:        versionID,
		DocumentID:       req.DocumentID,
		CaseID:           req.CaseID,
		VersionNumber:    nextNumber(entries),
		VersionType:      vt,
		CreatedAt:        m.now().UTC(),
		StorageKey:       VersionKey(req.DocumentID, versionID),
		OriginalFilename: req.OriginalFilename,
		ContentSnapshot:  req.Text,
		FixedIssueIDs:    fixed,
		IsLatest:         true,
	}
	if err := m.store.Put(ctx, v.StorageKey, []byte(req.Text), snapshotContentType, encodeMetadata(v)); err != nil {
		m.log.Error("version write failed", "document_id", req.DocumentID, "key", v.StorageKey, "error", err)
		return domain.Version{}, fmt.Errorf("%w: %s: %v", ErrStorageWrite, v.StorageKey, err)
	}
	m.log.Info("version saved",
		"document_id", v.DocumentID,
		"case_id", v.CaseID,
		"version_id", v.VersionID,
		"version_number", v.VersionNumber,
		"version_type", string(v.VersionType),
	)

	if m.events != nil {
		if err := m.events.PublishVersionEvent(ctx, domain.NewVersionSavedEvent(v)); err != nil {
			m.log.Warn("version event publish failed", "document_id", v.DocumentID, "version_id", v.VersionID, "error", err)
		}
	}
	return v, nil
}

// ListVersions returns the history oldest first with the last entry marked latest. A listing
// failure degrades to an empty, flagged history. A document with no versions gets one
// synthetic original entry.
func (m *Manager) ListVersions(ctx context.Context, documentID string) (domain.VersionHistory, error) {
	if err := validateID("document id", documentID); err != nil {
		return domain.VersionHistory{}, err
	}
	h := domain.VersionHistory{DocumentID: documentID, Versions: []domain.Version{}}

	entries, err := m.loadEntries(ctx, documentID)
	if err != nil {
		m.log.Warn("version listing unavailable", "document_id", documentID, "error", err)
		h.Degraded = true
		h.Diagnostic = "version listing failed: " + err.Error()
		return h, nil
	}
	if len(entries) == 0 {
		h.Versions = append(h.Versions, m.syntheticOriginal(documentID))
		return h, nil
	}

	for _, e := range entries {
		h.Versions = append(h.Versions, decodeVersion(documentID, e.info, e.attrs))
	}
	sort.SliceStable(h.Versions, func(i, j int) bool {
		a, b := h.Versions[i], h.Versions[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.VersionNumber < b.VersionNumber
	})
	h.Versions[len(h.Versions)-1].IsLatest = true
	return h, nil
}

func (m *Manager) syntheticOriginal(documentID string) domain.Version {
	return domain.Version{
		VersionID:     "original",
		DocumentID:    documentID,
		VersionNumber: 1,
		VersionType:   domain.VersionTypeOriginal,
		CreatedAt:     m.now().UTC(),
		FixedIssueIDs: []string{},
		IsLatest:      true,
		Synthetic:     true,
	}
}

// GetVersion loads one stored snapshot with its metadata. IsLatest is not computed.
func (m *Manager) GetVersion(ctx context.Context, documentID, versionID string) (domain.Version, error) {
	if err := validateID("document id", documentID); err != nil {
		return domain.Version{}, err
	}
	if err := validateID("version id", versionID); err != nil {
		return domain.Version{}, err
	}
	key := VersionKey(documentID, versionID)
	data, _, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return domain.Version{}, fmt.Errorf("%w: %s/%s", ErrVersionNotFound, documentID, versionID)
		}
		return domain.Version{}, fmt.Errorf("%w: get %s: %v", ErrStorageRead, key, err)
	}
	attrs, err := m.store.Head(ctx, key)
	if err != nil {
		m.log.Warn("version metadata unreadable", "key", key, "error", err)
		attrs = nil
	}
	info := objectstore.ObjectInfo{Key: key, Size: int64(len(data))}
	if attrs != nil {
		info.LastModified = attrs.Updated
	}
	v := decodeVersion(documentID, info, attrs)
	v.ContentSnapshot = string(data)
	return v, nil
}
