package versions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/docreview-backend/internal/domain"
	pkgerrors "github.com/yungbote/docreview-backend/internal/pkg/errors"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
	"github.com/yungbote/docreview-backend/internal/platform/objectstore"
)

type flakyStore struct {
	*objectstore.MemoryStore
	listErr error
	putErr  error
	headErr func(key string) error
}

func (s *flakyStore) ListByPrefix(ctx context.Context, prefix string) ([]objectstore.ObjectInfo, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.MemoryStore.ListByPrefix(ctx, prefix)
}

func (s *flakyStore) Put(ctx context.Context, key string, data []byte, contentType string, md map[string]string) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.MemoryStore.Put(ctx, key, data, contentType, md)
}

func (s *flakyStore) Head(ctx context.Context, key string) (*objectstore.ObjectAttrs, error) {
	if s.headErr != nil {
		if err := s.headErr(key); err != nil {
			return nil, err
		}
	}
	return s.MemoryStore.Head(ctx, key)
}

type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

type fakeLocker struct {
	err      error
	locked   []string
	released int
}

func (l *fakeLocker) Lock(ctx context.Context, documentID string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.locked = append(l.locked, documentID)
	return func() { l.released++ }, nil
}

type fakePublisher struct {
	err    error
	events []domain.VersionEvent
}

func (p *fakePublisher) PublishVersionEvent(ctx context.Context, ev domain.VersionEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func newTestManager(store objectstore.Store, opts ...Option) *Manager {
	clock := &stepClock{cur: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	n := 0
	opts = append([]Option{
		WithClock(clock.Now),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("v%03d", n) }),
	}, opts...)
	return NewManager(logger.NewNop(), store, opts...)
}

func putVersion(t *testing.T, store objectstore.Store, doc, id, number string, created time.Time) {
	t.Helper()
	md := map[string]string{metaVersionID: id}
	if number != "" {
		md[metaVersionNumber] = number
	}
	if !created.IsZero() {
		md[metaCreatedAt] = created.Format(time.RFC3339Nano)
	}
	require.NoError(t, store.Put(context.Background(), VersionKey(doc, id), []byte("text "+id), snapshotContentType, md))
}

func TestNextVersionNumber(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemoryStore()
	m := newTestManager(store)

	n, err := m.NextVersionNumber(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, n)

	putVersion(t, store, "doc-1", "a", "1", time.Time{})
	putVersion(t, store, "doc-1", "b", "2", time.Time{})
	putVersion(t, store, "doc-1", "c", "2.5", time.Time{})
	n, err = m.NextVersionNumber(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 3.0, n)
}

func TestNextVersionNumberTreatsBadMetadataAsOne(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemoryStore()
	putVersion(t, store, "doc-1", "a", "not-a-number", time.Time{})
	putVersion(t, store, "doc-1", "b", "", time.Time{})
	putVersion(t, store, "doc-1", "c", "-4", time.Time{})

	n, err := newTestManager(store).NextVersionNumber(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2.0, n)

	// unreadable metadata also counts as 1.0
	putVersion(t, store, "doc-2", "a", "7", time.Time{})
	flaky := &flakyStore{MemoryStore: store, headErr: func(string) error { return errors.New("head timeout") }}
	n, err = newTestManager(flaky).NextVersionNumber(ctx, "doc-2")
	require.NoError(t, err)
	assert.Equal(t, 2.0, n)
}

func TestSaveVersionTwiceNumbersAndOrders(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemoryStore()
	m := newTestManager(store)

	first, err := m.SaveVersion(ctx, SaveRequest{DocumentID: "doc-1", CaseID: "case-9", Text: "draft one", VersionType: "reviewed"})
	require.NoError(t, err)
	second, err := m.SaveVersion(ctx, SaveRequest{DocumentID: "doc-1", CaseID: "case-9", Text: "draft two", VersionType: "fixed", FixedIssueIDs: []string{"shall-passive-4", " "}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, first.VersionNumber)
	assert.Equal(t, 2.0, second.VersionNumber)
	assert.Equal(t, []string{"shall-passive-4"}, second.FixedIssueIDs)
	assert.Equal(t, "doc-1/versions/v002", second.StorageKey)

	h, err := m.ListVersions(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, h.Degraded)
	require.Len(t, h.Versions, 2)
	assert.Equal(t, first.VersionID, h.Versions[0].VersionID)
	assert.Equal(t, second.VersionID, h.Versions[1].VersionID)
	assert.True(t, h.Versions[0].CreatedAt.Before(h.Versions[1].CreatedAt))
	assert.False(t, h.Versions[0].IsLatest)
	assert.True(t, h.Versions[1].IsLatest)
	assert.Equal(t, domain.VersionTypeFixed, h.Versions[1].VersionType)
	assert.Equal(t, "case-9", h.Versions[1].CaseID)
	assert.Equal(t, []string{"shall-passive-4"}, h.Versions[1].FixedIssueIDs)

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, 2.0, latest.VersionNumber)
}

func TestSaveVersionValidation(t *testing.T) {
	m := newTestManager(objectstore.NewMemoryStore())
	ctx := context.Background()

	_, err := m.SaveVersion(ctx, SaveRequest{DocumentID: "", Text: "x"})
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidArgument))

	_, err = m.SaveVersion(ctx, SaveRequest{DocumentID: "a/b", Text: "x"})
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidArgument))

	_, err = m.SaveVersion(ctx, SaveRequest{DocumentID: "doc", Text: "x", VersionType: "draft"})
	assert.True(t, errors.Is(err, ErrInvalidVersionType))

	v, err := m.SaveVersion(ctx, SaveRequest{DocumentID: "doc", Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, domain.VersionTypeReviewed, v.VersionType)
}

func TestSaveVersionStorageFailuresAreFatal(t *testing.T) {
	ctx := context.Background()

	writeFail := &flakyStore{MemoryStore: objectstore.NewMemoryStore(), putErr: errors.New("bucket quota exceeded")}
	_, err := newTestManager(writeFail).SaveVersion(ctx, SaveRequest{DocumentID: "doc", Text: "x"})
	assert.True(t, errors.Is(err, ErrStorageWrite))

	listFail := &flakyStore{MemoryStore: objectstore.NewMemoryStore(), listErr: errors.New("permission denied")}
	_, err = newTestManager(listFail).SaveVersion(ctx, SaveRequest{DocumentID: "doc", Text: "x"})
	assert.True(t, errors.Is(err, ErrStorageRead))
}

func TestListVersionsDegradesOnListingFailure(t *testing.T) {
	store := &flakyStore{MemoryStore: objectstore.NewMemoryStore(), listErr: errors.New("connection reset")}
	h, err := newTestManager(store).ListVersions(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.True(t, h.Degraded)
	assert.Contains(t, h.Diagnostic, "connection reset")
	assert.Empty(t, h.Versions)
}

func TestListVersionsSyntheticOriginal(t *testing.T) {
	h, err := newTestManager(objectstore.NewMemoryStore()).ListVersions(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, h.Versions, 1)
	v := h.Versions[0]
	assert.True(t, v.Synthetic)
	assert.True(t, v.IsLatest)
	assert.Equal(t, domain.VersionTypeOriginal, v.VersionType)
	assert.Equal(t, 1.0, v.VersionNumber)
}

func TestListVersionsOrdersByCreationThenNumber(t *testing.T) {
	store := objectstore.NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	putVersion(t, store, "doc-1", "z", "3", base.Add(2*time.Hour))
	putVersion(t, store, "doc-1", "y", "2", base.Add(time.Hour))
	putVersion(t, store, "doc-1", "x", "1", base.Add(time.Hour))
	putVersion(t, store, "doc-other", "w", "9", base)

	h, err := newTestManager(store).ListVersions(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, h.Versions, 3)
	assert.Equal(t, []string{"x", "y", "z"}, []string{h.Versions[0].VersionID, h.Versions[1].VersionID, h.Versions[2].VersionID})
	assert.True(t, h.Versions[2].IsLatest)
}

func TestGetVersion(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(objectstore.NewMemoryStore())
	saved, err := m.SaveVersion(ctx, SaveRequest{DocumentID: "doc-1", CaseID: "case-1", Text: "body", OriginalFilename: "msa.pdf"})
	require.NoError(t, err)

	got, err := m.GetVersion(ctx, "doc-1", saved.VersionID)
	require.NoError(t, err)
	assert.Equal(t, "body", got.ContentSnapshot)
	assert.Equal(t, "msa.pdf", got.OriginalFilename)
	assert.Equal(t, saved.VersionNumber, got.VersionNumber)
	assert.True(t, saved.CreatedAt.Equal(got.CreatedAt))

	_, err = m.GetVersion(ctx, "doc-1", "missing")
	assert.True(t, errors.Is(err, ErrVersionNotFound))
}

func TestSaveVersionUsesLockAndPublishes(t *testing.T) {
	ctx := context.Background()
	locker := &fakeLocker{}
	pub := &fakePublisher{err: errors.New("redis down")}
	m := newTestManager(objectstore.NewMemoryStore(), WithLocker(locker), WithEvents(pub))

	v, err := m.SaveVersion(ctx, SaveRequest{DocumentID: "doc-1", Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1"}, locker.locked)
	assert.Equal(t, 1, locker.released)
	require.Len(t, pub.events, 1)
	assert.Equal(t, domain.EventVersionSaved, pub.events[0].Type)
	assert.Equal(t, v.VersionID, pub.events[0].VersionID)

	locker.err = errors.New("timeout")
	_, err = m.SaveVersion(ctx, SaveRequest{DocumentID: "doc-1", Text: "y"})
	assert.True(t, errors.Is(err, ErrVersionLocked))
}
