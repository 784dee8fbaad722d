package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/docreview-backend/internal/domain"
	"github.com/yungbote/docreview-backend/internal/modules/review"
	"github.com/yungbote/docreview-backend/internal/modules/review/annotate"
	"github.com/yungbote/docreview-backend/internal/modules/review/detect"
	"github.com/yungbote/docreview-backend/internal/modules/review/extraction"
	"github.com/yungbote/docreview-backend/internal/modules/review/fix"
	"github.com/yungbote/docreview-backend/internal/modules/review/versions"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
	"github.com/yungbote/docreview-backend/internal/platform/objectstore"
)

func newDispatcher(t *testing.T) (*Dispatcher, *objectstore.MemoryStore) {
	t.Helper()
	log := logger.NewNop()
	store := objectstore.NewMemoryStore()
	det, err := detect.New(log, nil, nil)
	require.NoError(t, err)
	ex := extraction.New(log, store, nil)
	ex.PollInterval = 0
	eng, err := review.NewEngine(log, review.Deps{
		Extractor: ex,
		Detector:  det,
		Fixer:     fix.NewApplier(nil, fix.ScopeGlobal),
		Versions:  versions.NewManager(log, store),
	})
	require.NoError(t, err)
	return NewDispatcher(log, eng), store
}

func call(t *testing.T, d *Dispatcher, req any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(req)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw)))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestReviewFixSaveRoundTrip(t *testing.T) {
	d, store := newDispatcher(t)
	require.NoError(t, store.Put(context.Background(), "case-1/doc-1/contract.txt",
		[]byte("The company disclaims liability without limitation."), "text/plain", nil))

	rec := call(t, d, Request{Action: ActionReview, StorageKey: "case-1/doc-1/contract.txt", DocumentID: "doc-1", CaseID: "case-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reviewed := decode[review.ReviewResult](t, rec)
	require.Len(t, reviewed.Issues, 1)

	rec = call(t, d, Request{Action: ActionFix, Text: reviewed.Text, Issues: reviewed.Issues, IssueID: reviewed.Issues[0].ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	fixed := decode[review.FixResult](t, rec)
	assert.Contains(t, fixed.Text, "liability cap")

	rec = call(t, d, Request{Action: ActionNextVersion, DocumentID: "doc-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"document_id":"doc-1","next_version_number":1}`, rec.Body.String())

	rec = call(t, d, Request{
		Action: ActionSaveVersion, DocumentID: "doc-1", CaseID: "case-1", Text: fixed.Text,
		VersionType: "fixed", FixedIssueIDs: []string{fixed.FixedIssueID},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[struct {
		Version domain.Version `json:"version"`
	}](t, rec)
	assert.Equal(t, float64(1), saved.Version.VersionNumber)
	assert.Equal(t, domain.VersionTypeFixed, saved.Version.VersionType)

	rec = call(t, d, Request{Action: ActionListVersions, DocumentID: "doc-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	hist := decode[domain.VersionHistory](t, rec)
	require.Len(t, hist.Versions, 1)
	assert.True(t, hist.Versions[0].IsLatest)

	rec = call(t, d, Request{Action: ActionGetVersion, DocumentID: "doc-1", VersionID: saved.Version.VersionID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "liability cap")
}

func TestDispatchErrors(t *testing.T) {
	d, _ := newDispatcher(t)
	cases := []struct {
		name   string
		req    Request
		status int
		code   string
	}{
		{"unknown action", Request{Action: "delete_everything"}, http.StatusBadRequest, "unknown_action"},
		{"missing reference", Request{Action: ActionReview}, http.StatusBadRequest, "missing_input"},
		{"missing issue", Request{Action: ActionFix, Text: "x", IssueID: "nope"}, http.StatusNotFound, "issue_not_found"},
		{"rewrite without model", Request{Action: ActionRewrite, Text: "x"}, http.StatusServiceUnavailable, "model_unavailable"},
		{"bad version type", Request{Action: ActionSaveVersion, DocumentID: "doc-1", Text: "x", VersionType: "draft"}, http.StatusBadRequest, "invalid_version_type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := call(t, d, tc.req)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			var env struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestServeHTTPRejectsNonPost(t *testing.T) {
	d, _ := newDispatcher(t)
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))

	rec = httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRenderAction(t *testing.T) {
	d, _ := newDispatcher(t)
	res, err := d.Dispatch(context.Background(), Request{Action: "RENDER", Text: "a & b"})
	require.NoError(t, err)
	view, ok := res.(annotate.View)
	require.True(t, ok)
	assert.Equal(t, "a &amp; b", view.HTML)
	assert.Empty(t, view.Spans)
}
