package review

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/docreview-backend/internal/domain"
	"github.com/yungbote/docreview-backend/internal/modules/review/detect"
	"github.com/yungbote/docreview-backend/internal/modules/review/extraction"
	"github.com/yungbote/docreview-backend/internal/modules/review/fix"
	"github.com/yungbote/docreview-backend/internal/modules/review/versions"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
	"github.com/yungbote/docreview-backend/internal/platform/objectstore"
	"github.com/yungbote/docreview-backend/internal/platform/openai"
)

type fakeModel struct {
	jsonFunc func(system, user string) (map[string]any, error)
	textFunc func(system, user string) (string, error)
	calls    int
}

func (f *fakeModel) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	f.calls++
	if f.jsonFunc == nil {
		return map[string]any{"issues": []any{}}, nil
	}
	return f.jsonFunc(system, user)
}

func (f *fakeModel) GenerateText(ctx context.Context, system, user string) (string, error) {
	f.calls++
	if f.textFunc == nil {
		return "", errors.New("no text func")
	}
	return f.textFunc(system, user)
}

func newTestEngine(t *testing.T, store objectstore.Store, model *fakeModel, external bool) *Engine {
	t.Helper()
	log := logger.NewNop()
	var client openai.Client
	if model != nil {
		client = model
	}
	det, err := detect.New(log, nil, client)
	require.NoError(t, err)
	ex := extraction.New(log, store, nil)
	ex.PollInterval = 0
	eng, err := NewEngine(log, Deps{
		Extractor:       ex,
		Detector:        det,
		Fixer:           fix.NewApplier(nil, fix.ScopeGlobal),
		Versions:        versions.NewManager(log, store),
		Model:           client,
		ExternalEnabled: external,
	})
	require.NoError(t, err)
	return eng
}

func putText(t *testing.T, store *objectstore.MemoryStore, key, body string) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), key, []byte(body), "text/plain; charset=utf-8", nil))
}

func TestNewEngineRequiresCollaborators(t *testing.T) {
	_, err := NewEngine(logger.NewNop(), Deps{})
	assert.Error(t, err)
}

func TestReviewRequiresReference(t *testing.T) {
	eng := newTestEngine(t, objectstore.NewMemoryStore(), nil, false)
	_, err := eng.Review(context.Background(), ReviewRequest{Ref: domain.DocumentRef{StorageKey: "k"}})
	assert.True(t, errors.Is(err, ErrMissingInput))
}

func TestReviewThenFixEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemoryStore()
	putText(t, store, "case-1/doc-1/contract.txt", "The company disclaims liability without limitation.")
	eng := newTestEngine(t, store, nil, false)

	res, err := eng.Review(ctx, ReviewRequest{Ref: domain.DocumentRef{
		StorageKey: "case-1/doc-1/contract.txt", CaseID: "case-1", DocumentID: "doc-1",
	}})
	require.NoError(t, err)
	assert.Equal(t, domain.ProvenancePlainRead, res.Provenance)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "no-liability", res.Issues[0].Category)
	assert.Equal(t, domain.SeverityHigh, res.Issues[0].Severity)
	require.Len(t, res.View.Spans, 1)
	assert.Contains(t, res.View.HTML, `data-category="no-liability"`)

	fixed, err := eng.ApplyFix(ctx, FixRequest{Text: res.Text, Issues: res.Issues, IssueID: res.Issues[0].ID})
	require.NoError(t, err)
	assert.Contains(t, fixed.Text, "liability cap of $100,000")
	assert.NotContains(t, fixed.Text, "without limitation")
	assert.Equal(t, res.Issues[0].ID, fixed.FixedIssueID)
	assert.Equal(t, fix.ScopeGlobal, fixed.Scope)
	require.Len(t, fixed.Issues, 1)
	assert.Equal(t, domain.CategoryNoIssues, fixed.Issues[0].Category)
	assert.Empty(t, fixed.View.Spans)
}

func TestReviewFallsBackToPlaceholderWithoutModel(t *testing.T) {
	model := &fakeModel{}
	eng := newTestEngine(t, objectstore.NewMemoryStore(), model, true)

	res, err := eng.Review(context.Background(), ReviewRequest{Ref: domain.DocumentRef{StorageKey: "missing/key.pdf", DocumentID: "doc-9"}})
	require.NoError(t, err)
	assert.Equal(t, domain.ProvenancePlaceholder, res.Provenance)
	assert.NotEmpty(t, strings.TrimSpace(res.Text))
	assert.False(t, res.ExternalUsed)
	assert.Equal(t, 0, model.calls)
	assert.NotEmpty(t, res.Warnings)
}

func TestReviewUsesModelWhenRequested(t *testing.T) {
	store := objectstore.NewMemoryStore()
	putText(t, store, "doc.txt", "The Supplier shall indemnify the Buyer for all losses whatsoever.")
	model := &fakeModel{jsonFunc: func(system, user string) (map[string]any, error) {
		return map[string]any{"issues": []any{map[string]any{
			"category": "broad-indemnity", "severity": "high", "original_text": "all losses whatsoever",
			"suggestion": "Limit to direct losses.", "suggested_text": "direct losses",
		}}}, nil
	}}
	eng := newTestEngine(t, store, model, false)
	ref := domain.DocumentRef{StorageKey: "doc.txt", DocumentID: "doc"}

	res, err := eng.Review(context.Background(), ReviewRequest{Ref: ref})
	require.NoError(t, err)
	assert.False(t, res.ExternalUsed)
	assert.Len(t, res.Issues, 1)

	on := true
	res, err = eng.Review(context.Background(), ReviewRequest{Ref: ref, UseExternal: &on})
	require.NoError(t, err)
	assert.True(t, res.ExternalUsed)
	require.Len(t, res.Issues, 2)
	assert.Equal(t, "broad-indemnity", res.Issues[1].Category)
	assert.Len(t, res.View.Spans, 2)
}

func TestApplyFixKeepsModelIssues(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemoryStore()
	putText(t, store, "doc.txt", "The Supplier indemnifies the Buyer for all losses whatsoever. The company disclaims liability without limitation.")
	model := &fakeModel{jsonFunc: func(system, user string) (map[string]any, error) {
		return map[string]any{"issues": []any{
			map[string]any{
				"category": "broad-indemnity", "severity": "high", "original_text": "all losses whatsoever",
				"suggestion": "Limit to direct losses.", "suggested_text": "direct losses",
			},
			map[string]any{
				"category": "open-ended-scope", "severity": "medium", "original_text": "liability without limitation",
				"suggestion": "Bound the liability.", "suggested_text": "",
			},
		}}, nil
	}}
	eng := newTestEngine(t, store, model, true)

	res, err := eng.Review(ctx, ReviewRequest{Ref: domain.DocumentRef{StorageKey: "doc.txt", DocumentID: "doc"}})
	require.NoError(t, err)
	require.True(t, res.ExternalUsed)
	var target string
	for _, is := range res.Issues {
		if is.Category == "no-liability" {
			target = is.ID
		}
	}
	require.NotEmpty(t, target)

	fixed, err := eng.ApplyFix(ctx, FixRequest{Text: res.Text, Issues: res.Issues, IssueID: target})
	require.NoError(t, err)

	cats := []string{}
	var indemnity domain.Issue
	for _, is := range fixed.Issues {
		cats = append(cats, is.Category)
		if is.Category == "broad-indemnity" {
			indemnity = is
		}
	}
	assert.NotContains(t, cats, domain.CategoryNoIssues)
	assert.NotContains(t, cats, "no-liability")
	assert.NotContains(t, cats, "open-ended-scope")
	require.Equal(t, "broad-indemnity", indemnity.Category)
	start, length, ok := indemnity.Span()
	require.True(t, ok)
	assert.Equal(t, "all losses whatsoever", fixed.Text[start:start+length])
	assert.Equal(t, "model", indemnity.Source)
	assert.Len(t, fixed.View.Spans, len(fixed.Issues))
}

func TestApplyFixCallerErrors(t *testing.T) {
	eng := newTestEngine(t, objectstore.NewMemoryStore(), nil, false)
	ctx := context.Background()
	text := "Whereas the Buyer shall pay."
	issues := eng.detector.Detect(text)

	_, err := eng.ApplyFix(ctx, FixRequest{Text: text, Issues: issues, IssueID: "nope"})
	assert.True(t, errors.Is(err, ErrIssueNotFound))

	_, err = eng.ApplyFix(ctx, FixRequest{Text: "", IssueID: "x"})
	assert.True(t, errors.Is(err, ErrMissingInput))

	var archaic domain.Issue
	for _, is := range issues {
		if is.Category == "archaic-term" {
			archaic = is
		}
	}
	require.NotEmpty(t, archaic.ID)
	_, err = eng.ApplyFix(ctx, FixRequest{Text: text, Issues: issues, IssueID: archaic.ID})
	assert.True(t, errors.Is(err, fix.ErrNoFixPolicy))
}

func TestRewriteValidatesModelOutput(t *testing.T) {
	ctx := context.Background()

	_, err := newTestEngine(t, objectstore.NewMemoryStore(), nil, false).Rewrite(ctx, "text")
	assert.True(t, errors.Is(err, ErrModelUnavailable))

	model := &fakeModel{textFunc: func(system, user string) (string, error) {
		return "  The Buyer must pay.  ", nil
	}}
	out, err := newTestEngine(t, objectstore.NewMemoryStore(), model, false).Rewrite(ctx, "The Buyer shall pay.")
	require.NoError(t, err)
	assert.Equal(t, "The Buyer must pay.", out)

	model.textFunc = func(system, user string) (string, error) {
		return strings.Repeat("x", 2*len(user)+1025), nil
	}
	_, err = newTestEngine(t, objectstore.NewMemoryStore(), model, false).Rewrite(ctx, "The Buyer shall pay.")
	assert.True(t, errors.Is(err, ErrModelUnavailable))

	model.textFunc = func(system, user string) (string, error) { return "", errors.New("503") }
	_, err = newTestEngine(t, objectstore.NewMemoryStore(), model, false).Rewrite(ctx, "The Buyer shall pay.")
	assert.True(t, errors.Is(err, ErrModelUnavailable))

	_, err = newTestEngine(t, objectstore.NewMemoryStore(), model, false).Rewrite(ctx, "   ")
	assert.True(t, errors.Is(err, ErrMissingInput))
}

func TestVersionsThroughEngine(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, objectstore.NewMemoryStore(), nil, false)

	n, err := eng.NextVersionNumber(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, n)

	h, err := eng.ListVersions(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, h.Versions, 1)
	assert.True(t, h.Versions[0].Synthetic)

	v1, err := eng.SaveVersion(ctx, versions.SaveRequest{DocumentID: "doc-1", CaseID: "case-1", Text: "one", VersionType: "original"})
	require.NoError(t, err)
	v2, err := eng.SaveVersion(ctx, versions.SaveRequest{DocumentID: "doc-1", CaseID: "case-1", Text: "two", VersionType: "fixed"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, v1.VersionNumber)
	assert.Equal(t, 2.0, v2.VersionNumber)

	h, err = eng.ListVersions(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, h.Versions, 2)
	assert.True(t, h.Versions[1].IsLatest)
	assert.Equal(t, v2.VersionID, h.Versions[1].VersionID)

	got, err := eng.GetVersion(ctx, "doc-1", v1.VersionID)
	require.NoError(t, err)
	assert.Equal(t, "one", got.ContentSnapshot)
}
