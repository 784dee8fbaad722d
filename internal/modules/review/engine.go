// Package review is the document review engine: extraction, issue detection, annotated
// rendering, fixes and version history behind one Service.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/docreview-backend/internal/domain"
	"github.com/yungbote/docreview-backend/internal/modules/review/annotate"
	"github.com/yungbote/docreview-backend/internal/modules/review/detect"
	"github.com/yungbote/docreview-backend/internal/modules/review/extraction"
	"github.com/yungbote/docreview-backend/internal/modules/review/fix"
	"github.com/yungbote/docreview-backend/internal/modules/review/versions"
	"github.com/yungbote/docreview-backend/internal/observability"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
	"github.com/yungbote/docreview-backend/internal/platform/openai"
)

var (
	ErrMissingInput     = errors.New("missing required input")
	ErrIssueNotFound    = errors.New("issue not found")
	ErrModelUnavailable = errors.New("generative model unavailable")
)

// Service is what the HTTP, function and workflow adapters call.
type Service interface {
	Review(ctx context.Context, req ReviewRequest) (ReviewResult, error)
	Render(text string, issues []domain.Issue) annotate.View
	ApplyFix(ctx context.Context, req FixRequest) (FixResult, error)
	Rewrite(ctx context.Context, text string) (string, error)
	SaveVersion(ctx context.Context, req versions.SaveRequest) (domain.Version, error)
	ListVersions(ctx context.Context, documentID string) (domain.VersionHistory, error)
	GetVersion(ctx context.Context, documentID, versionID string) (domain.Version, error)
	NextVersionNumber(ctx context.Context, documentID string) (float64, error)
}

type ReviewRequest struct {
	Ref domain.DocumentRef `json:"ref"`
	// UseExternal overrides the engine default for model-assisted detection.
	UseExternal *bool `json:"use_external,omitempty"`
}

type ReviewResult struct {
	Text         string            `json:"text"`
	Provenance   domain.Provenance `json:"provenance"`
	Warnings     []string          `json:"warnings,omitempty"`
	Issues       []domain.Issue    `json:"issues"`
	View         annotate.View     `json:"view"`
	ExternalUsed bool              `json:"external_used"`
}

type FixRequest struct {
	Text    string         `json:"text"`
	Issues  []domain.Issue `json:"issues"`
	IssueID string         `json:"issue_id"`
}

type FixResult struct {
	Text         string         `json:"text"`
	Issues       []domain.Issue `json:"issues"`
	View         annotate.View  `json:"view"`
	FixedIssueID string         `json:"fixed_issue_id"`
	Scope        fix.Scope      `json:"scope"`
}

type Deps struct {
	Extractor *extraction.Extractor
	Detector  *detect.Detector
	Fixer     *fix.Applier
	Versions  *versions.Manager
	// Model is optional; without it Rewrite reports ErrModelUnavailable.
	Model           openai.Client
	ExternalEnabled bool
}

var _ Service = (*Engine)(nil)

// Engine holds no per-request state; one instance serves every caller.
type Engine struct {
	log             *logger.Logger
	extractor       *extraction.Extractor
	detector        *detect.Detector
	fixer           *fix.Applier
	versions        *versions.Manager
	model           openai.Client
	externalEnabled bool
	tracer          trace.Tracer
}

func NewEngine(log *logger.Logger, deps Deps) (*Engine, error) {
	if log == nil {
		log = logger.NewNop()
	}
	switch {
	case deps.Extractor == nil:
		return nil, fmt.Errorf("review engine: extractor required")
	case deps.Detector == nil:
		return nil, fmt.Errorf("review engine: detector required")
	case deps.Fixer == nil:
		return nil, fmt.Errorf("review engine: fixer required")
	case deps.Versions == nil:
		return nil, fmt.Errorf("review engine: version manager required")
	}
	return &Engine{
		log:             log.With("service", "ReviewEngine"),
		extractor:       deps.Extractor,
		detector:        deps.Detector,
		fixer:           deps.Fixer,
		versions:        deps.Versions,
		model:           deps.Model,
		externalEnabled: deps.ExternalEnabled && deps.Model != nil,
		tracer:          otel.Tracer("docreview/review"),
	}, nil
}

func (e *Engine) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Review extracts, detects and renders one document. Extraction never fails, so the only
// error is a missing reference.
func (e *Engine) Review(ctx context.Context, req ReviewRequest) (res ReviewResult, err error) {
	ctx, span := e.start(ctx, "review.Review",
		attribute.String("document.id", req.Ref.DocumentID),
		attribute.String("document.content_type", req.Ref.ContentType),
	)
	defer func() { endSpan(span, err) }()
	if !req.Ref.Valid() {
		return ReviewResult{}, fmt.Errorf("%w: storage_key and document_id are required", ErrMissingInput)
	}
	started := time.Now()
	metrics := observability.Current()

	extracted := e.extractor.Extract(ctx, req.Ref)
	metrics.IncExtraction(string(extracted.Provenance))

	useExternal := e.externalEnabled
	if req.UseExternal != nil {
		useExternal = *req.UseExternal && e.model != nil
	}
	issues, externalUsed := e.detector.Analyze(ctx, extracted, useExternal)
	switch {
	case !useExternal:
		metrics.IncExternalAnalysis("disabled")
	case !extracted.Provenance.IsReal():
		metrics.IncExternalAnalysis("skipped")
	case externalUsed:
		metrics.IncExternalAnalysis("used")
	default:
		metrics.IncExternalAnalysis("fallback")
	}
	for _, is := range issues {
		metrics.IncIssue(is.Category, string(is.Severity))
	}

	span.SetAttributes(
		attribute.String("review.provenance", string(extracted.Provenance)),
		attribute.Int("review.issues", len(issues)),
		attribute.Bool("review.external_used", externalUsed),
	)
	metrics.ObserveReview(string(extracted.Provenance), time.Since(started))
	e.log.Info("document reviewed",
		"document_id", req.Ref.DocumentID,
		"case_id", req.Ref.CaseID,
		"provenance", string(extracted.Provenance),
		"issues", len(issues),
		"external_used", externalUsed,
	)
	return ReviewResult{
		Text:         extracted.Text,
		Provenance:   extracted.Provenance,
		Warnings:     extracted.Warnings,
		Issues:       issues,
		View:         annotate.Render(extracted.Text, issues),
		ExternalUsed: externalUsed,
	}, nil
}

func (e *Engine) Render(text string, issues []domain.Issue) annotate.View {
	return annotate.Render(text, issues)
}

// ApplyFix applies the fix for one issue, then re-detects and re-renders the new text.
// The caller's other issues stay in the result with offsets into the new text; rule issues
// come from a fresh scan and model issues are re-located by their original text. A global fix
// also retires the other issues of the fixed category.
func (e *Engine) ApplyFix(ctx context.Context, req FixRequest) (res FixResult, err error) {
	_, span := e.start(ctx, "review.ApplyFix", attribute.String("issue.id", req.IssueID))
	defer func() { endSpan(span, err) }()
	if req.Text == "" || strings.TrimSpace(req.IssueID) == "" {
		return FixResult{}, fmt.Errorf("%w: text and issue_id are required", ErrMissingInput)
	}
	var target *domain.Issue
	for i := range req.Issues {
		if req.Issues[i].ID == req.IssueID {
			target = &req.Issues[i]
			break
		}
	}
	if target == nil {
		return FixResult{}, fmt.Errorf("%w: %s", ErrIssueNotFound, req.IssueID)
	}
	span.SetAttributes(attribute.String("issue.category", target.Category))

	fixed, err := e.fixer.ApplyFix(req.Text, *target)
	if err != nil {
		observability.Current().IncFix(target.Category, "rejected")
		return FixResult{}, err
	}
	observability.Current().IncFix(target.Category, "applied")
	survivors := make([]domain.Issue, 0, len(req.Issues))
	for _, is := range req.Issues {
		if is.ID == target.ID {
			continue
		}
		if e.fixer.Scope() == fix.ScopeGlobal && is.Category == target.Category {
			continue
		}
		survivors = append(survivors, is)
	}
	issues := e.detector.Rescan(fixed, survivors)
	e.log.Debug("fix applied", "issue_id", target.ID, "category", target.Category, "scope", string(e.fixer.Scope()), "remaining", len(issues))
	return FixResult{
		Text:         fixed,
		Issues:       issues,
		View:         annotate.Render(fixed, issues),
		FixedIssueID: target.ID,
		Scope:        e.fixer.Scope(),
	}, nil
}

// CanFix reports whether the issue's category has an automatic fix.
func (e *Engine) CanFix(issue domain.Issue) bool {
	return e.fixer.HasPolicy(issue.Category)
}

const rewriteSystemPrompt = `Rewrite the contract text supplied by the user so that it is clear, precise and free of drafting problems.
Keep the meaning, structure and defined terms. Return only the rewritten text.`

// Rewrite asks the model for a corrected body. Output that is empty or grows past twice the
// input plus 1 KiB is rejected.
func (e *Engine) Rewrite(ctx context.Context, text string) (out string, err error) {
	ctx, span := e.start(ctx, "review.Rewrite", attribute.Int("text.bytes", len(text)))
	defer func() { endSpan(span, err) }()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: text is required", ErrMissingInput)
	}
	if e.model == nil {
		return "", fmt.Errorf("%w: no model configured", ErrModelUnavailable)
	}
	out, err = e.model.GenerateText(ctx, rewriteSystemPrompt, text)
	if err != nil {
		e.log.Warn("rewrite failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	out = strings.TrimSpace(out)
	if out == "" || len(out) > 2*len(text)+1024 {
		e.log.Warn("rewrite output rejected", "input_bytes", len(text), "output_bytes", len(out))
		return "", fmt.Errorf("%w: rewrite output rejected", ErrModelUnavailable)
	}
	return out, nil
}

func (e *Engine) SaveVersion(ctx context.Context, req versions.SaveRequest) (v domain.Version, err error) {
	ctx, span := e.start(ctx, "review.SaveVersion",
		attribute.String("document.id", req.DocumentID),
		attribute.String("version.type", req.VersionType),
	)
	defer func() { endSpan(span, err) }()
	v, err = e.versions.SaveVersion(ctx, req)
	if err != nil {
		observability.Current().IncVersionSave("error")
		return domain.Version{}, err
	}
	observability.Current().IncVersionSave("ok")
	span.SetAttributes(attribute.Float64("version.number", v.VersionNumber))
	return v, nil
}

func (e *Engine) ListVersions(ctx context.Context, documentID string) (h domain.VersionHistory, err error) {
	ctx, span := e.start(ctx, "review.ListVersions", attribute.String("document.id", documentID))
	defer func() { endSpan(span, err) }()
	h, err = e.versions.ListVersions(ctx, documentID)
	if err != nil {
		return domain.VersionHistory{}, err
	}
	switch {
	case h.Degraded:
		observability.Current().IncVersionListing("degraded")
	case len(h.Versions) == 1 && h.Versions[0].Synthetic:
		observability.Current().IncVersionListing("synthetic")
	default:
		observability.Current().IncVersionListing("ok")
	}
	return h, nil
}

func (e *Engine) GetVersion(ctx context.Context, documentID, versionID string) (v domain.Version, err error) {
	ctx, span := e.start(ctx, "review.GetVersion",
		attribute.String("document.id", documentID),
		attribute.String("version.id", versionID),
	)
	defer func() { endSpan(span, err) }()
	return e.versions.GetVersion(ctx, documentID, versionID)
}

func (e *Engine) NextVersionNumber(ctx context.Context, documentID string) (n float64, err error) {
	ctx, span := e.start(ctx, "review.NextVersionNumber", attribute.String("document.id", documentID))
	defer func() { endSpan(span, err) }()
	return e.versions.NextVersionNumber(ctx, documentID)
}
