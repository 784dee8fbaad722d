// Package functions exposes the review engine as a single function-style HTTP entry point:
// every call is a POST carrying {"action": ..., ...} and gets the action's result back.
package functions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/yungbote/docreview-backend/internal/domain"
	"github.com/yungbote/docreview-backend/internal/http/response"
	"github.com/yungbote/docreview-backend/internal/modules/review"
	"github.com/yungbote/docreview-backend/internal/modules/review/versions"
	"github.com/yungbote/docreview-backend/internal/platform/apierr"
	"github.com/yungbote/docreview-backend/internal/platform/ctxutil"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
)

const maxBodyBytes = 10 << 20

const (
	ActionReview       = "review"
	ActionRender       = "render"
	ActionFix          = "fix"
	ActionRewrite      = "rewrite"
	ActionSaveVersion  = "save_version"
	ActionListVersions = "list_versions"
	ActionNextVersion  = "next_version"
	ActionGetVersion   = "get_version"
)

var ErrUnknownAction = errors.New("unknown action")

// Request is the union of every action's inputs; each action reads the fields it needs.
type Request struct {
	Action string `json:"action"`

	StorageKey  string `json:"storage_key,omitempty"`
	DocumentID  string `json:"document_id,omitempty"`
	CaseID      string `json:"case_id,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	UseExternal *bool  `json:"use_external,omitempty"`

	Text    string         `json:"text,omitempty"`
	Issues  []domain.Issue `json:"issues,omitempty"`
	IssueID string         `json:"issue_id,omitempty"`

	VersionID        string   `json:"version_id,omitempty"`
	VersionType      string   `json:"version_type,omitempty"`
	FixedIssueIDs    []string `json:"fixed_issue_ids,omitempty"`
	OriginalFilename string   `json:"original_filename,omitempty"`
}

type Dispatcher struct {
	log *logger.Logger
	svc review.Service
}

func NewDispatcher(log *logger.Logger, svc review.Service) *Dispatcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Dispatcher{log: log.With("component", "FunctionDispatcher"), svc: svc}
}

// Dispatch runs one action. The result is what the HTTP entry point serialises.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (any, error) {
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case ActionReview:
		return d.svc.Review(ctx, review.ReviewRequest{
			Ref: domain.DocumentRef{
				StorageKey:  req.StorageKey,
				DocumentID:  req.DocumentID,
				CaseID:      req.CaseID,
				ContentType: req.ContentType,
			},
			UseExternal: req.UseExternal,
		})
	case ActionRender:
		return d.svc.Render(req.Text, req.Issues), nil
	case ActionFix:
		return d.svc.ApplyFix(ctx, review.FixRequest{Text: req.Text, Issues: req.Issues, IssueID: req.IssueID})
	case ActionRewrite:
		out, err := d.svc.Rewrite(ctx, req.Text)
		if err != nil {
			return nil, err
		}
		return map[string]string{"text": out}, nil
	case ActionSaveVersion:
		v, err := d.svc.SaveVersion(ctx, versions.SaveRequest{
			DocumentID:       req.DocumentID,
			CaseID:           req.CaseID,
			Text:             req.Text,
			VersionType:      req.VersionType,
			FixedIssueIDs:    req.FixedIssueIDs,
			OriginalFilename: req.OriginalFilename,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"version": v}, nil
	case ActionListVersions:
		return d.svc.ListVersions(ctx, req.DocumentID)
	case ActionNextVersion:
		n, err := d.svc.NextVersionNumber(ctx, req.DocumentID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"document_id": req.DocumentID, "next_version_number": n}, nil
	case ActionGetVersion:
		v, err := d.svc.GetVersion(ctx, req.DocumentID, req.VersionID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"version": v}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
}

// ServeHTTP is the function entry point.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, response.NewErrorEnvelope(apierr.CodeMethodNotAllowed, fmt.Errorf("use POST")))
		return
	}
	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response.NewErrorEnvelope(apierr.CodeInvalidRequest, err))
		return
	}
	res, err := d.Dispatch(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrUnknownAction) {
			writeJSON(w, http.StatusBadRequest, response.NewErrorEnvelope(apierr.CodeUnknownAction, err))
			return
		}
		ae := response.FromError(err)
		if ae.Status >= http.StatusInternalServerError {
			fields := append([]any{"action", req.Action, "status", ae.Status, "error", err}, ctxutil.LogFields(r.Context())...)
			d.log.Warn("function action failed", fields...)
		}
		writeJSON(w, ae.Status, response.NewErrorEnvelope(ae.Code, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
