package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/docreview-backend/internal/domain"
	"github.com/yungbote/docreview-backend/internal/http/response"
	"github.com/yungbote/docreview-backend/internal/modules/review"
	"github.com/yungbote/docreview-backend/internal/platform/apierr"
)

type ReviewHandler struct {
	svc review.Service
}

func NewReviewHandler(svc review.Service) *ReviewHandler {
	return &ReviewHandler{svc: svc}
}

type reviewBody struct {
	StorageKey  string `json:"storage_key"`
	DocumentID  string `json:"document_id"`
	CaseID      string `json:"case_id"`
	ContentType string `json:"content_type"`
	UseExternal *bool  `json:"use_external"`
}

func (b reviewBody) ref() domain.DocumentRef {
	return domain.DocumentRef{
		StorageKey:  b.StorageKey,
		DocumentID:  b.DocumentID,
		CaseID:      b.CaseID,
		ContentType: b.ContentType,
	}
}

type renderBody struct {
	Text   string         `json:"text"`
	Issues []domain.Issue `json:"issues"`
}

type fixBody struct {
	Text    string         `json:"text"`
	Issues  []domain.Issue `json:"issues"`
	IssueID string         `json:"issue_id"`
}

type rewriteBody struct {
	Text string `json:"text"`
}

// POST /api/review
func (h *ReviewHandler) Review(c *gin.Context) {
	var body reviewBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	res, err := h.svc.Review(c.Request.Context(), review.ReviewRequest{Ref: body.ref(), UseExternal: body.UseExternal})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/review/render
func (h *ReviewHandler) Render(c *gin.Context) {
	var body renderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	response.RespondOK(c, h.svc.Render(body.Text, body.Issues))
}

// POST /api/review/fix
func (h *ReviewHandler) Fix(c *gin.Context) {
	var body fixBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	res, err := h.svc.ApplyFix(c.Request.Context(), review.FixRequest{Text: body.Text, Issues: body.Issues, IssueID: body.IssueID})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/review/rewrite
func (h *ReviewHandler) Rewrite(c *gin.Context) {
	var body rewriteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	out, err := h.svc.Rewrite(c.Request.Context(), body.Text)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"text": out})
}
