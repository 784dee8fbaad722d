package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/docreview-backend/internal/http/response"
	"github.com/yungbote/docreview-backend/internal/modules/review"
	"github.com/yungbote/docreview-backend/internal/modules/review/versions"
	"github.com/yungbote/docreview-backend/internal/platform/apierr"
)

type VersionHandler struct {
	svc review.Service
}

func NewVersionHandler(svc review.Service) *VersionHandler {
	return &VersionHandler{svc: svc}
}

type saveVersionBody struct {
	CaseID           string   `json:"case_id"`
	Text             string   `json:"text"`
	VersionType      string   `json:"version_type"`
	FixedIssueIDs    []string `json:"fixed_issue_ids"`
	OriginalFilename string   `json:"original_filename"`
}

// POST /api/documents/:documentId/versions
func (h *VersionHandler) SaveVersion(c *gin.Context) {
	var body saveVersionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	v, err := h.svc.SaveVersion(c.Request.Context(), versions.SaveRequest{
		DocumentID:       c.Param("documentId"),
		CaseID:           body.CaseID,
		Text:             body.Text,
		VersionType:      body.VersionType,
		FixedIssueIDs:    body.FixedIssueIDs,
		OriginalFilename: body.OriginalFilename,
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"version": v})
}

// GET /api/documents/:documentId/versions
func (h *VersionHandler) ListVersions(c *gin.Context) {
	hist, err := h.svc.ListVersions(c.Request.Context(), c.Param("documentId"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, hist)
}

// GET /api/documents/:documentId/versions/next
func (h *VersionHandler) NextVersionNumber(c *gin.Context) {
	docID := c.Param("documentId")
	n, err := h.svc.NextVersionNumber(c.Request.Context(), docID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"document_id": docID, "next_version_number": n})
}

// GET /api/documents/:documentId/versions/:versionId
func (h *VersionHandler) GetVersion(c *gin.Context) {
	v, err := h.svc.GetVersion(c.Request.Context(), c.Param("documentId"), c.Param("versionId"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"version": v})
}
