package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/docreview-backend/internal/http/response"
	"github.com/yungbote/docreview-backend/internal/platform/apierr"
	"github.com/yungbote/docreview-backend/internal/temporalx/reviewrun"
)

// JobService is satisfied by *reviewrun.Jobs.
type JobService interface {
	Start(ctx context.Context, in reviewrun.Input) (reviewrun.Job, error)
	Get(ctx context.Context, id string) (reviewrun.Job, error)
}

type JobHandler struct {
	jobs JobService
}

func NewJobHandler(jobs JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

type startJobBody struct {
	reviewBody
	SaveVersion      bool   `json:"save_version"`
	OriginalFilename string `json:"original_filename"`
}

// POST /api/review/jobs
func (h *JobHandler) StartJob(c *gin.Context) {
	var body startJobBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeInvalidRequest, err)
		return
	}
	job, err := h.jobs.Start(c.Request.Context(), reviewrun.Input{
		Ref:              body.ref(),
		UseExternal:      body.UseExternal,
		SaveVersion:      body.SaveVersion,
		OriginalFilename: body.OriginalFilename,
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": job})
}

// GET /api/review/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}
