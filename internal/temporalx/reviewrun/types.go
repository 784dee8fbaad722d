package reviewrun

import (
	"github.com/yungbote/docreview-backend/internal/domain"
	"github.com/yungbote/docreview-backend/internal/modules/review"
)

const (
	WorkflowName         = "document_review"
	ActivityReview       = "document_review_extract_detect"
	ActivitySaveReviewed = "document_review_save_version"
	QueryStage           = "document_review_stage"
)

const (
	StagePending   = "pending"
	StageReviewing = "reviewing"
	StageSaving    = "saving"
	StageDone      = "done"
)

// Input starts one document review job.
type Input struct {
	Ref         domain.DocumentRef `json:"ref"`
	UseExternal *bool              `json:"use_external,omitempty"`
	// SaveVersion stores the extracted text as a reviewed version once detection finishes.
	SaveVersion      bool   `json:"save_version"`
	OriginalFilename string `json:"original_filename,omitempty"`
}

type SaveInput struct {
	DocumentID       string `json:"document_id"`
	CaseID           string `json:"case_id"`
	Text             string `json:"text"`
	OriginalFilename string `json:"original_filename,omitempty"`
}

type Output struct {
	Review  review.ReviewResult `json:"review"`
	Version *domain.Version     `json:"version,omitempty"`
	// SkippedSave explains why a requested version was not stored.
	SkippedSave string `json:"skipped_save,omitempty"`
}
