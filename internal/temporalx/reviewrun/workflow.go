package reviewrun

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/docreview-backend/internal/domain"
)

// Workflow runs extraction and detection in one activity, then optionally stores the reviewed text.
// Placeholder text is never stored as a version.
func Workflow(ctx workflow.Context, in Input) (Output, error) {
	stage := StagePending
	if err := workflow.SetQueryHandler(ctx, QueryStage, func() (string, error) { return stage, nil }); err != nil {
		return Output{}, fmt.Errorf("reviewrun: register query: %w", err)
	}

	// One attempt per activity: extraction already degrades instead of failing, and a save
	// that timed out after its write landed must not be repeated under the next number.
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	stage = StageReviewing
	var out Output
	if err := workflow.ExecuteActivity(ctx, ActivityReview, in).Get(ctx, &out.Review); err != nil {
		return Output{}, err
	}
	if !in.SaveVersion {
		stage = StageDone
		return out, nil
	}
	if !out.Review.Provenance.IsReal() {
		out.SkippedSave = "extraction produced placeholder text"
		stage = StageDone
		return out, nil
	}

	stage = StageSaving
	save := SaveInput{
		DocumentID:       in.Ref.DocumentID,
		CaseID:           in.Ref.CaseID,
		Text:             out.Review.Text,
		OriginalFilename: in.OriginalFilename,
	}
	var v domain.Version
	if err := workflow.ExecuteActivity(ctx, ActivitySaveReviewed, save).Get(ctx, &v); err != nil {
		return Output{}, err
	}
	out.Version = &v
	stage = StageDone
	workflow.GetLogger(ctx).Info("document review finished", "document_id", in.Ref.DocumentID, "issues", len(out.Review.Issues))
	return out, nil
}
