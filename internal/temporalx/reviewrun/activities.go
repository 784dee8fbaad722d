package reviewrun

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/docreview-backend/internal/domain"
	"github.com/yungbote/docreview-backend/internal/modules/review"
	"github.com/yungbote/docreview-backend/internal/modules/review/extraction"
	"github.com/yungbote/docreview-backend/internal/modules/review/versions"
	pkgerrors "github.com/yungbote/docreview-backend/internal/pkg/errors"
	"github.com/yungbote/docreview-backend/internal/platform/logger"
)

type Activities struct {
	Log    *logger.Logger
	Engine review.Service
}

func (a *Activities) Review(ctx context.Context, in Input) (review.ReviewResult, error) {
	stop := startHeartbeat(ctx)
	defer stop()
	ctx = extraction.WithPollHook(ctx, func(attempt int, state domain.OCRJobState) {
		activity.RecordHeartbeat(ctx, attempt, string(state))
	})
	res, err := a.Engine.Review(ctx, review.ReviewRequest{Ref: in.Ref, UseExternal: in.UseExternal})
	if err != nil {
		return review.ReviewResult{}, classify(err)
	}
	if a.Log != nil {
		a.Log.Info("review activity finished",
			"document_id", in.Ref.DocumentID,
			"attempt", activity.GetInfo(ctx).Attempt,
			"issues", len(res.Issues),
		)
	}
	return res, nil
}

func (a *Activities) SaveReviewed(ctx context.Context, in SaveInput) (*domain.Version, error) {
	v, err := a.Engine.SaveVersion(ctx, versions.SaveRequest{
		DocumentID:       in.DocumentID,
		CaseID:           in.CaseID,
		Text:             in.Text,
		VersionType:      string(domain.VersionTypeReviewed),
		OriginalFilename: in.OriginalFilename,
	})
	if err != nil {
		return nil, classify(err)
	}
	return &v, nil
}

// classify marks caller errors and version storage failures as non-retryable.
func classify(err error) error {
	switch {
	case errors.Is(err, review.ErrMissingInput),
		errors.Is(err, versions.ErrInvalidVersionType),
		errors.Is(err, pkgerrors.ErrInvalidArgument):
		return temporal.NewNonRetryableApplicationError(err.Error(), "invalid_input", err)
	case errors.Is(err, versions.ErrStorageWrite),
		errors.Is(err, versions.ErrStorageRead),
		errors.Is(err, versions.ErrVersionLocked):
		return temporal.NewNonRetryableApplicationError(err.Error(), "version_storage", err)
	default:
		return err
	}
}

func startHeartbeat(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(10 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
