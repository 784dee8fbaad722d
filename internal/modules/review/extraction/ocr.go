package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/docreview-backend/internal/domain"
)

var (
	errOCRTimeout = errors.New("ocr job did not finish within the poll budget")
	errOCRNoText  = errors.New("ocr job returned no text")
)

type pollHookKey struct{}

// WithPollHook attaches fn to ctx; it is called after every OCR poll. Long-running callers
// (workflow activities) use it to heartbeat.
func WithPollHook(ctx context.Context, fn func(attempt int, state domain.OCRJobState)) context.Context {
	return context.WithValue(ctx, pollHookKey{}, fn)
}

func pollHook(ctx context.Context) func(int, domain.OCRJobState) {
	fn, _ := ctx.Value(pollHookKey{}).(func(int, domain.OCRJobState))
	return fn
}

func (e *Extractor) runOCR(ctx context.Context, ref domain.DocumentRef) (string, error) {
	jobID, err := e.OCR.StartJob(ctx, ref.StorageKey, ref.ContentType)
	if err != nil {
		return "", fmt.Errorf("start job: %w", err)
	}

	attempts := e.MaxPollAttempts
	if attempts <= 0 {
		attempts = DefaultMaxPollAttempts
	}
	hook := pollHook(ctx)
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := sleepCtx(ctx, e.PollInterval); err != nil {
			return "", fmt.Errorf("poll job %s: %w", jobID, err)
		}
		status, err := e.OCR.PollJob(ctx, jobID)
		if hook != nil {
			hook(attempt, status.State)
		}
		if err != nil {
			e.log().Warn("ocr poll error", "job_id", jobID, "attempt", attempt, "error", err)
			continue
		}
		switch status.State {
		case domain.OCRJobSucceeded:
			text := joinLines(status.Lines)
			if strings.TrimSpace(text) == "" {
				return "", errOCRNoText
			}
			return text, nil
		case domain.OCRJobFailed:
			return "", fmt.Errorf("job %s failed: %s", jobID, status.Detail)
		}
	}
	return "", fmt.Errorf("job %s: %w", jobID, errOCRTimeout)
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func ocrOutcome(err error) string {
	switch {
	case err == nil:
		return "succeeded"
	case errors.Is(err, errOCRTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "failed"
	}
}
