package reviewrun

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/docreview-backend/internal/modules/review"
	pkgerrors "github.com/yungbote/docreview-backend/internal/pkg/errors"
)

const (
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
	JobCanceled  = "canceled"
)

type Job struct {
	ID     string  `json:"id"`
	RunID  string  `json:"run_id,omitempty"`
	Status string  `json:"status"`
	Stage  string  `json:"stage,omitempty"`
	Error  string  `json:"error,omitempty"`
	Output *Output `json:"output,omitempty"`
}

// Jobs starts review workflows and reports on them.
type Jobs struct {
	tc        temporalsdkclient.Client
	taskQueue string
}

func NewJobs(tc temporalsdkclient.Client, taskQueue string) *Jobs {
	return &Jobs{tc: tc, taskQueue: taskQueue}
}

func (j *Jobs) Start(ctx context.Context, in Input) (Job, error) {
	if !in.Ref.Valid() {
		return Job{}, fmt.Errorf("%w: storage_key and document_id are required", review.ErrMissingInput)
	}
	id := "review-" + in.Ref.DocumentID + "-" + uuid.NewString()
	run, err := j.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:        id,
		TaskQueue: j.taskQueue,
	}, WorkflowName, in)
	if err != nil {
		return Job{}, fmt.Errorf("%w: start review workflow: %v", pkgerrors.ErrUnavailable, err)
	}
	return Job{ID: run.GetID(), RunID: run.GetRunID(), Status: JobRunning, Stage: StagePending}, nil
}

func (j *Jobs) Get(ctx context.Context, id string) (Job, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Job{}, fmt.Errorf("%w: job id is required", pkgerrors.ErrInvalidArgument)
	}
	desc, err := j.tc.DescribeWorkflowExecution(ctx, id, "")
	if err != nil {
		var nf *serviceerror.NotFound
		if errors.As(err, &nf) {
			return Job{}, fmt.Errorf("%w: job %s", pkgerrors.ErrNotFound, id)
		}
		return Job{}, fmt.Errorf("%w: describe review workflow: %v", pkgerrors.ErrUnavailable, err)
	}
	info := desc.GetWorkflowExecutionInfo()
	job := Job{ID: id, RunID: info.GetExecution().GetRunId()}

	switch info.GetStatus() {
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING, enumspb.WORKFLOW_EXECUTION_STATUS_CONTINUED_AS_NEW:
		job.Status = JobRunning
		if enc, qerr := j.tc.QueryWorkflow(ctx, id, "", QueryStage); qerr == nil {
			_ = enc.Get(&job.Stage)
		}
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		var out Output
		if err := j.tc.GetWorkflow(ctx, id, "").Get(ctx, &out); err != nil {
			return Job{}, fmt.Errorf("%w: read review result: %v", pkgerrors.ErrUnavailable, err)
		}
		job.Status, job.Stage, job.Output = JobSucceeded, StageDone, &out
	case enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED, enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED:
		job.Status = JobCanceled
	default:
		job.Status = JobFailed
		if err := j.tc.GetWorkflow(ctx, id, "").Get(ctx, nil); err != nil {
			job.Error = err.Error()
		}
	}
	return job, nil
}
