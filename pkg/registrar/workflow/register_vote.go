package workflow

import (
	"time"

	"github.com/vecindia/asambleax/pkg/registrar/types"
	"github.com/vecindia/asambleax/pkg/voting"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Workflow names as registered on the worker and referenced by submitters.
const (
	RegisterVoteWorkflowName            = "RegisterVoteWorkflow"
	RegisterParticipantVoteWorkflowName = "RegisterParticipantVoteWorkflow"
)

// registrationActivityOptions is shared by both registration workflows. Fixed
// 5s interval between attempts rides out a transient database or lock hiccup;
// business rejections are typed non-retryable and fail immediately.
func registrationActivityOptions(ctx workflow.Context) workflow.Context {
	retry := &temporal.RetryPolicy{
		InitialInterval:    5 * time.Second,
		BackoffCoefficient: 1.0,
		MaximumAttempts:    3,
		NonRetryableErrorTypes: []string{
			voting.ErrTypeQuestionNotOpen,
			voting.ErrTypeAlreadyVoted,
			voting.ErrTypePropertyInactive,
			voting.ErrTypeAttendeeWithoutProperties,
		},
	}

	// Activities run on the same per-community queue the workflow was
	// scheduled on.
	info := workflow.GetInfo(ctx)

	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy:         retry,
		TaskQueue:           info.TaskQueueName,
	})
}

// RegisterVoteWorkflow records one property's vote on a question. One workflow
// per (community, question, property) id, so resubmitting the same vote while
// the first registration is in flight joins it instead of racing it.
func (wc *Context) RegisterVoteWorkflow(ctx workflow.Context, in types.RegisterVoteInput) (types.RegisterVoteOutput, error) {
	ctx = registrationActivityOptions(ctx)

	var out types.RegisterVoteOutput
	err := workflow.ExecuteActivity(ctx, wc.ActivityContext.RegisterVote, in).Get(ctx, &out)
	return out, err
}

// RegisterParticipantVoteWorkflow replicates a participant's choice across
// every property the participant represents.
func (wc *Context) RegisterParticipantVoteWorkflow(ctx workflow.Context, in types.RegisterAttendeeVoteInput) (types.RegisterAttendeeVoteOutput, error) {
	ctx = registrationActivityOptions(ctx)

	var out types.RegisterAttendeeVoteOutput
	err := workflow.ExecuteActivity(ctx, wc.ActivityContext.RegisterAttendeeVote, in).Get(ctx, &out)
	return out, err
}
