package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vecindia/asambleax/pkg/registrar/activity"
	"github.com/vecindia/asambleax/pkg/registrar/types"
	temporalclient "github.com/vecindia/asambleax/pkg/temporal"
	"github.com/vecindia/asambleax/pkg/voting"
	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/zap/zaptest"
)

func newWorkflowContext(t *testing.T) *Context {
	t.Helper()
	return &Context{
		TemporalClient: &temporalclient.Client{
			VotesQueue:             "votes:%s",
			VoteWorkflowId:         "%s:vote:%d:%d",
			AttendeeVoteWorkflowId: "%s:attendee-vote:%d:%d",
		},
		ActivityContext: &activity.Context{Logger: zaptest.NewLogger(t)},
	}
}

func TestRegisterVoteWorkflowHappyPath(t *testing.T) {
	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	wc := newWorkflowContext(t)

	in := types.RegisterVoteInput{
		Community:  "900111222",
		QuestionID: 5,
		PropertyID: 42,
		OptionID:   2,
	}

	env.RegisterWorkflow(wc.RegisterVoteWorkflow)
	env.OnActivity(wc.ActivityContext.RegisterVote, mock.Anything, in).
		Return(types.RegisterVoteOutput{VoteID: 11}, nil).Once()

	env.ExecuteWorkflow(wc.RegisterVoteWorkflow, in)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out types.RegisterVoteOutput
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, int64(11), out.VoteID)
}

func TestRegisterVoteWorkflowStopsOnBusinessRejection(t *testing.T) {
	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	wc := newWorkflowContext(t)

	attempts := 0
	env.RegisterWorkflow(wc.RegisterVoteWorkflow)
	env.OnActivity(wc.ActivityContext.RegisterVote, mock.Anything, mock.Anything).
		Return(func(context.Context, types.RegisterVoteInput) (types.RegisterVoteOutput, error) {
			attempts++
			return types.RegisterVoteOutput{}, sdktemporal.NewApplicationError(
				"question #5 is closed", voting.ErrTypeQuestionNotOpen)
		})

	env.ExecuteWorkflow(wc.RegisterVoteWorkflow, types.RegisterVoteInput{
		Community: "900111222", QuestionID: 5, PropertyID: 42, OptionID: 2,
	})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)

	var appErr *sdktemporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, voting.ErrTypeQuestionNotOpen, appErr.Type())
	require.Equal(t, 1, attempts, "business rejections must not be retried")
}

func TestRegisterVoteWorkflowStopsOnInactiveProperty(t *testing.T) {
	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	wc := newWorkflowContext(t)

	attempts := 0
	env.RegisterWorkflow(wc.RegisterVoteWorkflow)
	env.OnActivity(wc.ActivityContext.RegisterVote, mock.Anything, mock.Anything).
		Return(func(context.Context, types.RegisterVoteInput) (types.RegisterVoteOutput, error) {
			attempts++
			return types.RegisterVoteOutput{}, sdktemporal.NewApplicationError(
				"property #42 is inactive", voting.ErrTypePropertyInactive)
		})

	env.ExecuteWorkflow(wc.RegisterVoteWorkflow, types.RegisterVoteInput{
		Community: "900111222", QuestionID: 5, PropertyID: 42, OptionID: 2,
	})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)

	var appErr *sdktemporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, voting.ErrTypePropertyInactive, appErr.Type())
	require.Equal(t, 1, attempts, "an inactive property cannot become active by retrying")
}

func TestRegisterVoteWorkflowRetriesTransientFailures(t *testing.T) {
	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	wc := newWorkflowContext(t)

	attempts := 0
	env.RegisterWorkflow(wc.RegisterVoteWorkflow)
	env.OnActivity(wc.ActivityContext.RegisterVote, mock.Anything, mock.Anything).
		Return(func(context.Context, types.RegisterVoteInput) (types.RegisterVoteOutput, error) {
			attempts++
			if attempts < 3 {
				return types.RegisterVoteOutput{}, errors.New("connection refused")
			}
			return types.RegisterVoteOutput{VoteID: 7}, nil
		})

	env.ExecuteWorkflow(wc.RegisterVoteWorkflow, types.RegisterVoteInput{
		Community: "900111222", QuestionID: 5, PropertyID: 42, OptionID: 2,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	require.Equal(t, 3, attempts)

	var out types.RegisterVoteOutput
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, int64(7), out.VoteID)
}

func TestRegisterVoteWorkflowExhaustsRetries(t *testing.T) {
	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	wc := newWorkflowContext(t)

	attempts := 0
	env.RegisterWorkflow(wc.RegisterVoteWorkflow)
	env.OnActivity(wc.ActivityContext.RegisterVote, mock.Anything, mock.Anything).
		Return(func(context.Context, types.RegisterVoteInput) (types.RegisterVoteOutput, error) {
			attempts++
			return types.RegisterVoteOutput{}, errors.New("connection refused")
		})

	env.ExecuteWorkflow(wc.RegisterVoteWorkflow, types.RegisterVoteInput{
		Community: "900111222", QuestionID: 5, PropertyID: 42, OptionID: 2,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	require.Equal(t, 3, attempts)
}

func TestRegisterParticipantVoteWorkflowHappyPath(t *testing.T) {
	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	wc := newWorkflowContext(t)

	in := types.RegisterAttendeeVoteInput{
		Community:  "900111222",
		QuestionID: 5,
		AttendeeID: 9,
		OptionID:   2,
	}

	env.RegisterWorkflow(wc.RegisterParticipantVoteWorkflow)
	env.OnActivity(wc.ActivityContext.RegisterAttendeeVote, mock.Anything, in).
		Return(types.RegisterAttendeeVoteOutput{Properties: 3, Registered: 2, Skipped: 1}, nil).Once()

	env.ExecuteWorkflow(wc.RegisterParticipantVoteWorkflow, in)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out types.RegisterAttendeeVoteOutput
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, 3, out.Properties)
	require.Equal(t, 2, out.Registered)
	require.Equal(t, 1, out.Skipped)
}

func TestRegisterParticipantVoteWorkflowPropagatesNoProperties(t *testing.T) {
	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	wc := newWorkflowContext(t)

	env.RegisterWorkflow(wc.RegisterParticipantVoteWorkflow)
	env.OnActivity(wc.ActivityContext.RegisterAttendeeVote, mock.Anything, mock.Anything).
		Return(types.RegisterAttendeeVoteOutput{}, sdktemporal.NewApplicationError(
			"attendee #9 represents no properties", voting.ErrTypeAttendeeWithoutProperties)).Once()

	env.ExecuteWorkflow(wc.RegisterParticipantVoteWorkflow, types.RegisterAttendeeVoteInput{
		Community: "900111222", QuestionID: 5, AttendeeID: 9, OptionID: 2,
	})

	err := env.GetWorkflowError()
	require.Error(t, err)

	var appErr *sdktemporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, voting.ErrTypeAttendeeWithoutProperties, appErr.Type())
}
