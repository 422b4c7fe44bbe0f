package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vecindia/asambleax/pkg/registrar/types"
	"github.com/vecindia/asambleax/pkg/voting"
	"go.temporal.io/sdk/temporal"
)

func TestAttendeeReplicationSkipsPropertiesThatAlreadyVoted(t *testing.T) {
	ac, store, question, option := openVotingFixture(t)

	p1 := seedProperty(t, store, "T2-201", "1.10", true)
	p2 := seedProperty(t, store, "T2-202", "1.20", true)
	p3 := seedProperty(t, store, "T2-203", "1.30", true)
	attendee := seedAttendee(t, store, "Carolina Restrepo", p1, p2, p3)

	// One property voted on its own before the participant submission.
	_, err := ac.RegisterVote(context.Background(), types.RegisterVoteInput{
		Community:  store.TaxID,
		QuestionID: question.ID,
		PropertyID: p2.ID,
		OptionID:   option.ID,
	})
	require.NoError(t, err)

	out, err := ac.RegisterAttendeeVote(context.Background(), types.RegisterAttendeeVoteInput{
		Community:  store.TaxID,
		QuestionID: question.ID,
		AttendeeID: attendee.ID,
		OptionID:   option.ID,
	})
	require.NoError(t, err)
	require.Equal(t, 3, out.Properties)
	require.Equal(t, 2, out.Registered)
	require.Equal(t, 1, out.Skipped)

	votes, err := store.ListVotesByQuestion(context.Background(), question.ID)
	require.NoError(t, err)
	require.Len(t, votes, 3, "every represented property ends with exactly one vote")
}

func TestAttendeeReplicationAllVotedIsAlreadyVoted(t *testing.T) {
	ac, store, question, option := openVotingFixture(t)

	prop := seedProperty(t, store, "T2-204", "1.00", true)
	attendee := seedAttendee(t, store, "Jorge Mejía", prop)

	in := types.RegisterAttendeeVoteInput{
		Community:  store.TaxID,
		QuestionID: question.ID,
		AttendeeID: attendee.ID,
		OptionID:   option.ID,
	}

	first, err := ac.RegisterAttendeeVote(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 1, first.Registered)

	_, err = ac.RegisterAttendeeVote(context.Background(), in)
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, voting.ErrTypeAlreadyVoted, appErr.Type())
}

func TestAttendeeReplicationClosedQuestionKeepsTerminalType(t *testing.T) {
	ac, store, question, option := openVotingFixture(t)

	p1 := seedProperty(t, store, "T2-205", "1.00", true)
	p2 := seedProperty(t, store, "T2-206", "1.00", true)
	attendee := seedAttendee(t, store, "Lucía Arango", p1, p2)

	svc := voting.NewService(nil, testLogger)
	_, err := svc.CloseQuestion(context.Background(), store, question.ID)
	require.NoError(t, err)

	out, err := ac.RegisterAttendeeVote(context.Background(), types.RegisterAttendeeVoteInput{
		Community:  store.TaxID,
		QuestionID: question.ID,
		AttendeeID: attendee.ID,
		OptionID:   option.ID,
	})
	require.Equal(t, 0, out.Registered)

	// Every property fails the same way, so the batch failure has to carry
	// the non-retryable classification instead of a plain wrapped error.
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, voting.ErrTypeQuestionNotOpen, appErr.Type())
}

func TestAttendeeReplicationWithoutPropertiesIsTerminal(t *testing.T) {
	ac, store, question, option := openVotingFixture(t)

	// Attendees are created with at least one property; detaching afterwards
	// models a property reassigned away mid-meeting.
	prop := seedProperty(t, store, "T2-207", "1.00", true)
	attendee := seedAttendee(t, store, "Marta Ríos", prop)
	require.NoError(t, store.Exec(context.Background(),
		`DELETE FROM attendee_properties WHERE attendee_id = $1`, attendee.ID))

	_, err := ac.RegisterAttendeeVote(context.Background(), types.RegisterAttendeeVoteInput{
		Community:  store.TaxID,
		QuestionID: question.ID,
		AttendeeID: attendee.ID,
		OptionID:   option.ID,
	})

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, voting.ErrTypeAttendeeWithoutProperties, appErr.Type())
}
