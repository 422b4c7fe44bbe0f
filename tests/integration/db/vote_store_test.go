package db

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	communitydb "github.com/vecindia/asambleax/pkg/db/community"
	model "github.com/vecindia/asambleax/pkg/db/models/community"
	"github.com/vecindia/asambleax/pkg/registrar/activity"
	"github.com/vecindia/asambleax/pkg/registrar/types"
	"github.com/vecindia/asambleax/pkg/voting"
	"go.temporal.io/sdk/temporal"
)

// openVotingFixture seeds a meeting with one open question and one option in a
// fresh tenant and returns the pieces a registration needs.
func openVotingFixture(t *testing.T) (*activity.Context, *communitydb.DB, *model.Question, *model.Option) {
	t.Helper()

	catalog := createCatalogStore(t)
	store := createTenantStore(t, catalog, uniqueTaxID())
	redisClient := createRedisClient(t)
	ac := createActivityContext(t, catalog, store, redisClient)

	meeting := seedMeeting(t, store)
	question := seedQuestion(t, store, meeting.ID, model.QuestionOpen)
	option := seedOption(t, store, question.ID, "Sí")
	return ac, store, question, option
}

func TestConcurrentRegistrationsLandExactlyOneVote(t *testing.T) {
	ac, store, question, option := openVotingFixture(t)
	prop := seedProperty(t, store, "T1-101", "1.25", true)

	in := types.RegisterVoteInput{
		Community:  store.TaxID,
		QuestionID: question.ID,
		PropertyID: prop.ID,
		OptionID:   option.ID,
	}

	const attempts = 8
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		registered int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ac.RegisterVote(context.Background(), in)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				registered++
				return
			}
			var appErr *temporal.ApplicationError
			require.ErrorAs(t, err, &appErr)
			require.Contains(t, []string{voting.ErrTypeAlreadyVoted, activity.ErrTypeVoteLock}, appErr.Type(),
				"losers must fail as duplicates or lock contention, never as storage errors")
		}()
	}
	wg.Wait()

	require.Equal(t, 1, registered, "exactly one concurrent registration may win")

	votes, err := store.ListVotesByQuestion(context.Background(), question.ID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	require.Equal(t, prop.ID, votes[0].PropertyID)
	require.True(t, votes[0].Coefficient.Equal(dec(t, "1.25")))
}

func TestInsertVoteRejectsDuplicate(t *testing.T) {
	catalog := createCatalogStore(t)
	store := createTenantStore(t, catalog, uniqueTaxID())

	meeting := seedMeeting(t, store)
	question := seedQuestion(t, store, meeting.ID, model.QuestionOpen)
	option := seedOption(t, store, question.ID, "Sí")
	prop := seedProperty(t, store, "T1-102", "1.00", true)

	vote := &model.Vote{
		QuestionID:  question.ID,
		PropertyID:  prop.ID,
		OptionID:    option.ID,
		Coefficient: prop.Coefficient,
		VotedAt:     time.Now().UTC(),
	}
	require.NoError(t, store.InsertVote(context.Background(), store.Pool, vote))

	again := *vote
	again.ID = 0
	err := store.InsertVote(context.Background(), store.Pool, &again)
	require.ErrorIs(t, err, communitydb.ErrDuplicateVote)
}

func TestVotesRejectUpdateAndDelete(t *testing.T) {
	catalog := createCatalogStore(t)
	store := createTenantStore(t, catalog, uniqueTaxID())

	meeting := seedMeeting(t, store)
	question := seedQuestion(t, store, meeting.ID, model.QuestionOpen)
	yes := seedOption(t, store, question.ID, "Sí")
	no := seedOption(t, store, question.ID, "No")
	prop := seedProperty(t, store, "T1-103", "1.00", true)

	vote := &model.Vote{
		QuestionID:  question.ID,
		PropertyID:  prop.ID,
		OptionID:    yes.ID,
		Coefficient: prop.Coefficient,
		VotedAt:     time.Now().UTC(),
	}
	require.NoError(t, store.InsertVote(context.Background(), store.Pool, vote))

	err := store.Exec(context.Background(), `UPDATE votes SET option_id = $1 WHERE id = $2`, no.ID, vote.ID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "votes are immutable")

	err = store.Exec(context.Background(), `DELETE FROM votes WHERE id = $1`, vote.ID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "votes are immutable")

	votes, err := store.ListVotesByQuestion(context.Background(), question.ID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	require.Equal(t, yes.ID, votes[0].OptionID)
}

func TestRegisterVoteRefusesClosedQuestion(t *testing.T) {
	ac, store, question, option := openVotingFixture(t)
	prop := seedProperty(t, store, "T1-104", "1.00", true)

	svc := voting.NewService(nil, testLogger)
	_, err := svc.CloseQuestion(context.Background(), store, question.ID)
	require.NoError(t, err)

	_, err = ac.RegisterVote(context.Background(), types.RegisterVoteInput{
		Community:  store.TaxID,
		QuestionID: question.ID,
		PropertyID: prop.ID,
		OptionID:   option.ID,
	})

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, voting.ErrTypeQuestionNotOpen, appErr.Type())

	votes, err := store.ListVotesByQuestion(context.Background(), question.ID)
	require.NoError(t, err)
	require.Empty(t, votes)
}
