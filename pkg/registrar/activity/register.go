package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	communitydb "github.com/vecindia/asambleax/pkg/db/community"
	model "github.com/vecindia/asambleax/pkg/db/models/community"
	"github.com/vecindia/asambleax/pkg/events"
	"github.com/vecindia/asambleax/pkg/registrar/types"
	"github.com/vecindia/asambleax/pkg/voting"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

// LockTTL bounds how long a registration lock can outlive its holder. Locks
// are advisory: the unique index on (question_id, property_id) stays correct
// even if a lock expires mid-transaction.
const LockTTL = 5 * time.Second

// ErrTypeVoteLock marks a failed lock acquisition. Retryable: the holder
// finishes within the TTL and a later attempt gets through.
const ErrTypeVoteLock = "vote_lock_error"

// LockKey is the registration lock for one (community, question, property).
func LockKey(community string, questionID, propertyID int64) string {
	return fmt.Sprintf("vote:%s:%d:%d", community, questionID, propertyID)
}

// RegisterVote records one property's vote on an open question. The state
// check, the duplicate pre-check and the insert share one transaction, so a
// close racing this activity either lands before the row lock (vote rejected)
// or after the commit (vote counted).
func (c *Context) RegisterVote(ctx context.Context, in types.RegisterVoteInput) (types.RegisterVoteOutput, error) {
	start := time.Now()

	store, err := c.Store(ctx, in.Community)
	if err != nil {
		return types.RegisterVoteOutput{}, temporal.NewApplicationErrorWithCause(
			"unable to resolve community", "community_not_found", err)
	}

	vote, err := c.registerPropertyVote(ctx, store, in.QuestionID, in.PropertyID, in.OptionID, in.Phone)
	if err != nil {
		return types.RegisterVoteOutput{}, err
	}

	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	return types.RegisterVoteOutput{VoteID: vote.ID, DurationMs: durationMs}, nil
}

// registerPropertyVote is the single-property registration shared by the
// direct and the participant paths.
func (c *Context) registerPropertyVote(ctx context.Context, store *communitydb.DB, questionID, propertyID, optionID int64, phone string) (*model.Vote, error) {
	prop, err := store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if !prop.Active {
		return nil, temporal.NewApplicationError(
			fmt.Sprintf("property #%d is inactive", propertyID), voting.ErrTypePropertyInactive)
	}

	lock, acquired, err := c.RedisClient.AcquireLock(ctx, LockKey(store.TaxID, questionID, propertyID), LockTTL)
	if err != nil {
		return nil, temporal.NewApplicationErrorWithCause("vote lock unavailable", ErrTypeVoteLock, err)
	}
	if !acquired {
		return nil, temporal.NewApplicationError(
			fmt.Sprintf("registration for property #%d already in flight", propertyID), ErrTypeVoteLock)
	}
	defer lock.Release(ctx)

	vote := &model.Vote{
		QuestionID:  questionID,
		PropertyID:  propertyID,
		OptionID:    optionID,
		Coefficient: prop.Coefficient,
		Phone:       phone,
		VotedAt:     time.Now().UTC(),
	}

	txErr := store.BeginFunc(ctx, func(tx pgx.Tx) error {
		q, err := store.GetQuestionForUpdate(ctx, tx, questionID)
		if err != nil {
			return err
		}
		if q.State != model.QuestionOpen {
			return temporal.NewApplicationError(
				fmt.Sprintf("question #%d is %s", q.ID, q.State), voting.ErrTypeQuestionNotOpen)
		}

		// Pre-check for a friendlier failure. The unique index remains the
		// final authority for races the lock did not serialize.
		exists, err := store.VoteExists(ctx, tx, questionID, propertyID)
		if err != nil {
			return err
		}
		if exists {
			return temporal.NewApplicationError(
				fmt.Sprintf("property #%d already voted on question #%d", propertyID, questionID),
				voting.ErrTypeAlreadyVoted)
		}

		if err := store.InsertVote(ctx, tx, vote); err != nil {
			if errors.Is(err, communitydb.ErrDuplicateVote) {
				return temporal.NewApplicationErrorWithCause(
					"vote already registered", voting.ErrTypeAlreadyVoted, err)
			}
			return err
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	c.Logger.Info("Vote registered",
		zap.String("community", store.TaxID),
		zap.Int64("question_id", questionID),
		zap.Int64("property_id", propertyID),
		zap.Int64("option_id", optionID))

	c.Events.Publish(ctx, store.TaxID, events.TypeVoteRegistered, events.VotePayload{
		QuestionID:  vote.QuestionID,
		PropertyID:  vote.PropertyID,
		OptionID:    vote.OptionID,
		Coefficient: vote.Coefficient,
		VotedAt:     vote.VotedAt,
	})
	return vote, nil
}
