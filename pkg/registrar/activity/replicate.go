package activity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/vecindia/asambleax/pkg/registrar/types"
	"github.com/vecindia/asambleax/pkg/voting"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

// RegisterAttendeeVote replicates one participant's choice across every
// property that participant represents. Best effort per property: a property
// that already voted is skipped, and the activity only fails terminally when
// not a single new vote could be registered.
func (c *Context) RegisterAttendeeVote(ctx context.Context, in types.RegisterAttendeeVoteInput) (types.RegisterAttendeeVoteOutput, error) {
	start := time.Now()

	store, err := c.Store(ctx, in.Community)
	if err != nil {
		return types.RegisterAttendeeVoteOutput{}, temporal.NewApplicationErrorWithCause(
			"unable to resolve community", "community_not_found", err)
	}

	properties, err := store.PropertiesForAttendee(ctx, in.AttendeeID)
	if err != nil {
		return types.RegisterAttendeeVoteOutput{}, err
	}
	if len(properties) == 0 {
		return types.RegisterAttendeeVoteOutput{}, temporal.NewApplicationError(
			fmt.Sprintf("attendee #%d represents no properties", in.AttendeeID),
			voting.ErrTypeAttendeeWithoutProperties)
	}

	var (
		mu         sync.Mutex
		registered int
		skipped    int
		failures   []error
	)

	pool := c.replicationWorkerPool()
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for _, prop := range properties {
		propertyID := prop.ID
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				return
			}

			_, regErr := c.registerPropertyVote(groupCtx, store, in.QuestionID, propertyID, in.OptionID, in.Phone)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case regErr == nil:
				registered++
			case isAlreadyVoted(regErr):
				skipped++
				c.Logger.Debug("Property already voted, skipping",
					zap.String("community", in.Community),
					zap.Int64("question_id", in.QuestionID),
					zap.Int64("property_id", propertyID))
			default:
				failures = append(failures, fmt.Errorf("property #%d: %w", propertyID, regErr))
			}
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		c.Logger.Warn("Replication fan-out encountered error",
			zap.String("community", in.Community),
			zap.Int64("attendee_id", in.AttendeeID),
			zap.Error(err))
	}

	out := types.RegisterAttendeeVoteOutput{
		Properties: len(properties),
		Registered: registered,
		Skipped:    skipped,
		DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
	}

	if registered == 0 {
		if skipped == len(properties) {
			return out, temporal.NewApplicationError(
				fmt.Sprintf("attendee #%d already voted on question #%d with every property", in.AttendeeID, in.QuestionID),
				voting.ErrTypeAlreadyVoted)
		}
		joined := errors.Join(failures...)
		// When every failure carries the same terminal classification the
		// batch as a whole is terminal too; wrapping it in a plain error
		// would lose the type and burn retries on a lost cause.
		switch sharedFailureType(failures) {
		case voting.ErrTypeQuestionNotOpen, voting.ErrTypePropertyInactive:
			return out, temporal.NewApplicationErrorWithCause(
				fmt.Sprintf("no votes registered for attendee #%d", in.AttendeeID),
				sharedFailureType(failures), joined)
		}
		// Nothing landed and at least one property failed transiently; let
		// the retry policy have another go at the ones that failed.
		return out, fmt.Errorf("no votes registered for attendee #%d: %w", in.AttendeeID, joined)
	}

	for _, failure := range failures {
		c.Logger.Warn("Partial replication failure",
			zap.String("community", in.Community),
			zap.Int64("attendee_id", in.AttendeeID),
			zap.Error(failure))
	}

	c.Logger.Info("Participant vote replicated",
		zap.String("community", in.Community),
		zap.Int64("question_id", in.QuestionID),
		zap.Int64("attendee_id", in.AttendeeID),
		zap.Int("properties", out.Properties),
		zap.Int("registered", out.Registered),
		zap.Int("skipped", out.Skipped))
	return out, nil
}

// isAlreadyVoted matches the duplicate classification across the direct error
// and its serialized application-error form.
func isAlreadyVoted(err error) bool {
	var appErr *temporal.ApplicationError
	return errors.As(err, &appErr) && appErr.Type() == voting.ErrTypeAlreadyVoted
}

// sharedFailureType returns the application-error type common to every
// failure, or "" when the failures are mixed or untyped.
func sharedFailureType(failures []error) string {
	var shared string
	for _, f := range failures {
		var appErr *temporal.ApplicationError
		if !errors.As(f, &appErr) {
			return ""
		}
		switch {
		case shared == "":
			shared = appErr.Type()
		case shared != appErr.Type():
			return ""
		}
	}
	return shared
}
