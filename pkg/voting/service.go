package voting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	communitydb "github.com/vecindia/asambleax/pkg/db/community"
	"github.com/vecindia/asambleax/pkg/db/models/community"
	"github.com/vecindia/asambleax/pkg/events"
	"go.uber.org/zap"
)

// Service drives the question lifecycle for one request at a time. It holds no
// tenant state: the caller resolves the community store and passes it in, so
// one service instance serves every community.
type Service struct {
	Events *events.Publisher
	Logger *zap.Logger
}

func NewService(publisher *events.Publisher, logger *zap.Logger) *Service {
	return &Service{Events: publisher, Logger: logger.With(zap.String("component", "voting"))}
}

// OpenQuestion moves a question from inactive to open and stamps opened_at.
// The row lock plus the state predicate make concurrent opens race-safe, and
// the partial unique index keeps a second question from opening while another
// one is open in the same meeting.
func (s *Service) OpenQuestion(ctx context.Context, store *communitydb.DB, questionID int64) (*community.Question, error) {
	q, err := s.transition(ctx, store, questionID, community.QuestionInactive, community.QuestionOpen, "opened_at")
	if err != nil {
		return nil, err
	}

	s.Logger.Info("Question opened",
		zap.String("community", store.TaxID),
		zap.Int64("question_id", q.ID),
		zap.Int64("meeting_id", q.MeetingID))
	s.publishQuestionEvent(ctx, store.TaxID, events.TypeQuestionOpened, q)
	return q, nil
}

// CloseQuestion moves an open question to closed and stamps closed_at. Votes
// in flight that committed before the transition stay counted; anything after
// is rejected by the registrar's in-transaction state check.
func (s *Service) CloseQuestion(ctx context.Context, store *communitydb.DB, questionID int64) (*community.Question, error) {
	q, err := s.transition(ctx, store, questionID, community.QuestionOpen, community.QuestionClosed, "closed_at")
	if err != nil {
		return nil, err
	}

	s.Logger.Info("Question closed",
		zap.String("community", store.TaxID),
		zap.Int64("question_id", q.ID),
		zap.Int64("meeting_id", q.MeetingID))
	s.publishQuestionEvent(ctx, store.TaxID, events.TypeQuestionClosed, q)
	return q, nil
}

// CancelQuestion voids a question that was never put to a vote. Only inactive
// questions can be cancelled; an open question has to be closed instead so the
// votes already recorded stay accounted for.
func (s *Service) CancelQuestion(ctx context.Context, store *communitydb.DB, questionID int64) (*community.Question, error) {
	q, err := s.transition(ctx, store, questionID, community.QuestionInactive, community.QuestionCancelled, "")
	if err != nil {
		return nil, err
	}

	s.Logger.Info("Question cancelled",
		zap.String("community", store.TaxID),
		zap.Int64("question_id", q.ID))
	return q, nil
}

// Results assembles the tally for a closed question. Open and cancelled
// questions have no results.
func (s *Service) Results(ctx context.Context, store *communitydb.DB, questionID int64) (*community.QuestionResults, error) {
	q, err := store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if q.State != community.QuestionClosed {
		return nil, fmt.Errorf("%w: question #%d is %s", ErrResultsNotReady, q.ID, q.State)
	}

	options, err := store.ListOptionsByQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	tallies, err := store.TallyVotes(ctx, questionID)
	if err != nil {
		return nil, err
	}

	return ComputeResults(q, options, tallies), nil
}

func (s *Service) transition(ctx context.Context, store *communitydb.DB, questionID int64, from, to community.QuestionState, stampColumn string) (*community.Question, error) {
	now := time.Now().UTC()
	var out *community.Question

	err := store.BeginFunc(ctx, func(tx pgx.Tx) error {
		q, err := store.GetQuestionForUpdate(ctx, tx, questionID)
		if err != nil {
			return err
		}
		if q.State != from {
			return fmt.Errorf("%w: question #%d is %s, expected %s", ErrInvalidTransition, q.ID, q.State, from)
		}

		// The partial unique index is the arbiter, but checking here turns the
		// common conflict into a clean state error instead of a pg violation.
		if to == community.QuestionOpen {
			open, err := store.OpenQuestionInMeeting(ctx, tx, q.MeetingID)
			if err != nil {
				return err
			}
			if open != nil && open.ID != q.ID {
				return fmt.Errorf("%w: question #%d is already open in meeting #%d", ErrInvalidTransition, open.ID, q.MeetingID)
			}
		}

		moved, err := store.TransitionQuestion(ctx, tx, questionID, from, to, stampColumn, now)
		if err != nil {
			if errors.Is(err, communitydb.ErrOpenQuestionExists) {
				return fmt.Errorf("%w: %s", ErrInvalidTransition, err)
			}
			return err
		}
		if !moved {
			return fmt.Errorf("%w: question #%d changed state concurrently", ErrInvalidTransition, q.ID)
		}

		q.State = to
		q.UpdatedAt = now
		switch stampColumn {
		case "opened_at":
			q.OpenedAt = &now
		case "closed_at":
			q.ClosedAt = &now
		}
		out = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) publishQuestionEvent(ctx context.Context, taxID, eventType string, q *community.Question) {
	s.Events.Publish(ctx, taxID, eventType, events.QuestionPayload{
		QuestionID: q.ID,
		MeetingID:  q.MeetingID,
		Text:       q.Text,
		State:      string(q.State),
		OpenedAt:   q.OpenedAt,
		ClosedAt:   q.ClosedAt,
	})
}
