package community

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vecindia/asambleax/pkg/db/models/community"
	"github.com/vecindia/asambleax/pkg/db/postgres"
)

// ErrDuplicateVote marks the unique (question_id, property_id) violation so
// callers can classify the failure without parsing SQLSTATE themselves.
var ErrDuplicateVote = errors.New("duplicate vote")

func (db *DB) initVotes(ctx context.Context) error {
	if err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS votes (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			question_id BIGINT NOT NULL REFERENCES questions(id),
			property_id BIGINT NOT NULL REFERENCES properties(id),
			option_id BIGINT NOT NULL REFERENCES options(id),
			coefficient NUMERIC(5,2) NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			voted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (question_id, property_id)
		)
	`); err != nil {
		return err
	}

	// Votes are immutable. The store exposes no update or delete path, and
	// this trigger rejects both for any other caller as well.
	if err := db.Exec(ctx, `
		CREATE OR REPLACE FUNCTION votes_reject_mutation() RETURNS trigger AS $$
		BEGIN
			RAISE EXCEPTION 'votes are immutable';
		END
		$$ LANGUAGE plpgsql
	`); err != nil {
		return err
	}

	return db.Exec(ctx, `
		DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'votes_immutable') THEN
				CREATE TRIGGER votes_immutable
				BEFORE UPDATE OR DELETE ON votes
				FOR EACH ROW EXECUTE FUNCTION votes_reject_mutation();
			END IF;
		END
		$$
	`)
}

// InsertVote writes one immutable vote row. It runs on the given executor so
// registration can place it inside the same transaction as the state checks.
// A unique violation maps to ErrDuplicateVote for the caller to classify.
func (db *DB) InsertVote(ctx context.Context, ex postgres.Executor, v *community.Vote) error {
	query := `
		INSERT INTO votes (question_id, property_id, option_id, coefficient, phone, voted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := ex.QueryRow(ctx, query,
		v.QuestionID, v.PropertyID, v.OptionID, v.Coefficient, v.Phone, v.VotedAt,
	).Scan(&v.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("property #%d already voted on question #%d: %w", v.PropertyID, v.QuestionID, ErrDuplicateVote)
		}
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

// VoteExists reports whether a vote already exists for (question, property).
// Used as the pre-check inside the registration transaction; the unique index
// stays the final authority.
func (db *DB) VoteExists(ctx context.Context, ex postgres.Executor, questionID, propertyID int64) (bool, error) {
	var exists bool
	err := ex.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM votes WHERE question_id = $1 AND property_id = $2)
	`, questionID, propertyID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check vote for question #%d property #%d: %w", questionID, propertyID, err)
	}
	return exists, nil
}

// ListVotesByQuestion returns every vote cast on a question, oldest first.
func (db *DB) ListVotesByQuestion(ctx context.Context, questionID int64) ([]community.Vote, error) {
	rows, err := db.Query(ctx, `
		SELECT id, question_id, property_id, option_id, coefficient, phone, voted_at
		FROM votes WHERE question_id = $1 ORDER BY voted_at, id
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("list votes for question #%d: %w", questionID, err)
	}
	defer rows.Close()

	var out []community.Vote
	for rows.Next() {
		var v community.Vote
		if err := rows.Scan(&v.ID, &v.QuestionID, &v.PropertyID, &v.OptionID,
			&v.Coefficient, &v.Phone, &v.VotedAt); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// VoteTally is the per-option aggregate used to assemble question results.
type VoteTally struct {
	OptionID       int64
	VoteCount      int
	CoefficientSum decimal.Decimal
}

// TallyVotes aggregates votes per option for a question.
func (db *DB) TallyVotes(ctx context.Context, questionID int64) ([]VoteTally, error) {
	if err := assertJoinAllowed("votes", "options"); err != nil {
		return nil, err
	}

	rows, err := db.Query(ctx, `
		SELECT o.id, COUNT(v.id), COALESCE(SUM(v.coefficient), 0)
		FROM options o
		LEFT JOIN votes v ON v.option_id = o.id
		WHERE o.question_id = $1
		GROUP BY o.id
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("tally votes for question #%d: %w", questionID, err)
	}
	defer rows.Close()

	var out []VoteTally
	for rows.Next() {
		var t VoteTally
		if err := rows.Scan(&t.OptionID, &t.VoteCount, &t.CoefficientSum); err != nil {
			return nil, fmt.Errorf("scan vote tally: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
