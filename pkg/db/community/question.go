package community

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vecindia/asambleax/pkg/db/models/community"
	"github.com/vecindia/asambleax/pkg/db/postgres"
)

// ErrOpenQuestionExists is the single-open index speaking: a second question
// tried to open while the meeting already had one open.
var ErrOpenQuestionExists = errors.New("another question is already open in this meeting")

func (db *DB) initQuestions(ctx context.Context) error {
	if err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS questions (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			meeting_id BIGINT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
			text TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT 'inactive'
				CHECK (state IN ('inactive', 'open', 'closed', 'cancelled')),
			opened_at TIMESTAMPTZ,
			closed_at TIMESTAMPTZ,
			position INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return err
	}

	// Final arbiter of the single-open invariant: two open questions in one
	// meeting cannot coexist no matter what the application checked.
	return db.Exec(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS questions_one_open_per_meeting
		ON questions (meeting_id) WHERE state = 'open'
	`)
}

const questionColumns = `id, meeting_id, text, state, opened_at, closed_at, position, created_at, updated_at`

func scanQuestion(row interface{ Scan(dest ...any) error }, q *community.Question) error {
	return row.Scan(&q.ID, &q.MeetingID, &q.Text, &q.State,
		&q.OpenedAt, &q.ClosedAt, &q.Position, &q.CreatedAt, &q.UpdatedAt)
}

// InsertQuestion persists a new question in the given state. Creating a
// question directly in the open state is subject to the same single-open
// index as an explicit open transition.
func (db *DB) InsertQuestion(ctx context.Context, q *community.Question) error {
	if q.State == "" {
		q.State = community.QuestionInactive
	}
	if q.State == community.QuestionOpen && q.OpenedAt == nil {
		now := time.Now().UTC()
		q.OpenedAt = &now
	}

	query := `
		INSERT INTO questions (meeting_id, text, state, opened_at, position)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := db.QueryRow(ctx, query, q.MeetingID, q.Text, q.State, q.OpenedAt, q.Position).
		Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("meeting #%d: %w", q.MeetingID, ErrOpenQuestionExists)
		}
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

// GetQuestion returns one question by id.
func (db *DB) GetQuestion(ctx context.Context, id int64) (*community.Question, error) {
	return db.getQuestion(ctx, db.Pool, id, false)
}

// GetQuestionForUpdate re-loads a question inside a transaction with a row
// lock, so registration re-checks the state the transaction will commit against.
func (db *DB) GetQuestionForUpdate(ctx context.Context, ex postgres.Executor, id int64) (*community.Question, error) {
	return db.getQuestion(ctx, ex, id, true)
}

func (db *DB) getQuestion(ctx context.Context, ex postgres.Executor, id int64, forUpdate bool) (*community.Question, error) {
	query := fmt.Sprintf(`SELECT %s FROM questions WHERE id = $1`, questionColumns)
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var q community.Question
	if err := scanQuestion(ex.QueryRow(ctx, query, id), &q); err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("question #%d not found", id)
		}
		return nil, fmt.Errorf("get question #%d: %w", id, err)
	}
	return &q, nil
}

// ListQuestionsByMeeting returns a meeting's questions in display order.
func (db *DB) ListQuestionsByMeeting(ctx context.Context, meetingID int64) ([]community.Question, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM questions WHERE meeting_id = $1 ORDER BY position, id
	`, questionColumns)

	rows, err := db.Query(ctx, query, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list questions for meeting #%d: %w", meetingID, err)
	}
	defer rows.Close()

	var out []community.Question
	for rows.Next() {
		var q community.Question
		if err := scanQuestion(rows, &q); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// OpenQuestionInMeeting returns the currently open question of a meeting, or
// nil when none is open.
func (db *DB) OpenQuestionInMeeting(ctx context.Context, ex postgres.Executor, meetingID int64) (*community.Question, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM questions WHERE meeting_id = $1 AND state = 'open'
	`, questionColumns)

	var q community.Question
	if err := scanQuestion(ex.QueryRow(ctx, query, meetingID), &q); err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open question for meeting #%d: %w", meetingID, err)
	}
	return &q, nil
}

// TransitionQuestion moves a question from one state to another, stamping the
// given timestamp column when provided. The WHERE clause on the current state
// makes the transition atomic: zero rows affected means the question was not
// in fromState anymore.
func (db *DB) TransitionQuestion(ctx context.Context, ex postgres.Executor, id int64, fromState, toState community.QuestionState, stampColumn string, at time.Time) (bool, error) {
	query := `UPDATE questions SET state = $3, updated_at = $4`
	if stampColumn != "" {
		switch stampColumn {
		case "opened_at", "closed_at":
			query += fmt.Sprintf(", %s = $4", stampColumn)
		default:
			return false, fmt.Errorf("invalid question timestamp column %q", stampColumn)
		}
	}
	query += ` WHERE id = $1 AND state = $2`

	tag, err := ex.Exec(ctx, query, id, fromState, toState, at)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return false, fmt.Errorf("question #%d: %w", id, ErrOpenQuestionExists)
		}
		return false, fmt.Errorf("transition question #%d %s->%s: %w", id, fromState, toState, err)
	}
	return tag.RowsAffected() == 1, nil
}
