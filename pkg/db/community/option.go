package community

import (
	"context"
	"fmt"
	"time"

	"github.com/vecindia/asambleax/pkg/db/models/community"
	"github.com/vecindia/asambleax/pkg/db/postgres"
)

func (db *DB) initOptions(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS options (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
			label TEXT NOT NULL,
			position INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	return db.Exec(ctx, query)
}

// InsertOption persists a new option for a question.
func (db *DB) InsertOption(ctx context.Context, o *community.Option) error {
	query := `
		INSERT INTO options (question_id, label, position)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := db.QueryRow(ctx, query, o.QuestionID, o.Label, o.Position).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert option: %w", err)
	}
	return nil
}

// GetOption returns one option by id.
func (db *DB) GetOption(ctx context.Context, id int64) (*community.Option, error) {
	query := `
		SELECT id, question_id, label, position, created_at, updated_at
		FROM options WHERE id = $1
	`
	var o community.Option
	err := db.QueryRow(ctx, query, id).
		Scan(&o.ID, &o.QuestionID, &o.Label, &o.Position, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("option #%d not found", id)
		}
		return nil, fmt.Errorf("get option #%d: %w", id, err)
	}
	return &o, nil
}

// ListOptionsByQuestion returns a question's options in display order.
func (db *DB) ListOptionsByQuestion(ctx context.Context, questionID int64) ([]community.Option, error) {
	rows, err := db.Query(ctx, `
		SELECT id, question_id, label, position, created_at, updated_at
		FROM options WHERE question_id = $1 ORDER BY position, id
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("list options for question #%d: %w", questionID, err)
	}
	defer rows.Close()

	var out []community.Option
	for rows.Next() {
		var o community.Option
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.Label, &o.Position, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// OptionHasVotes reports whether any vote references the option.
func (db *DB) OptionHasVotes(ctx context.Context, optionID int64) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM votes WHERE option_id = $1)`, optionID).
		Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check votes for option #%d: %w", optionID, err)
	}
	return exists, nil
}

// UpdateOption changes an option's label and position. Options referenced by
// votes are frozen; the caller sees a state-conflict error.
func (db *DB) UpdateOption(ctx context.Context, o *community.Option) error {
	hasVotes, err := db.OptionHasVotes(ctx, o.ID)
	if err != nil {
		return err
	}
	if hasVotes {
		return fmt.Errorf("option #%d already has votes and cannot be edited", o.ID)
	}

	tag, err := db.Pool.Exec(ctx, `
		UPDATE options SET label = $2, position = $3, updated_at = $4 WHERE id = $1
	`, o.ID, o.Label, o.Position, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update option #%d: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("option #%d not found", o.ID)
	}
	return nil
}

// DeleteOption removes an option that has no votes.
func (db *DB) DeleteOption(ctx context.Context, id int64) error {
	hasVotes, err := db.OptionHasVotes(ctx, id)
	if err != nil {
		return err
	}
	if hasVotes {
		return fmt.Errorf("option #%d already has votes and cannot be deleted", id)
	}

	tag, err := db.Pool.Exec(ctx, `DELETE FROM options WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete option #%d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("option #%d not found", id)
	}
	return nil
}
