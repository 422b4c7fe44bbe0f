package community

import "time"

// QuestionState is the lifecycle state of a voting question.
type QuestionState string

const (
	QuestionInactive  QuestionState = "inactive"
	QuestionOpen      QuestionState = "open"
	QuestionClosed    QuestionState = "closed"
	QuestionCancelled QuestionState = "cancelled"
)

// Terminal reports whether the state admits no further transitions.
func (s QuestionState) Terminal() bool {
	return s == QuestionClosed || s == QuestionCancelled
}

// Question is a single agenda item put to a vote. At most one question per
// meeting may be open at any time; a partial unique index on
// (meeting_id) WHERE state = 'open' is the final arbiter of that invariant.
type Question struct {
	ID        int64         `json:"id"`
	MeetingID int64         `json:"meeting_id"`
	Text      string        `json:"text"`
	State     QuestionState `json:"state"`
	OpenedAt  *time.Time    `json:"opened_at,omitempty"`
	ClosedAt  *time.Time    `json:"closed_at,omitempty"`
	Position  int           `json:"position"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Option is one answer a property can choose for a question. Options become
// immutable once any vote references them.
type Option struct {
	ID         int64     `json:"id"`
	QuestionID int64     `json:"question_id"`
	Label      string    `json:"label"`
	Position   int       `json:"position"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
