package voting

import "errors"

// Error type names carried on application errors so the task runner can tell
// permanent failures from transient ones. Permanent failures are never retried.
const (
	ErrTypeQuestionNotOpen           = "question_not_open"
	ErrTypeAlreadyVoted              = "already_voted"
	ErrTypePropertyInactive          = "property_inactive"
	ErrTypeAttendeeWithoutProperties = "attendee_without_properties"
)

var (
	// ErrQuestionNotOpen rejects votes and close transitions on questions
	// that are not currently open.
	ErrQuestionNotOpen = errors.New("question is not open for voting")

	// ErrAlreadyVoted marks a duplicate registration for the same
	// (question, property) pair. The first vote stands.
	ErrAlreadyVoted = errors.New("property already voted on this question")

	// ErrInvalidTransition rejects lifecycle moves the state machine does
	// not admit, such as reopening a closed question.
	ErrInvalidTransition = errors.New("invalid question state transition")

	// ErrResultsNotReady rejects result reads before the question closes.
	ErrResultsNotReady = errors.New("results are only available once the question is closed")
)
