package community

import (
	"time"

	"github.com/shopspring/decimal"
)

// Vote is one property's choice on one question. Votes are immutable: the
// store exposes no update or delete path and the votes table carries a trigger
// rejecting both. Coefficient is snapshotted from the property at vote time so
// later coefficient edits never rewrite history.
type Vote struct {
	ID          int64           `json:"id"`
	QuestionID  int64           `json:"question_id"`
	PropertyID  int64           `json:"property_id"`
	OptionID    int64           `json:"option_id"`
	Coefficient decimal.Decimal `json:"coefficient"`
	Phone       string          `json:"phone,omitempty"`
	VotedAt     time.Time       `json:"voted_at"`
}

// OptionResult aggregates the votes for one option of a closed question.
type OptionResult struct {
	OptionID              int64           `json:"option_id"`
	Label                 string          `json:"label"`
	VoteCount             int             `json:"vote_count"`
	VotePercentage        float64         `json:"vote_percentage"`
	CoefficientSum        decimal.Decimal `json:"coefficient_sum"`
	CoefficientPercentage float64         `json:"coefficient_percentage"`
}

// QuestionResults is the full tally for a closed question.
type QuestionResults struct {
	QuestionID       int64           `json:"question_id"`
	Text             string          `json:"text"`
	ClosedAt         *time.Time      `json:"closed_at,omitempty"`
	TotalVotes       int             `json:"total_votes"`
	TotalCoefficient decimal.Decimal `json:"total_coefficient"`
	Options          []OptionResult  `json:"options"`
}
