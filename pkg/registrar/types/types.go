package types

// RegisterVoteInput asks for one property's vote on one question. Community is
// the tax id the task routes by; everything else is resolved inside the tenant
// database it maps to.
type RegisterVoteInput struct {
	Community  string `json:"community"`
	QuestionID int64  `json:"question_id"`
	PropertyID int64  `json:"property_id"`
	OptionID   int64  `json:"option_id"`
	Phone      string `json:"phone,omitempty"`
}

// RegisterVoteOutput reports the committed vote.
type RegisterVoteOutput struct {
	VoteID     int64   `json:"vote_id,omitempty"`
	DurationMs float64 `json:"duration_ms"`
}

// RegisterAttendeeVoteInput asks to replicate one participant's choice across
// every property that participant represents.
type RegisterAttendeeVoteInput struct {
	Community  string `json:"community"`
	QuestionID int64  `json:"question_id"`
	AttendeeID int64  `json:"attendee_id"`
	OptionID   int64  `json:"option_id"`
	Phone      string `json:"phone,omitempty"`
}

// RegisterAttendeeVoteOutput summarizes the fan-out: how many properties the
// participant represents, how many votes were newly registered, and how many
// were skipped as already voted.
type RegisterAttendeeVoteOutput struct {
	Properties int     `json:"properties"`
	Registered int     `json:"registered"`
	Skipped    int     `json:"skipped"`
	DurationMs float64 `json:"duration_ms"`
}
