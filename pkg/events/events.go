package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vecindia/asambleax/pkg/redis"
	"go.uber.org/zap"
)

// Event type names carried in the notification envelope and used as the
// channel suffix.
const (
	TypeQuestionOpened = "question.opened"
	TypeQuestionClosed = "question.closed"
	TypeVoteRegistered = "vote.registered"
	TypeQuorumUpdated  = "quorum.updated"
)

// ChannelPrefix is the namespace for all notification channels.
const ChannelPrefix = "asamblea"

// Channel builds the Pub/Sub channel name for one community and event type.
func Channel(communityID, eventType string) string {
	return fmt.Sprintf("%s:%s:%s", ChannelPrefix, communityID, eventType)
}

// Pattern matches every event of one community ("*" for all communities).
func Pattern(communityID string) string {
	return fmt.Sprintf("%s:%s:*", ChannelPrefix, communityID)
}

// Envelope is the wire format of a notification.
type Envelope struct {
	Type      string          `json:"type"`
	Community string          `json:"community"`
	EmittedAt time.Time       `json:"emitted_at"`
	Payload   json.RawMessage `json:"payload"`
}

// QuestionPayload is the payload for question.opened / question.closed.
type QuestionPayload struct {
	QuestionID int64      `json:"question_id"`
	MeetingID  int64      `json:"meeting_id"`
	Text       string     `json:"text"`
	State      string     `json:"state"`
	OpenedAt   *time.Time `json:"opened_at,omitempty"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}

// VotePayload is the payload for vote.registered.
type VotePayload struct {
	QuestionID  int64           `json:"question_id"`
	PropertyID  int64           `json:"property_id"`
	OptionID    int64           `json:"option_id"`
	Coefficient decimal.Decimal `json:"coefficient"`
	VotedAt     time.Time       `json:"voted_at"`
}

// QuorumPayload is the payload for quorum.updated.
type QuorumPayload struct {
	MeetingID         *int64          `json:"meeting_id,omitempty"`
	PropertiesPresent int             `json:"properties_present"`
	CoefficientSum    decimal.Decimal `json:"coefficient_sum"`
	Percentage        float64         `json:"percentage"`
	ComputedAt        time.Time       `json:"computed_at"`
}

// Publisher emits update notifications for real-time observers. It is passed
// into the components that produce side effects; nothing publishes through
// package-level state.
type Publisher struct {
	redis  *redis.Client
	logger *zap.Logger
}

// NewPublisher wires a publisher to the Redis client. A nil redis client
// yields a publisher that drops events (useful when the broker is optional).
func NewPublisher(redisClient *redis.Client, logger *zap.Logger) *Publisher {
	return &Publisher{redis: redisClient, logger: logger}
}

// Publish emits one event. Best effort: failures are logged, never escalated,
// so notifications cannot break the operation that produced them.
func (p *Publisher) Publish(ctx context.Context, communityID, eventType string, payload any) {
	if p == nil || p.redis == nil {
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("Failed to marshal event payload",
			zap.String("type", eventType),
			zap.Error(err))
		return
	}

	env := Envelope{
		Type:      eventType,
		Community: communityID,
		EmittedAt: time.Now().UTC(),
		Payload:   raw,
	}
	data, err := json.Marshal(env)
	if err != nil {
		p.logger.Warn("Failed to marshal event envelope",
			zap.String("type", eventType),
			zap.Error(err))
		return
	}

	p.redis.Publish(ctx, Channel(communityID, eventType), data)
}
