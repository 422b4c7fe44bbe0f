package temporal

import (
	"context"
	"fmt"
	"time"

	"github.com/vecindia/asambleax/pkg/utils"
	"go.uber.org/zap"

	"go.temporal.io/api/enums/v1"
	taskqueuepb "go.temporal.io/api/taskqueue/v1"
	workflowservicepb "go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
)

type Client struct {
	TClient   client.Client
	Namespace string

	// Task Queues
	VotesQueue string // votes:<community> - per community queue so one assembly's burst never starves another community's registrations.

	// Workflow IDs
	VoteWorkflowId         string
	AttendeeVoteWorkflowId string
}

type Health struct {
	ConnectionOK bool                      `json:"connection_ok"`
	VotesQueue   []*taskqueuepb.PollerInfo `json:"votes_queue,omitempty"`
}

func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	host := utils.Env("TEMPORAL_HOSTPORT", "localhost:7233")
	ns := utils.Env("TEMPORAL_NAMESPACE", "asambleax")
	loggerWrapper := NewZapAdapter(logger)

	logger.Info("Connecting to Temporal", zap.String("host", host), zap.String("namespace", ns))
	tClient, err := Dial(ctx, host, ns, loggerWrapper)
	if err != nil {
		return nil, err
	}

	if _, err = tClient.CheckHealth(ctx, nil); err != nil {
		return nil, err
	}

	return &Client{
		TClient:   tClient,
		Namespace: ns,
		// for now this is just hardcoded, could be configurable if we need it
		VotesQueue: "votes:%s",
		// workflow IDs
		VoteWorkflowId:         "%s:vote:%d:%d",
		AttendeeVoteWorkflowId: "%s:attendee-vote:%d:%d",
	}, nil
}

// Dial connects to Temporal using the provided hostPort and namespace.
func Dial(ctx context.Context, hostPort, namespace string, logger log.Logger) (client.Client, error) {
	return client.DialContext(
		ctx,
		client.Options{
			HostPort:  hostPort,
			Namespace: namespace,
			Logger:    logger,
		},
	)
}

// GetVotesQueue returns the vote registration queue for the given community.
func (c *Client) GetVotesQueue(taxID string) string {
	return fmt.Sprintf(c.VotesQueue, taxID)
}

// GetVoteWorkflowId returns the workflow ID for a direct property vote. One
// workflow per (community, question, property) keeps duplicate submissions on
// the same in-flight registration.
func (c *Client) GetVoteWorkflowId(taxID string, questionID, propertyID int64) string {
	return fmt.Sprintf(c.VoteWorkflowId, taxID, questionID, propertyID)
}

// GetAttendeeVoteWorkflowId returns the workflow ID for a participant vote
// replicated across the participant's properties.
func (c *Client) GetAttendeeVoteWorkflowId(taxID string, questionID, attendeeID int64) string {
	return fmt.Sprintf(c.AttendeeVoteWorkflowId, taxID, questionID, attendeeID)
}

// Health returns the health of the Temporal client for the given community
// queue.
func (c *Client) Health(ctx context.Context, taxID string) (Health, error) {
	h := Health{ConnectionOK: true}
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	svc := c.TClient.WorkflowService()
	if svc != nil {
		if rep, err := svc.DescribeTaskQueue(ctx, &workflowservicepb.DescribeTaskQueueRequest{
			Namespace:     c.Namespace,
			TaskQueue:     &taskqueuepb.TaskQueue{Name: c.GetVotesQueue(taxID)},
			TaskQueueType: enums.TASK_QUEUE_TYPE_WORKFLOW,
		}); err == nil {
			h.VotesQueue = rep.GetPollers()
		}
	}
	return h, nil
}
