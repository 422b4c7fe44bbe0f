package controller

import (
	"net/http"

	"github.com/vecindia/asambleax/pkg/registrar/types"
	registrarworkflow "github.com/vecindia/asambleax/pkg/registrar/workflow"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

type voteRequest struct {
	QuestionID int64  `json:"question_id"`
	OptionID   int64  `json:"option_id"`
	PropertyID int64  `json:"property_id,omitempty"`
	AttendeeID int64  `json:"attendee_id,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type voteAccepted struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
}

// HandleVoteSubmit queues a vote registration and returns immediately. The
// caller gets the workflow id back and can observe the outcome through the
// event stream or the results endpoint; registration itself is asynchronous.
func (c *Controller) HandleVoteSubmit(w http.ResponseWriter, r *http.Request) {
	if c.App.TemporalClient == nil {
		c.writeError(w, http.StatusServiceUnavailable, "vote submission unavailable")
		return
	}

	var req voteRequest
	if !c.decodeBody(w, r, &req) {
		return
	}
	if req.QuestionID <= 0 || req.OptionID <= 0 {
		c.writeError(w, http.StatusBadRequest, "question_id and option_id are required")
		return
	}
	if (req.PropertyID > 0) == (req.AttendeeID > 0) {
		c.writeError(w, http.StatusBadRequest, "exactly one of property_id or attendee_id is required")
		return
	}

	store := c.store(r)
	taxID := store.TaxID
	tc := c.App.TemporalClient

	var (
		workflowID string
		run        client.WorkflowRun
		err        error
	)

	if req.PropertyID > 0 {
		workflowID = tc.GetVoteWorkflowId(taxID, req.QuestionID, req.PropertyID)
		run, err = tc.TClient.ExecuteWorkflow(r.Context(), client.StartWorkflowOptions{
			ID:        workflowID,
			TaskQueue: tc.GetVotesQueue(taxID),
		}, registrarworkflow.RegisterVoteWorkflowName, types.RegisterVoteInput{
			Community:  taxID,
			QuestionID: req.QuestionID,
			PropertyID: req.PropertyID,
			OptionID:   req.OptionID,
			Phone:      req.Phone,
		})
	} else {
		workflowID = tc.GetAttendeeVoteWorkflowId(taxID, req.QuestionID, req.AttendeeID)
		run, err = tc.TClient.ExecuteWorkflow(r.Context(), client.StartWorkflowOptions{
			ID:        workflowID,
			TaskQueue: tc.GetVotesQueue(taxID),
		}, registrarworkflow.RegisterParticipantVoteWorkflowName, types.RegisterAttendeeVoteInput{
			Community:  taxID,
			QuestionID: req.QuestionID,
			AttendeeID: req.AttendeeID,
			OptionID:   req.OptionID,
			Phone:      req.Phone,
		})
	}
	if err != nil {
		c.App.Logger.Error("Failed to queue vote registration",
			zap.String("community", taxID),
			zap.String("workflow_id", workflowID),
			zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "failed to queue vote registration")
		return
	}

	c.writeJSON(w, http.StatusAccepted, voteAccepted{
		WorkflowID: run.GetID(),
		RunID:      run.GetRunID(),
		Status:     "queued",
	})
}

// HandleVotesList returns the raw ballot of a question, oldest first. Useful
// for audits; aggregated results come from the results endpoint.
func (c *Controller) HandleVotesList(w http.ResponseWriter, r *http.Request) {
	questionID, ok := c.pathID(w, r)
	if !ok {
		return
	}

	votes, err := c.store(r).ListVotesByQuestion(r.Context(), questionID)
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "failed to list votes")
		return
	}
	c.writeJSON(w, http.StatusOK, votes)
}
