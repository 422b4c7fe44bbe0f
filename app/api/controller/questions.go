package controller

import (
	"errors"
	"net/http"
	"strings"

	model "github.com/vecindia/asambleax/pkg/db/models/community"
	"github.com/vecindia/asambleax/pkg/voting"
)

type questionRequest struct {
	Text     string   `json:"text"`
	Position int      `json:"position"`
	Options  []string `json:"options"`
}

type optionRequest struct {
	Label    string `json:"label"`
	Position int    `json:"position"`
}

// HandleQuestionCreate adds a question to a meeting, inactive until explicitly
// opened. Options may be supplied inline for convenience.
func (c *Controller) HandleQuestionCreate(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := c.pathID(w, r)
	if !ok {
		return
	}

	var req questionRequest
	if !c.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	store := c.store(r)

	// Validate the meeting exists before inserting against its FK.
	if _, err := store.GetMeeting(r.Context(), meetingID); err != nil {
		c.writeError(w, statusForStoreError(err), err.Error())
		return
	}

	q := &model.Question{
		MeetingID: meetingID,
		Text:      strings.TrimSpace(req.Text),
		Position:  req.Position,
	}
	if err := store.InsertQuestion(r.Context(), q); err != nil {
		c.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	for i, label := range req.Options {
		opt := &model.Option{QuestionID: q.ID, Label: label, Position: i}
		if err := store.InsertOption(r.Context(), opt); err != nil {
			c.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	c.writeJSON(w, http.StatusCreated, q)
}

func (c *Controller) HandleQuestionsList(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := c.pathID(w, r)
	if !ok {
		return
	}

	questions, err := c.store(r).ListQuestionsByMeeting(r.Context(), meetingID)
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "failed to list questions")
		return
	}
	c.writeJSON(w, http.StatusOK, questions)
}

func (c *Controller) HandleQuestionDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := c.pathID(w, r)
	if !ok {
		return
	}

	q, err := c.store(r).GetQuestion(r.Context(), id)
	if err != nil {
		c.writeError(w, statusForStoreError(err), err.Error())
		return
	}
	c.writeJSON(w, http.StatusOK, q)
}

func (c *Controller) HandleQuestionOpen(w http.ResponseWriter, r *http.Request) {
	id, ok := c.pathID(w, r)
	if !ok {
		return
	}

	q, err := c.App.Voting.OpenQuestion(r.Context(), c.store(r), id)
	if err != nil {
		c.writeVotingError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, q)
}

func (c *Controller) HandleQuestionClose(w http.ResponseWriter, r *http.Request) {
	id, ok := c.pathID(w, r)
	if !ok {
		return
	}

	q, err := c.App.Voting.CloseQuestion(r.Context(), c.store(r), id)
	if err != nil {
		c.writeVotingError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, q)
}

func (c *Controller) HandleQuestionCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := c.pathID(w, r)
	if !ok {
		return
	}

	q, err := c.App.Voting.CancelQuestion(r.Context(), c.store(r), id)
	if err != nil {
		c.writeVotingError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, q)
}

// HandleQuestionResults serves the tally of a closed question. Anything not
// closed yet is a conflict, not an empty result.
func (c *Controller) HandleQuestionResults(w http.ResponseWriter, r *http.Request) {
	id, ok := c.pathID(w, r)
	if !ok {
		return
	}

	results, err := c.App.Voting.Results(r.Context(), c.store(r), id)
	if err != nil {
		c.writeVotingError(w, err)
		return
	}
	c.writeJSON(w, http.StatusOK, results)
}

func (c *Controller) HandleOptionCreate(w http.ResponseWriter, r *http.Request) {
	questionID, ok := c.pathID(w, r)
	if !ok {
		return
	}

	var req optionRequest
	if !c.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Label) == "" {
		c.writeError(w, http.StatusBadRequest, "label is required")
		return
	}

	q, err := c.store(r).GetQuestion(r.Context(), questionID)
	if err != nil {
		c.writeError(w, statusForStoreError(err), err.Error())
		return
	}
	if q.State.Terminal() {
		c.writeError(w, http.StatusConflict, "question is "+string(q.State)+" and no longer accepts options")
		return
	}

	opt := &model.Option{QuestionID: questionID, Label: strings.TrimSpace(req.Label), Position: req.Position}
	if err := c.store(r).InsertOption(r.Context(), opt); err != nil {
		c.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	c.writeJSON(w, http.StatusCreated, opt)
}

func (c *Controller) HandleOptionsList(w http.ResponseWriter, r *http.Request) {
	questionID, ok := c.pathID(w, r)
	if !ok {
		return
	}

	options, err := c.store(r).ListOptionsByQuestion(r.Context(), questionID)
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "failed to list options")
		return
	}
	c.writeJSON(w, http.StatusOK, options)
}

func (c *Controller) HandleOptionUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := c.pathID(w, r)
	if !ok {
		return
	}

	var req optionRequest
	if !c.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Label) == "" {
		c.writeError(w, http.StatusBadRequest, "label is required")
		return
	}

	opt := &model.Option{ID: id, Label: strings.TrimSpace(req.Label), Position: req.Position}
	if err := c.store(r).UpdateOption(r.Context(), opt); err != nil {
		if strings.Contains(err.Error(), "already has votes") {
			c.writeError(w, http.StatusConflict, err.Error())
			return
		}
		c.writeError(w, statusForStoreError(err), err.Error())
		return
	}
	c.writeJSON(w, http.StatusOK, opt)
}

func (c *Controller) HandleOptionDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := c.pathID(w, r)
	if !ok {
		return
	}

	if err := c.store(r).DeleteOption(r.Context(), id); err != nil {
		if strings.Contains(err.Error(), "already has votes") {
			c.writeError(w, http.StatusConflict, err.Error())
			return
		}
		c.writeError(w, statusForStoreError(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeVotingError maps lifecycle errors to their HTTP status.
func (c *Controller) writeVotingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, voting.ErrInvalidTransition), errors.Is(err, voting.ErrResultsNotReady):
		c.writeError(w, http.StatusConflict, err.Error())
	default:
		c.writeError(w, statusForStoreError(err), err.Error())
	}
}
