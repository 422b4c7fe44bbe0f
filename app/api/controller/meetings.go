package controller

import (
	"net/http"
	"strings"
	"time"

	model "github.com/vecindia/asambleax/pkg/db/models/community"
)

type meetingRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

func (c *Controller) HandleMeetingCreate(w http.ResponseWriter, r *http.Request) {
	var req meetingRequest
	if !c.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		c.writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.ScheduledAt.IsZero() {
		req.ScheduledAt = time.Now().UTC()
	}

	m := &model.Meeting{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		ScheduledAt: req.ScheduledAt.UTC(),
	}
	if err := c.store(r).InsertMeeting(r.Context(), m); err != nil {
		c.writeError(w, http.StatusInternalServerError, "failed to create meeting")
		return
	}
	c.writeJSON(w, http.StatusCreated, m)
}

func (c *Controller) HandleMeetingsList(w http.ResponseWriter, r *http.Request) {
	meetings, err := c.store(r).ListMeetings(r.Context())
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "failed to list meetings")
		return
	}
	c.writeJSON(w, http.StatusOK, meetings)
}

func (c *Controller) HandleMeetingDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := c.pathID(w, r)
	if !ok {
		return
	}

	m, err := c.store(r).GetMeeting(r.Context(), id)
	if err != nil {
		c.writeError(w, statusForStoreError(err), err.Error())
		return
	}
	c.writeJSON(w, http.StatusOK, m)
}

func (c *Controller) HandleMeetingStart(w http.ResponseWriter, r *http.Request) {
	id, ok := c.pathID(w, r)
	if !ok {
		return
	}

	store := c.store(r)
	if err := store.StartMeeting(r.Context(), id); err != nil {
		c.writeError(w, statusForStoreError(err), err.Error())
		return
	}

	m, err := store.GetMeeting(r.Context(), id)
	if err != nil {
		c.writeError(w, statusForStoreError(err), err.Error())
		return
	}
	c.writeJSON(w, http.StatusOK, m)
}

func (c *Controller) HandleMeetingEnd(w http.ResponseWriter, r *http.Request) {
	id, ok := c.pathID(w, r)
	if !ok {
		return
	}

	store := c.store(r)

	// An open question would be left dangling; require it settled first.
	open, err := store.OpenQuestionInMeeting(r.Context(), store.Pool, id)
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if open != nil {
		c.writeError(w, http.StatusConflict, "meeting still has an open question")
		return
	}

	if err := store.EndMeeting(r.Context(), id); err != nil {
		c.writeError(w, statusForStoreError(err), err.Error())
		return
	}

	m, err := store.GetMeeting(r.Context(), id)
	if err != nil {
		c.writeError(w, statusForStoreError(err), err.Error())
		return
	}
	c.writeJSON(w, http.StatusOK, m)
}
