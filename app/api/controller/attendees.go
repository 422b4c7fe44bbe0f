package controller

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	model "github.com/vecindia/asambleax/pkg/db/models/community"
	"go.uber.org/zap"
)

type attendeePropertyRequest struct {
	PropertyID    int64           `json:"property_id"`
	Coefficient   decimal.Decimal `json:"coefficient"`
	ProxyDocument string          `json:"proxy_document"`
}

type attendeeRequest struct {
	Name       string                    `json:"name"`
	Document   string                    `json:"document"`
	Phone      string                    `json:"phone"`
	Properties []attendeePropertyRequest `json:"properties"`
}

// HandleAttendeeCreate registers a participant with the properties they
// represent and recomputes quorum, since attendance just changed.
func (c *Controller) HandleAttendeeCreate(w http.ResponseWriter, r *http.Request) {
	var req attendeeRequest
	if !c.decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		c.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if len(req.Properties) == 0 {
		c.writeError(w, http.StatusBadRequest, "attendee must represent at least one property")
		return
	}

	store := c.store(r)

	a := &model.Attendee{
		Name:       strings.TrimSpace(req.Name),
		Document:   req.Document,
		Phone:      req.Phone,
		AccessCode: uuid.NewString(),
	}
	for _, p := range req.Properties {
		if p.PropertyID <= 0 {
			c.writeError(w, http.StatusBadRequest, "property_id is required for every represented property")
			return
		}
		coefficient := p.Coefficient
		if coefficient.IsZero() {
			// Default to the property's full coefficient.
			prop, err := store.GetProperty(r.Context(), p.PropertyID)
			if err != nil {
				c.writeError(w, statusForStoreError(err), err.Error())
				return
			}
			coefficient = prop.Coefficient
		}
		a.Properties = append(a.Properties, model.AttendeeProperty{
			PropertyID:    p.PropertyID,
			Coefficient:   coefficient,
			ProxyDocument: p.ProxyDocument,
		})
	}

	if err := store.InsertAttendee(r.Context(), a); err != nil {
		c.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if _, err := c.App.Quorum.Recompute(r.Context(), store); err != nil {
		c.App.Logger.Warn("Quorum recompute after registration failed",
			zap.String("community", store.TaxID), zap.Error(err))
	}

	c.writeJSON(w, http.StatusCreated, a)
}

func (c *Controller) HandleAttendeesList(w http.ResponseWriter, r *http.Request) {
	attendees, err := c.store(r).ListAttendees(r.Context())
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "failed to list attendees")
		return
	}
	c.writeJSON(w, http.StatusOK, attendees)
}

func (c *Controller) HandleAttendeeDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := c.pathID(w, r)
	if !ok {
		return
	}

	a, err := c.store(r).GetAttendee(r.Context(), id)
	if err != nil {
		c.writeError(w, statusForStoreError(err), err.Error())
		return
	}
	c.writeJSON(w, http.StatusOK, a)
}

// HandleAttendeeByCode resolves a participant from their access code. This is
// the lookup the inbound messaging channel uses to identify who is voting.
func (c *Controller) HandleAttendeeByCode(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if code == "" {
		c.writeError(w, http.StatusBadRequest, "access code is required")
		return
	}

	a, err := c.store(r).GetAttendeeByAccessCode(r.Context(), code)
	if err != nil {
		c.writeError(w, statusForStoreError(err), err.Error())
		return
	}
	c.writeJSON(w, http.StatusOK, a)
}

// HandleAttendeeDelete unregisters a participant. Votes already recorded for
// their properties stay; only future representation changes.
func (c *Controller) HandleAttendeeDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := c.pathID(w, r)
	if !ok {
		return
	}

	store := c.store(r)
	if err := store.DeleteAttendee(r.Context(), id); err != nil {
		c.writeError(w, statusForStoreError(err), err.Error())
		return
	}

	if _, err := c.App.Quorum.Recompute(r.Context(), store); err != nil {
		c.App.Logger.Warn("Quorum recompute after unregistration failed",
			zap.String("community", store.TaxID), zap.Error(err))
	}

	w.WriteHeader(http.StatusNoContent)
}
