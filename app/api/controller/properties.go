package controller

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	model "github.com/vecindia/asambleax/pkg/db/models/community"
)

type propertyRequest struct {
	Nomenclature  string          `json:"nomenclature"`
	Coefficient   decimal.Decimal `json:"coefficient"`
	Kind          string          `json:"kind"`
	OwnerDocument string          `json:"owner_document"`
	OwnerName     string          `json:"owner_name"`
	Phone         string          `json:"phone"`
	Email         string          `json:"email"`
	Active        *bool           `json:"active"`
}

func (req *propertyRequest) validate() string {
	if strings.TrimSpace(req.Nomenclature) == "" {
		return "nomenclature is required"
	}
	if req.Coefficient.IsNegative() || req.Coefficient.GreaterThan(decimal.NewFromInt(100)) {
		return "coefficient must be between 0 and 100"
	}
	return ""
}

func (c *Controller) HandlePropertyCreate(w http.ResponseWriter, r *http.Request) {
	var req propertyRequest
	if !c.decodeBody(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		c.writeError(w, http.StatusBadRequest, msg)
		return
	}

	p := &model.Property{
		Nomenclature:  strings.TrimSpace(req.Nomenclature),
		Coefficient:   req.Coefficient,
		Kind:          req.Kind,
		OwnerDocument: req.OwnerDocument,
		OwnerName:     req.OwnerName,
		Phone:         req.Phone,
		Email:         req.Email,
		Active:        true,
	}
	if req.Active != nil {
		p.Active = *req.Active
	}

	if err := c.store(r).InsertProperty(r.Context(), p); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			c.writeError(w, http.StatusConflict, err.Error())
			return
		}
		c.writeError(w, http.StatusInternalServerError, "failed to create property")
		return
	}
	c.writeJSON(w, http.StatusCreated, p)
}

func (c *Controller) HandlePropertiesList(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	properties, err := c.store(r).ListProperties(r.Context(), activeOnly)
	if err != nil {
		c.writeError(w, http.StatusInternalServerError, "failed to list properties")
		return
	}
	c.writeJSON(w, http.StatusOK, properties)
}

func (c *Controller) HandlePropertyDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := c.pathID(w, r)
	if !ok {
		return
	}

	p, err := c.store(r).GetProperty(r.Context(), id)
	if err != nil {
		c.writeError(w, statusForStoreError(err), err.Error())
		return
	}
	c.writeJSON(w, http.StatusOK, p)
}

// HandlePropertyUpdate replaces the mutable fields. Coefficient edits only
// affect future votes; recorded votes keep the snapshot taken at vote time.
func (c *Controller) HandlePropertyUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := c.pathID(w, r)
	if !ok {
		return
	}

	var req propertyRequest
	if !c.decodeBody(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		c.writeError(w, http.StatusBadRequest, msg)
		return
	}

	p := &model.Property{
		ID:            id,
		Nomenclature:  strings.TrimSpace(req.Nomenclature),
		Coefficient:   req.Coefficient,
		Kind:          req.Kind,
		OwnerDocument: req.OwnerDocument,
		OwnerName:     req.OwnerName,
		Phone:         req.Phone,
		Email:         req.Email,
		Active:        true,
	}
	if req.Active != nil {
		p.Active = *req.Active
	}

	if err := c.store(r).UpdateProperty(r.Context(), p); err != nil {
		c.writeError(w, statusForStoreError(err), err.Error())
		return
	}
	c.writeJSON(w, http.StatusOK, p)
}
