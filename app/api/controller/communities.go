package controller

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/vecindia/asambleax/pkg/db/models/admin"
	"go.uber.org/zap"
)

type createCommunityRequest struct {
	Name  string `json:"name"`
	TaxID string `json:"tax_id"`
}

type communityActiveRequest struct {
	Active bool `json:"active"`
}

// HandleCommunityCreate registers a community in the catalog and provisions
// its storage unit.
func (c *Controller) HandleCommunityCreate(w http.ResponseWriter, r *http.Request) {
	var req createCommunityRequest
	if !c.decodeBody(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.TaxID = strings.TrimSpace(req.TaxID)
	if req.Name == "" || req.TaxID == "" {
		c.writeError(w, http.StatusBadRequest, "name and tax_id are required")
		return
	}

	community := &admin.Community{Name: req.Name, TaxID: req.TaxID, Active: true}
	if err := c.App.CatalogDB.CreateCommunity(r.Context(), community); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			c.writeError(w, http.StatusConflict, err.Error())
			return
		}
		c.App.Logger.Error("Failed to create community", zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "failed to create community")
		return
	}

	if err := c.App.CatalogDB.ProvisionCommunity(r.Context(), community); err != nil {
		c.App.Logger.Error("Failed to provision community storage",
			zap.String("tax_id", community.TaxID), zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "community created but storage provisioning failed")
		return
	}

	c.writeJSON(w, http.StatusCreated, community)
}

func (c *Controller) HandleCommunitiesList(w http.ResponseWriter, r *http.Request) {
	communities, err := c.App.CatalogDB.ListCommunities(r.Context())
	if err != nil {
		c.App.Logger.Error("Failed to list communities", zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "failed to list communities")
		return
	}
	c.writeJSON(w, http.StatusOK, communities)
}

func (c *Controller) HandleCommunityDetail(w http.ResponseWriter, r *http.Request) {
	taxID := mux.Vars(r)["taxId"]

	community, err := c.App.CatalogDB.GetCommunityByTaxID(r.Context(), taxID)
	if err != nil {
		c.writeError(w, http.StatusNotFound, "community not found")
		return
	}
	c.writeJSON(w, http.StatusOK, community)
}

// HandleCommunityActive flips the catalog active flag. Deactivation is soft:
// the tenant database stays untouched and resolution simply starts refusing.
func (c *Controller) HandleCommunityActive(w http.ResponseWriter, r *http.Request) {
	taxID := mux.Vars(r)["taxId"]

	var req communityActiveRequest
	if !c.decodeBody(w, r, &req) {
		return
	}

	if err := c.App.CatalogDB.SetCommunityActive(r.Context(), taxID, req.Active); err != nil {
		c.writeError(w, statusForStoreError(err), err.Error())
		return
	}

	// The router caches resolutions; drop the entry so the flag applies now.
	c.App.Router.Invalidate(taxID)

	c.writeJSON(w, http.StatusOK, map[string]interface{}{"tax_id": taxID, "active": req.Active})
}

type communityDbRequest struct {
	DbName string `json:"db_name"`
}

// HandleCommunityDb repoints a community at another tenant database, used when
// the data has been migrated between Postgres servers or restored under a new
// name. The target database must already exist and hold the tenant schema.
func (c *Controller) HandleCommunityDb(w http.ResponseWriter, r *http.Request) {
	taxID := mux.Vars(r)["taxId"]

	var req communityDbRequest
	if !c.decodeBody(w, r, &req) {
		return
	}
	req.DbName = strings.TrimSpace(req.DbName)
	if req.DbName == "" {
		c.writeError(w, http.StatusBadRequest, "db_name is required")
		return
	}

	if err := c.App.CatalogDB.UpdateDbName(r.Context(), taxID, req.DbName); err != nil {
		c.writeError(w, statusForStoreError(err), err.Error())
		return
	}

	// In-flight requests keep the handle they resolved; new ones get the new
	// database on the next resolve.
	c.App.Router.Invalidate(taxID)

	c.writeJSON(w, http.StatusOK, map[string]interface{}{"tax_id": taxID, "db_name": req.DbName})
}
