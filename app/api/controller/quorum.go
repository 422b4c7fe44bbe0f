package controller

import (
	"net/http"

	"github.com/vecindia/asambleax/pkg/quorum"
	"go.uber.org/zap"
)

// HandleQuorum serves the cached quorum snapshot. ?recompute=true forces a
// rebuild from attendance rows.
func (c *Controller) HandleQuorum(w http.ResponseWriter, r *http.Request) {
	store := c.store(r)

	var (
		snap *quorum.Snapshot
		err  error
	)
	if r.URL.Query().Get("recompute") == "true" {
		snap, err = c.App.Quorum.Recompute(r.Context(), store)
	} else {
		snap, err = c.App.Quorum.Get(r.Context(), store)
	}
	if err != nil {
		c.App.Logger.Error("Failed to compute quorum",
			zap.String("community", store.TaxID), zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "failed to compute quorum")
		return
	}

	c.writeJSON(w, http.StatusOK, snap)
}
