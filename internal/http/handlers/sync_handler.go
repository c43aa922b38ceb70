// Sync HTTP handlers.
//
//   - GET  /sync        (checkpoint status)
//   - GET  /sync/runs   (recent passes, newest first)
//   - POST /sync        (start a background pass)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-roadmap-replica/internal/domain"
	"github.com/tbourn/go-roadmap-replica/internal/utils"
)

// TriggerSyncResponse reports whether POST /sync started a pass.
type TriggerSyncResponse struct {
	// Started is false when a pass is already running in this process.
	Started bool `json:"started" example:"true"`
}

// ListSyncRunsResponse wraps the run history.
type ListSyncRunsResponse struct {
	Runs []domain.SyncRun `json:"runs"`
}

// GetSyncStatus godoc
// @ID          getSyncStatus
// @Summary     Replication status
// @Description Returns the sync checkpoint: last sync timestamp, status, counts and timings of the latest pass.
// @Tags        Sync
// @Produce     json
// @Success     200  {object}  domain.SyncCheckpoint
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sync [get]
func (h *Handlers) GetSyncStatus(c *gin.Context) {
	cp, err := h.catalog.SyncStatus(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not read sync status")
		return
	}
	ok(c, http.StatusOK, cp)
}

// ListSyncRuns godoc
// @ID          listSyncRuns
// @Summary     Recent replication passes
// @Tags        Sync
// @Produce     json
// @Param       limit  query  int  false  "Number of runs"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListSyncRunsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sync/runs [get]
func (h *Handlers) ListSyncRuns(c *gin.Context) {
	limit := utils.AtoiDefault(c.Query("limit"), 20)
	if limit < 1 {
		limit = 1
	}
	runs, err := h.catalog.SyncRuns(c.Request.Context(), limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list sync runs")
		return
	}
	ok(c, http.StatusOK, ListSyncRunsResponse{Runs: runs})
}

// TriggerSync godoc
// @ID          triggerSync
// @Summary     Start a replication pass
// @Description Starts a pass in the background and returns immediately. Passes never overlap; poll GET /sync for the outcome.
// @Tags        Sync
// @Produce     json
// @Success     202  {object}  handlers.TriggerSyncResponse
// @Router      /sync [post]
func (h *Handlers) TriggerSync(c *gin.Context) {
	started := false
	if h.syncer != nil {
		started = h.syncer.Trigger(c.Request.Context())
	}
	ok(c, http.StatusAccepted, TriggerSyncResponse{Started: started})
}
