package handler

import (
	"context"
	"net/http"

	"catalogsync/internal/apierror"
	"catalogsync/internal/service"

	"github.com/gin-gonic/gin"
)

type SyncHandler struct{ svc service.SyncService }

func NewSyncHandler(svc service.SyncService) *SyncHandler { return &SyncHandler{svc: svc} }

// Trigger godoc
// @Summary Run a catalog sync and wait for it
// @Description Returns started=false at once when a run is already in flight.
// @Tags sync
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.SyncResult
// @Failure 502 {object} dto.SyncResult
// @Router /v1/sync [post]
func (h *SyncHandler) Trigger(c *gin.Context) {
	if h.svc == nil {
		unconfigured(c)
		return
	}
	// a client that hangs up should not abort a half-written run
	ctx := context.WithoutCancel(c.Request.Context())
	res, err := h.svc.SyncAll(ctx)
	if err != nil {
		c.JSON(http.StatusBadGateway, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Last godoc
// @Summary Summary of the most recent sync run
// @Tags sync
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.SyncResult
// @Failure 404 {object} apierror.APIError
// @Router /v1/sync/last [get]
func (h *SyncHandler) Last(c *gin.Context) {
	if h.svc == nil {
		unconfigured(c)
		return
	}
	res, err := h.svc.LastRun(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if res == nil {
		c.JSON(http.StatusNotFound, apierror.WithKind(apierror.KindNotFound, "no sync has run yet"))
		return
	}
	c.JSON(http.StatusOK, res)
}

func unconfigured(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, apierror.WithKind(apierror.KindUnavailable, "upstream ERP is not configured"))
}
