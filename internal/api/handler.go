package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lottohub-kr/lottosync/internal/domain"
	"github.com/lottohub-kr/lottosync/internal/job"
	"github.com/lottohub-kr/lottosync/internal/logger"
	"github.com/lottohub-kr/lottosync/internal/store"
	"github.com/lottohub-kr/lottosync/internal/syncer"
)

// Package api exposes the sync control surface and read-only draw queries
// over HTTP.

// Coordinator is the job-control surface the handlers drive.
type Coordinator interface {
	StartRound(round int, scope syncer.Scope) (string, error)
	StartRange(start, end int, scope syncer.Scope) (string, error)
	StartMissing(scope syncer.Scope) (string, error)
	StartToLatest(scope syncer.Scope) (string, error)
	RequestStop() bool
	Progress() domain.SyncProgress
}

// Handler holds the API dependencies.
type Handler struct {
	coord Coordinator
	store store.Store
	log   logger.Logger
}

func NewHandler(coord Coordinator, st store.Store, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{coord: coord, store: st, log: log}
}

// Register mounts all routes on the engine.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)

	api := r.Group("/api")
	{
		syncGroup := api.Group("/sync")
		{
			syncGroup.POST("/round/:round", h.startRound)
			syncGroup.POST("/range", h.startRange)
			syncGroup.POST("/missing", h.startMissing)
			syncGroup.POST("/latest", h.startToLatest)
			syncGroup.POST("/stop", h.stop)
			syncGroup.GET("/progress", h.progress)
		}

		api.GET("/draws/:round", h.getDraw)
		api.GET("/draws/:round/shops", h.getShops)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func scopeFromQuery(c *gin.Context) (syncer.Scope, bool) {
	scope, err := syncer.ParseScope(c.Query("scope"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return scope, true
}

// respondStart maps a coordinator start result onto an HTTP response.
// Conflicts surface as 409 so callers can distinguish "busy" from "broken".
func (h *Handler) respondStart(c *gin.Context, jobID string, err error) {
	switch {
	case errors.Is(err, job.ErrSyncRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
	}
}

func (h *Handler) startRound(c *gin.Context) {
	round, err := strconv.Atoi(c.Param("round"))
	if err != nil || round < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "round must be a positive integer"})
		return
	}
	scope, ok := scopeFromQuery(c)
	if !ok {
		return
	}

	jobID, err := h.coord.StartRound(round, scope)
	h.respondStart(c, jobID, err)
}

type rangeRequest struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Scope string `json:"scope"`
}

func (h *Handler) startRange(c *gin.Context) {
	var req rangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	scope, err := syncer.ParseScope(req.Scope)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID, err := h.coord.StartRange(req.Start, req.End, scope)
	h.respondStart(c, jobID, err)
}

func (h *Handler) startMissing(c *gin.Context) {
	scope, ok := scopeFromQuery(c)
	if !ok {
		return
	}
	jobID, err := h.coord.StartMissing(scope)
	h.respondStart(c, jobID, err)
}

func (h *Handler) startToLatest(c *gin.Context) {
	scope, ok := scopeFromQuery(c)
	if !ok {
		return
	}
	jobID, err := h.coord.StartToLatest(scope)
	h.respondStart(c, jobID, err)
}

func (h *Handler) stop(c *gin.Context) {
	stopped := h.coord.RequestStop()
	c.JSON(http.StatusOK, gin.H{"stopping": stopped})
}

func (h *Handler) progress(c *gin.Context) {
	progress := h.coord.Progress()

	resp := gin.H{
		"job_id":           progress.JobID,
		"is_running":       progress.IsRunning,
		"should_stop":      progress.ShouldStop,
		"operation_type":   progress.OperationType,
		"current_round":    progress.CurrentRound,
		"total_rounds":     progress.TotalRounds,
		"completed_rounds": progress.CompletedRounds,
		"status":           progress.Status,
	}
	if !progress.StartTime.IsZero() {
		resp["start_time"] = progress.StartTime
		if progress.IsRunning {
			resp["elapsed_seconds"] = int(time.Since(progress.StartTime).Seconds())
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getDraw(c *gin.Context) {
	round, err := strconv.Atoi(c.Param("round"))
	if err != nil || round < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "round must be a positive integer"})
		return
	}

	draw, err := h.store.GetDraw(c.Request.Context(), round)
	if err != nil {
		h.log.ErrorObj("draw query failed", "api", map[string]any{"round": round, "error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	if draw == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "round not stored"})
		return
	}
	c.JSON(http.StatusOK, draw)
}

func (h *Handler) getShops(c *gin.Context) {
	round, err := strconv.Atoi(c.Param("round"))
	if err != nil || round < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "round must be a positive integer"})
		return
	}

	shops, err := h.store.ShopsByRound(c.Request.Context(), round)
	if err != nil {
		h.log.ErrorObj("shops query failed", "api", map[string]any{"round": round, "error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"round": round, "count": len(shops), "shops": shops})
}
