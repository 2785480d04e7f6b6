package search

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

// Handler exposes the async search surface over HTTP.
type Handler struct {
	orchestrator *Orchestrator
	logger       *zap.Logger
}

func NewHandler(orchestrator *Orchestrator, logger *zap.Logger) *Handler {
	return &Handler{orchestrator: orchestrator, logger: logger}
}

// RegisterRoutes mounts the search endpoints on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/search", h.Submit)
	rg.GET("/search/:requestId/result", h.Result)
	rg.DELETE("/search/:requestId", h.Cancel)
}

// errBody builds an error response carrying the trace id, so a client
// report can be matched to the recorded span.
func errBody(c *gin.Context, msg string) gin.H {
	body := gin.H{"error": msg}
	if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().IsValid() {
		body["traceId"] = span.SpanContext().TraceID().String()
	}
	return body
}

// Submit accepts a search request and returns 202 with a polling URL.
// POST /search?mode=async
func (h *Handler) Submit(c *gin.Context) {
	mode := c.DefaultQuery("mode", "async")
	if mode != "async" {
		c.JSON(http.StatusBadRequest, errBody(c, "unsupported mode, only async is available"))
		return
	}

	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errBody(c, "invalid request body: query is required"))
		return
	}
	if req.SessionID == "" {
		req.SessionID = c.GetHeader("x-session-id")
	}
	if req.SessionID == "" {
		c.JSON(http.StatusBadRequest, errBody(c, "sessionId is required, in the body or the x-session-id header"))
		return
	}

	requestID, reused, err := h.orchestrator.Submit(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("submit failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errBody(c, "could not create search job"))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"requestId": requestID,
		"status":    string(models.StatusPending),
		"reused":    reused,
		"resultUrl": "/api/v1/search/" + requestID + "/result",
	})
}

// Result polls a job. Terminal jobs return the payload with 200; running jobs
// return 202 with status and progress; unknown or expired jobs return 404.
// GET /search/:requestId/result
func (h *Handler) Result(c *gin.Context) {
	requestID := c.Param("requestId")

	job, err := h.orchestrator.store.GetJob(c.Request.Context(), requestID)
	if err != nil {
		h.logger.Error("job lookup failed", zap.String("request_id", requestID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errBody(c, "job store unavailable"))
		return
	}
	if job == nil || !h.ownedByCaller(c, job) {
		c.JSON(http.StatusNotFound, errBody(c, "unknown or expired requestId"))
		return
	}

	if !job.Status.IsTerminal() {
		c.JSON(http.StatusAccepted, gin.H{
			"requestId": job.RequestID,
			"status":    string(job.Status),
			"progress":  job.Progress,
		})
		return
	}

	// Terminal payload is flat: the result fields sit next to requestId
	// rather than under an envelope.
	body := gin.H{
		"requestId": job.RequestID,
		"status":    string(job.Status),
	}
	if job.Result != nil {
		body["results"] = job.Result.Results
		if len(job.Result.Groups) > 0 {
			body["groups"] = job.Result.Groups
		}
		body["meta"] = job.Result.Meta
		if job.Result.Assist != nil {
			body["assist"] = job.Result.Assist
		}
	}
	if job.Error != nil {
		body["error"] = job.Error
	}
	c.JSON(http.StatusOK, body)
}

// Cancel stops a running job. Idempotent: cancelling a finished or unknown
// job is a no-op 204.
// DELETE /search/:requestId
func (h *Handler) Cancel(c *gin.Context) {
	requestID := c.Param("requestId")

	job, err := h.orchestrator.store.GetJob(c.Request.Context(), requestID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errBody(c, "job store unavailable"))
		return
	}
	if job == nil || !h.ownedByCaller(c, job) {
		c.JSON(http.StatusNotFound, errBody(c, "unknown or expired requestId"))
		return
	}

	h.orchestrator.Cancel(requestID)
	c.Status(http.StatusNoContent)
}

// ownedByCaller enforces job ownership. A job tagged with an owner session is
// only visible to that session; an ownership miss reads like a missing job.
func (h *Handler) ownedByCaller(c *gin.Context, job *models.Job) bool {
	if job.OwnerSessionID == "" {
		return true
	}
	caller := c.GetHeader("x-session-id")
	if caller == job.OwnerSessionID {
		return true
	}
	h.logger.Warn("job access denied",
		zap.String("request_id", job.RequestID),
		zap.String("caller_session", caller))
	return false
}

// Health reports liveness and readiness. A probing read against the job
// store surfaces a dead persistent backend as 503.
// GET /healthz
func (h *Handler) Health(c *gin.Context) {
	checks := gin.H{"server": "ok", "jobStore": "ok"}
	status := http.StatusOK
	overall := "UP"
	ready := true
	if _, err := h.orchestrator.store.GetJob(c.Request.Context(), "healthcheck"); err != nil {
		checks["jobStore"] = "unavailable"
		overall = "DOWN"
		ready = false
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": overall, "ready": ready, "checks": checks})
}
