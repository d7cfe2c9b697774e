// Package api implements the WebPulse HTTP API.
package api

//go:generate mockgen -source=handler.go -destination=mocks/mock_job_service.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ranamudassir31/webpulse-ai/internal/domain"
	"github.com/ranamudassir31/webpulse-ai/internal/job"
	"github.com/ranamudassir31/webpulse-ai/internal/logger"
	"github.com/ranamudassir31/webpulse-ai/internal/report"
)

const (
	defaultLimit  = 50
	defaultOffset = 0
	maxLimit      = 500
)

// JobService is the job manager as seen by the HTTP layer.
type JobService interface {
	Create(ctx context.Context, seed string, req domain.JobRequest) (string, error)
	Status(ctx context.Context, id string) (*domain.CrawlJob, error)
	ReportAs(ctx context.Context, id string, format report.Format) (*domain.RenderedDocument, error)
	Cancel(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]*domain.CrawlJob, error)
	Stats(ctx context.Context) (*job.Stats, error)
}

// CreateJobRequest is the body of POST /api/v1/jobs. Omitted limits take
// the server defaults; an explicit zero is kept and validated.
type CreateJobRequest struct {
	SeedURL string `json:"seed_url" binding:"required"`
	domain.JobRequest
}

// CreateJobResponse is returned with 202 Accepted.
type CreateJobResponse struct {
	JobID string `json:"job_id"`
}

// JobsHandler serves the job endpoints.
// Request-scoped loggers come from the request context.
type JobsHandler struct {
	jobs JobService
}

// NewJobsHandler creates a handler.
func NewJobsHandler(jobs JobService) *JobsHandler {
	return &JobsHandler{jobs: jobs}
}

// RegisterRoutes mounts the API under /api/v1 and the metrics handler, when
// given, at /metrics.
func (h *JobsHandler) RegisterRoutes(router gin.IRouter, metrics http.Handler) {
	v1 := router.Group("/api/v1")
	v1.POST("/jobs", h.CreateJob)
	v1.GET("/jobs", h.ListJobs)
	v1.GET("/jobs/:id", h.GetJob)
	v1.GET("/jobs/:id/report", h.GetReport)
	v1.POST("/jobs/:id/cancel", h.CancelJob)
	v1.DELETE("/jobs/:id", h.DeleteJob)
	v1.GET("/stats", h.GetStats)

	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}
}

// CreateJob handles POST /api/v1/jobs.
func (h *JobsHandler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	id, err := h.jobs.Create(c.Request.Context(), req.SeedURL, req.JobRequest)
	if err != nil {
		h.respondJobError(c, err)
		return
	}

	logger.FromContext(c.Request.Context()).Info("Crawl job accepted",
		logger.JobID(id),
		logger.URL(req.SeedURL),
	)
	c.Header("Location", "/api/v1/jobs/"+id)
	c.JSON(http.StatusAccepted, CreateJobResponse{JobID: id})
}

// ListJobs handles GET /api/v1/jobs.
func (h *JobsHandler) ListJobs(c *gin.Context) {
	limit, offset := parseLimitOffset(c, defaultLimit, defaultOffset)

	jobs, err := h.jobs.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondJobError(c, err)
		return
	}
	if jobs == nil {
		jobs = []*domain.CrawlJob{}
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":   jobs,
		"limit":  limit,
		"offset": offset,
	})
}

// GetJob handles GET /api/v1/jobs/:id.
func (h *JobsHandler) GetJob(c *gin.Context) {
	j, err := h.jobs.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondJobError(c, err)
		return
	}
	c.JSON(http.StatusOK, j)
}

// GetReport handles GET /api/v1/jobs/:id/report. The document exists only
// once the job has completed.
func (h *JobsHandler) GetReport(c *gin.Context) {
	format, err := report.ParseFormat(c.Query("format"))
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	id := c.Param("id")
	doc, err := h.jobs.ReportAs(c.Request.Context(), id, format)
	if err != nil {
		h.respondJobError(c, err)
		return
	}

	if c.Query("format") != "" {
		c.Header("Content-Disposition",
			fmt.Sprintf(`inline; filename="webpulse-%s.%s"`, id, format.Extension()))
	}
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

// CancelJob handles POST /api/v1/jobs/:id/cancel.
func (h *JobsHandler) CancelJob(c *gin.Context) {
	id := c.Param("id")
	if err := h.jobs.Cancel(c.Request.Context(), id); err != nil {
		h.respondJobError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": id, "message": "cancellation requested"})
}

// DeleteJob handles DELETE /api/v1/jobs/:id.
func (h *JobsHandler) DeleteJob(c *gin.Context) {
	if err := h.jobs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondJobError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetStats handles GET /api/v1/stats.
func (h *JobsHandler) GetStats(c *gin.Context) {
	stats, err := h.jobs.Stats(c.Request.Context())
	if err != nil {
		h.respondJobError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// respondJobError maps manager errors to HTTP statuses.
func (h *JobsHandler) respondJobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, job.ErrInvalidSeed), errors.Is(err, job.ErrInvalidConfig),
		errors.Is(err, report.ErrUnknownFormat):
		respondBadRequest(c, err.Error())
	case errors.Is(err, job.ErrNotFound):
		respondNotFound(c, "job")
	case errors.Is(err, job.ErrAlreadyCancelled), errors.Is(err, job.ErrJobActive):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, job.ErrQuotaExceeded):
		respondError(c, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, job.ErrShuttingDown):
		respondError(c, http.StatusServiceUnavailable, err.Error())
	default:
		logger.FromContext(c.Request.Context()).Error("Job request failed",
			logger.String("path", c.FullPath()),
			logger.Error(err),
		)
		_ = c.Error(err)
		respondInternalError(c, "internal error")
	}
}

func parseLimitOffset(c *gin.Context, defLimit, defOffset int) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defLimit)))
	if err != nil || limit <= 0 {
		limit = defLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", strconv.Itoa(defOffset)))
	if err != nil || offset < 0 {
		offset = defOffset
	}
	return limit, offset
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func respondNotFound(c *gin.Context, resource string) {
	respondError(c, http.StatusNotFound, resource+" not found")
}

func respondBadRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, message)
}

func respondInternalError(c *gin.Context, message string) {
	respondError(c, http.StatusInternalServerError, message)
}
