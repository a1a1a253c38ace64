package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"lessonflow/internal/lifecycle"
	"lessonflow/internal/model"
	"lessonflow/internal/repository"
	"lessonflow/internal/service"
	"lessonflow/internal/telemetry"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultListLimit = 50

// Server encapsulates the HTTP server functionality
type Server struct {
	services  *service.Services
	port      string
	mediaRoot string
	router    *gin.Engine
	server    *http.Server
}

// NewServer creates a new API server with the provided services. Artifacts under
// mediaRoot are served at /media.
func NewServer(svc *service.Services, port, mediaRoot string) *Server {
	if port == "" {
		port = "8080"
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		services:  svc,
		port:      port,
		mediaRoot: mediaRoot,
	}
	s.router = s.routes()
	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestMetrics())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if h, ok := s.services.Metrics.(interface{ Handler() http.Handler }); ok {
		r.GET("/metrics", gin.WrapH(h.Handler()))
	}
	if s.mediaRoot != "" {
		r.Static("/media", s.mediaRoot)
	}

	jobs := r.Group("/jobs")
	{
		jobs.POST("", s.handleCreateJob)
		jobs.GET("", s.handleListJobs)
		jobs.GET("/:id", s.handleGetJob)
		jobs.POST("/scan", s.handleScan)
		jobs.POST("/sweep", s.handleSweep)
	}
	r.POST("/uploads/events", s.handlePublishUpload)
	return r
}

// Start initializes routes and starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         ":" + s.port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to capture server errors
	errCh := make(chan error, 1)

	go func() {
		telemetry.Logger.Info("Starting server", zap.String("port", s.port))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		telemetry.Logger.Info("Shutting down server gracefully")
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Writer.Status() >= http.StatusBadRequest {
			s.services.Metrics.IncrementServerRequestCounter("failed")
			return
		}
		s.services.Metrics.IncrementServerRequestCounter("success")
	}
}

func (s *Server) handleCreateJob(c *gin.Context) {
	var req model.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		telemetry.Logger.Error("User error: Failed to decode job request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	handle, err := s.services.Jobs.CreateJob(ctx, req)
	if err != nil {
		s.writeCreateError(c, req, err)
		return
	}

	telemetry.Logger.Info("Job submitted successfully",
		zap.String("job_id", handle.JobID),
		zap.String("video_id", handle.VideoID),
	)
	c.JSON(http.StatusAccepted, handle)
}

func (s *Server) writeCreateError(c *gin.Context, req model.CreateJobRequest, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrInvalidRequest):
		telemetry.Logger.Error("User error: Rejected job request", zap.String("video_id", req.VideoID), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, lifecycle.ErrVideoBusy):
		telemetry.Logger.Warn("User error: Video is busy", zap.String("video_id", req.VideoID), zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		telemetry.Logger.Error("System Error: Failed to create job", zap.String("video_id", req.VideoID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
	}
}

func (s *Server) handleGetJob(c *gin.Context) {
	job, err := s.services.Jobs.GetJobStatus(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if err != nil {
		telemetry.Logger.Error("System Error: Failed to load job", zap.String("job_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// jobSummary is the list view of a job; it omits source details and variants.
type jobSummary struct {
	JobID             string          `json:"jobId"`
	VideoID           string          `json:"videoId"`
	Status            model.JobStatus `json:"status"`
	Progress          int             `json:"progress"`
	MasterPlaylistURL string          `json:"masterPlaylistUrl,omitempty"`
	Error             string          `json:"error,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
	CompletedAt       *time.Time      `json:"completedAt,omitempty"`
}

func summarize(j *model.TranscodingJob) jobSummary {
	return jobSummary{
		JobID:             j.ID,
		VideoID:           j.VideoID,
		Status:            j.Status,
		Progress:          j.Progress,
		MasterPlaylistURL: j.MasterPlaylistURL,
		Error:             j.Error,
		CreatedAt:         j.CreatedAt,
		UpdatedAt:         j.UpdatedAt,
		CompletedAt:       j.CompletedAt,
	}
}

func (s *Server) handleListJobs(c *gin.Context) {
	filter := repository.JobFilter{
		VideoID: c.Query("videoId"),
		Status:  model.JobStatus(c.Query("status")),
		Limit:   defaultListLimit,
	}
	if filter.Status != "" && !model.IsValidJobStatus(filter.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + string(filter.Status)})
		return
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filter.Limit = limit
	}

	jobs, err := s.services.Jobs.ListJobs(c.Request.Context(), filter)
	if err != nil {
		telemetry.Logger.Error("System Error: Failed to list jobs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}

	out := make([]jobSummary, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, summarize(j))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleScan(c *gin.Context) {
	started, err := s.services.Jobs.ScanAndStart(c.Request.Context())
	if err != nil {
		telemetry.Logger.Error("System Error: Queue scan failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "scan failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"started": started})
}

func (s *Server) handleSweep(c *gin.Context) {
	var age time.Duration
	if raw := c.Query("maxStuckAgeHours"); raw != "" {
		hours, err := strconv.ParseFloat(raw, 64)
		if err != nil || hours <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "maxStuckAgeHours must be a positive number"})
			return
		}
		age = time.Duration(hours * float64(time.Hour))
	}

	restarted, err := s.services.Jobs.Sweep(c.Request.Context(), age)
	if err != nil {
		telemetry.Logger.Error("System Error: Recovery sweep failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"restarted": restarted})
}

// handlePublishUpload lets the upload subsystem hand over a finished upload
// through the queue instead of calling POST /jobs directly.
func (s *Server) handlePublishUpload(c *gin.Context) {
	if s.services.Uploads == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no upload queue configured"})
		return
	}

	var event model.UploadEvent
	if err := c.ShouldBindJSON(&event); err != nil || event.VideoID == "" || event.VideoPath == "" {
		telemetry.Logger.Error("User error: Invalid upload event", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "videoId and videoPath are required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := s.services.Uploads.PublishUpload(ctx, event); err != nil {
		telemetry.Logger.Error("System Error: Failed to publish upload event", zap.String("video_id", event.VideoID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue upload"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"videoId": event.VideoID, "queued": true})
}
