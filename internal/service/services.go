package service

import (
	"context"
	"time"

	"lessonflow/internal/model"
	"lessonflow/internal/repository"
	"lessonflow/internal/telemetry"
)

// JobManager is the job lifecycle surface the entry points call into.
type JobManager interface {
	CreateJob(ctx context.Context, req model.CreateJobRequest) (model.JobHandle, error)
	GetJobStatus(ctx context.Context, jobID string) (*model.TranscodingJob, error)
	ListJobs(ctx context.Context, filter repository.JobFilter) ([]*model.TranscodingJob, error)
	ScanAndStart(ctx context.Context) (int, error)
	Sweep(ctx context.Context, maxStuckAge time.Duration) (int, error)
}

// UploadPublisher hands upload events to whichever queue the worker consumes.
type UploadPublisher interface {
	PublishUpload(ctx context.Context, event model.UploadEvent) error
}

// Services holds all application dependencies
type Services struct {
	Metrics telemetry.MetricsClient
	Jobs    JobManager
	Uploads UploadPublisher
}

// NewServices creates a new Services instance
func NewServices(metrics telemetry.MetricsClient, jobs JobManager, uploads UploadPublisher) *Services {
	return &Services{
		Metrics: metrics,
		Jobs:    jobs,
		Uploads: uploads,
	}
}
