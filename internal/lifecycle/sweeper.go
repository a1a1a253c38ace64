package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lessonflow/internal/model"
	"lessonflow/internal/repository"
	"lessonflow/internal/telemetry"

	"go.uber.org/zap"
)

// Sweep restarts jobs in error and queued or processing jobs that have not been
// updated for maxStuckAge. A non-positive age means the configured default.
func (m *Manager) Sweep(ctx context.Context, maxStuckAge time.Duration) (int, error) {
	if maxStuckAge <= 0 {
		maxStuckAge = m.stuckAfter
	}

	failed, err := m.store.ListJobs(ctx, repository.JobFilter{Status: model.StatusError})
	if err != nil {
		return 0, fmt.Errorf("list failed jobs: %w", err)
	}
	cutoff := m.now().Add(-maxStuckAge)
	var stuck []*model.TranscodingJob
	for _, status := range []model.JobStatus{model.StatusQueued, model.StatusProcessing} {
		jobs, err := m.store.ListJobs(ctx, repository.JobFilter{Status: status, UpdatedBefore: cutoff})
		if err != nil {
			return 0, fmt.Errorf("list stuck %s jobs: %w", status, err)
		}
		stuck = append(stuck, jobs...)
	}

	restarted := 0
	for _, job := range append(failed, stuck...) {
		if m.restart(ctx, job) {
			restarted++
		}
	}

	telemetry.Logger.Info("Recovery sweep finished",
		zap.Int("failed", len(failed)),
		zap.Int("stuck", len(stuck)),
		zap.Int("restarted", restarted),
	)
	return restarted, nil
}

func (m *Manager) restart(ctx context.Context, job *model.TranscodingJob) bool {
	log := telemetry.Logger.With(zap.String("job_id", job.ID), zap.String("video_id", job.VideoID))

	item, err := m.store.GetMedia(ctx, job.VideoID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("Skipping restart, media item no longer exists")
		return false
	}
	if err != nil {
		log.Error("System Error: Failed to load media item for restart", zap.Error(err))
		return false
	}
	if item.TranscodingCompleted {
		log.Info("Skipping restart, media item already transcoded")
		return false
	}

	source := job.SourcePath
	if source == "" {
		source = item.SourcePath
	}
	if err := checkSourceFile(source); err != nil {
		log.Warn("Skipping restart", zap.Error(err))
		return false
	}

	other, err := m.activeJob(ctx, job.VideoID, job.ID)
	if err != nil {
		log.Error("System Error: Failed to check for active jobs", zap.Error(err))
		return false
	}
	original := job.Clone()
	if err := job.MarkRestarted(m.now()); err != nil {
		log.Warn("Skipping restart", zap.Error(err))
		return false
	}
	if err := m.store.UpdateJob(ctx, job); err != nil {
		log.Error("System Error: Failed to mark job restarted", zap.Error(err))
		return false
	}
	if other != nil {
		log.Info("Job superseded by an active attempt", zap.String("active_job_id", other.ID))
		return false
	}

	title := job.Title
	if title == "" {
		title = item.Title
	}
	handle, err := m.CreateJob(ctx, model.CreateJobRequest{
		VideoPath: source,
		VideoID:   job.VideoID,
		Title:     title,
		BaseURL:   job.BaseURL,
	})
	if err != nil {
		// put the old record back unchanged so a later sweep retries it
		log.Warn("Restart could not create a new job", zap.Error(err))
		if err := m.store.UpdateJob(ctx, original); err != nil {
			log.Error("System Error: Failed to roll back restarted job", zap.Error(err))
		}
		return false
	}
	log.Info("Job restarted", zap.String("new_job_id", handle.JobID))
	return true
}
