package lifecycle

import (
	"context"
	"fmt"

	"lessonflow/internal/model"
	"lessonflow/internal/telemetry"

	"go.uber.org/zap"
)

// ScanAndStart creates a job for every uploaded media item that has none yet.
// A bad item is logged and skipped; it never aborts the batch.
func (m *Manager) ScanAndStart(ctx context.Context) (int, error) {
	items, err := m.store.ListPendingMedia(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending media: %w", err)
	}

	started := 0
	for _, item := range items {
		if err := checkSourceFile(item.SourcePath); err != nil {
			telemetry.Logger.Warn("Skipping media item without source file",
				zap.String("video_id", item.ID),
				zap.Error(err),
			)
			continue
		}

		handle, err := m.CreateJob(ctx, model.CreateJobRequest{
			VideoPath: item.SourcePath,
			VideoID:   item.ID,
			Title:     item.Title,
		})
		if err != nil {
			telemetry.Logger.Warn("Scan could not start job", zap.String("video_id", item.ID), zap.Error(err))
			continue
		}
		telemetry.Logger.Info("Scan started job", zap.String("video_id", item.ID), zap.String("job_id", handle.JobID))
		started++
	}

	telemetry.Logger.Info("Queue scan finished", zap.Int("candidates", len(items)), zap.Int("started", started))
	return started, nil
}
