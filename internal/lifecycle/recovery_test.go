package lifecycle

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"lessonflow/internal/model"
	"lessonflow/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanWithNoEligibleMedia(t *testing.T) {
	h := newHarness(t, 1280, 720)
	ctx := context.Background()
	require.NoError(t, h.store.UpsertMedia(ctx, &model.MediaItem{ID: "done", Status: model.MediaReady, TranscodingCompleted: true, SourcePath: h.source}))

	started, err := h.manager.ScanAndStart(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, started)

	jobs, err := h.manager.ListJobs(ctx, repository.JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestScanSkipsMissingFiles(t *testing.T) {
	h := newHarness(t, 1280, 720)
	ctx := context.Background()
	require.NoError(t, h.store.UpsertMedia(ctx, &model.MediaItem{ID: "present", Status: model.MediaUploaded, SourcePath: h.source, Title: "Week 1"}))
	require.NoError(t, h.store.UpsertMedia(ctx, &model.MediaItem{ID: "gone", Status: model.MediaUploaded, SourcePath: filepath.Join(t.TempDir(), "nope.mp4")}))

	started, err := h.manager.ScanAndStart(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, started)
	h.manager.Wait()

	jobs, err := h.manager.ListJobs(ctx, repository.JobFilter{VideoID: "present"})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, model.StatusCompleted, jobs[0].Status)
	assert.Equal(t, "Week 1", jobs[0].Title)

	gone, err := h.store.GetMedia(ctx, "gone")
	require.NoError(t, err)
	assert.Equal(t, model.MediaUploaded, gone.Status)
}

func TestSweepRestartsStuckJob(t *testing.T) {
	h := newHarness(t, 1280, 720)
	ctx := context.Background()

	stale := model.NewJob("stale", "course-9", h.source, "Week 2", "http://cdn.test/media", time.Now().UTC().Add(-30*time.Hour))
	stale.Status = model.StatusProcessing
	require.NoError(t, h.store.InsertJob(ctx, stale))
	require.NoError(t, h.store.UpsertMedia(ctx, &model.MediaItem{ID: "course-9", Status: model.MediaProcessing, SourcePath: h.source, JobID: "stale"}))

	restarted, err := h.manager.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, restarted)
	h.manager.Wait()

	old, err := h.manager.GetJobStatus(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRestarted, old.Status)

	jobs, err := h.manager.ListJobs(ctx, repository.JobFilter{VideoID: "course-9"})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.NotEqual(t, "stale", jobs[0].ID)
	assert.Equal(t, model.StatusCompleted, jobs[0].Status)
	assert.Equal(t, "Week 2", jobs[0].Title)

	item, err := h.store.GetMedia(ctx, "course-9")
	require.NoError(t, err)
	assert.Equal(t, jobs[0].ID, item.JobID)
	assert.True(t, item.TranscodingCompleted)
}

func TestSweepLeavesRecentProcessingJob(t *testing.T) {
	h := newHarness(t, 1280, 720)
	ctx := context.Background()

	recent := model.NewJob("recent", "course-10", h.source, "", "", time.Now().UTC().Add(-2*time.Hour))
	recent.Status = model.StatusProcessing
	require.NoError(t, h.store.InsertJob(ctx, recent))
	require.NoError(t, h.store.UpsertMedia(ctx, &model.MediaItem{ID: "course-10", Status: model.MediaProcessing, SourcePath: h.source}))

	restarted, err := h.manager.Sweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, restarted)

	job, err := h.manager.GetJobStatus(ctx, "recent")
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, job.Status)
}

func TestSweepSkipsIneligibleFailedJobs(t *testing.T) {
	h := newHarness(t, 1280, 720)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, tc := range []struct {
		id, video, source string
		media             *model.MediaItem
	}{
		{"no-media", "v-no-media", h.source, nil},
		{"no-file", "v-no-file", filepath.Join(t.TempDir(), "missing.mp4"), &model.MediaItem{ID: "v-no-file", Status: model.MediaError}},
		{"already-done", "v-done", h.source, &model.MediaItem{ID: "v-done", Status: model.MediaReady, TranscodingCompleted: true}},
	} {
		job := model.NewJob(tc.id, tc.video, tc.source, "", "", now)
		job.Status = model.StatusError
		job.Error = "boom"
		require.NoError(t, h.store.InsertJob(ctx, job))
		if tc.media != nil {
			require.NoError(t, h.store.UpsertMedia(ctx, tc.media))
		}
	}

	restarted, err := h.manager.Sweep(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, restarted)

	jobs, err := h.manager.ListJobs(ctx, repository.JobFilter{Status: model.StatusError})
	require.NoError(t, err)
	assert.Len(t, jobs, 3)
}

func TestSweepRestartsFailedJob(t *testing.T) {
	h := newHarness(t, 1280, 720)
	ctx := context.Background()

	failed := model.NewJob("failed", "course-11", h.source, "", "", time.Now().UTC().Add(-time.Hour))
	failed.Status = model.StatusError
	failed.Error = "ffprobe failed"
	require.NoError(t, h.store.InsertJob(ctx, failed))
	require.NoError(t, h.store.UpsertMedia(ctx, &model.MediaItem{ID: "course-11", Status: model.MediaError, SourcePath: h.source}))

	restarted, err := h.manager.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, restarted)
	h.manager.Wait()

	jobs, err := h.manager.ListJobs(ctx, repository.JobFilter{VideoID: "course-11"})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, model.StatusCompleted, jobs[0].Status)
	assert.Equal(t, "http://cdn.test/media/course-11/master.m3u8", jobs[0].MasterPlaylistURL)
	assert.Equal(t, model.StatusRestarted, jobs[1].Status)
}

func TestSweepRestartsOrphanedQueuedJob(t *testing.T) {
	h := newHarness(t, 1280, 720)
	ctx := context.Background()

	orphan := model.NewJob("orphan", "course-17", h.source, "Week 3", "", time.Now().UTC().Add(-72*time.Hour))
	require.NoError(t, h.store.InsertJob(ctx, orphan))
	require.NoError(t, h.store.UpsertMedia(ctx, &model.MediaItem{ID: "course-17", Status: model.MediaProcessing, SourcePath: h.source, JobID: "orphan"}))

	restarted, err := h.manager.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, restarted)
	h.manager.Wait()

	jobs, err := h.manager.ListJobs(ctx, repository.JobFilter{VideoID: "course-17"})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, model.StatusCompleted, jobs[0].Status)
	assert.Equal(t, "orphan", jobs[1].ID)
	assert.Equal(t, model.StatusRestarted, jobs[1].Status)

	item, err := h.store.GetMedia(ctx, "course-17")
	require.NoError(t, err)
	assert.Equal(t, jobs[0].ID, item.JobID)
	assert.True(t, item.TranscodingCompleted)
}

func TestSweepLeavesRecentQueuedJob(t *testing.T) {
	h := newHarness(t, 1280, 720)
	ctx := context.Background()

	waiting := model.NewJob("waiting", "course-18", h.source, "", "", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, h.store.InsertJob(ctx, waiting))
	require.NoError(t, h.store.UpsertMedia(ctx, &model.MediaItem{ID: "course-18", Status: model.MediaProcessing, SourcePath: h.source, JobID: "waiting"}))

	restarted, err := h.manager.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, restarted)

	job, err := h.manager.GetJobStatus(ctx, "waiting")
	require.NoError(t, err)
	assert.Equal(t, model.StatusQueued, job.Status)
}

func TestSweepRollsBackWhenRestartFails(t *testing.T) {
	h := newHarness(t, 1280, 720)
	ctx := context.Background()

	failed := model.NewJob("failed", "course-19", h.source, "", "", time.Now().UTC().Add(-time.Hour))
	failed.Status = model.StatusError
	failed.Error = "ffprobe failed"
	require.NoError(t, h.store.InsertJob(ctx, failed))
	require.NoError(t, h.store.UpsertMedia(ctx, &model.MediaItem{ID: "course-19", Status: model.MediaError, SourcePath: h.source, JobID: "failed"}))

	h.store.rejectInserts(1)
	restarted, err := h.manager.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, restarted)

	old, err := h.manager.GetJobStatus(ctx, "failed")
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, old.Status)
	assert.Equal(t, "ffprobe failed", old.Error)

	restarted, err = h.manager.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, restarted)
	h.manager.Wait()

	jobs, err := h.manager.ListJobs(ctx, repository.JobFilter{VideoID: "course-19"})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, model.StatusCompleted, jobs[0].Status)
	assert.Equal(t, model.StatusRestarted, jobs[1].Status)
}

func TestSweepSupersedesJobWhenAnotherIsActive(t *testing.T) {
	h := newHarness(t, 1280, 720)
	ctx := context.Background()

	failed := model.NewJob("failed", "course-20", h.source, "", "", time.Now().UTC().Add(-2*time.Hour))
	failed.Status = model.StatusError
	failed.Error = "boom"
	require.NoError(t, h.store.InsertJob(ctx, failed))
	running := model.NewJob("running", "course-20", h.source, "", "", time.Now().UTC())
	running.Status = model.StatusProcessing
	require.NoError(t, h.store.InsertJob(ctx, running))
	require.NoError(t, h.store.UpsertMedia(ctx, &model.MediaItem{ID: "course-20", Status: model.MediaProcessing, SourcePath: h.source, JobID: "running"}))

	restarted, err := h.manager.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, restarted)

	old, err := h.manager.GetJobStatus(ctx, "failed")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRestarted, old.Status)

	jobs, err := h.manager.ListJobs(ctx, repository.JobFilter{VideoID: "course-20"})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}
