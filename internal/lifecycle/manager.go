package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"lessonflow/internal/model"
	"lessonflow/internal/rendition"
	"lessonflow/internal/repository"
	"lessonflow/internal/telemetry"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

type Inspector interface {
	Inspect(ctx context.Context, path string) (*model.VideoInfo, error)
}

type Renderer interface {
	Render(ctx context.Context, src, outDir string, plan []rendition.Target, manifest *rendition.ManifestBuilder, onTier func(rendition.TierResult) error) error
}

type ManagerConfig struct {
	Store     repository.Store
	Inspector Inspector
	Renderer  Renderer
	Metrics   telemetry.MetricsClient

	Tiers             []model.Tier
	OutputRoot        string
	DefaultBaseURL    string
	MaxConcurrentJobs int
	StuckAfter        time.Duration
	LockTTL           time.Duration
	Now               func() time.Time
}

// Manager owns every job record: creation, transitions, progress and the media
// item mirror. Jobs run on their own goroutine once created.
type Manager struct {
	store     repository.Store
	inspector Inspector
	renderer  Renderer
	metrics   telemetry.MetricsClient

	tiers          []model.Tier
	outputRoot     string
	defaultBaseURL string
	stuckAfter     time.Duration
	lockTTL        time.Duration
	now            func() time.Time

	slots *semaphore.Weighted
	wg    sync.WaitGroup
}

func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		store:          cfg.Store,
		inspector:      cfg.Inspector,
		renderer:       cfg.Renderer,
		metrics:        cfg.Metrics,
		tiers:          cfg.Tiers,
		outputRoot:     cfg.OutputRoot,
		defaultBaseURL: strings.TrimRight(cfg.DefaultBaseURL, "/"),
		stuckAfter:     cfg.StuckAfter,
		lockTTL:        cfg.LockTTL,
		now:            cfg.Now,
	}
	if len(m.tiers) == 0 {
		m.tiers = model.DefaultTiers
	}
	if m.stuckAfter <= 0 {
		m.stuckAfter = 24 * time.Hour
	}
	if m.lockTTL <= 0 {
		m.lockTTL = 30 * time.Second
	}
	if m.now == nil {
		m.now = func() time.Time { return time.Now().UTC() }
	}
	slots := cfg.MaxConcurrentJobs
	if slots <= 0 {
		slots = 1
	}
	m.slots = semaphore.NewWeighted(int64(slots))
	return m
}

func validate(req model.CreateJobRequest) error {
	if strings.TrimSpace(req.VideoID) == "" {
		return fmt.Errorf("%w: videoId is required", ErrInvalidRequest)
	}
	if strings.ContainsAny(req.VideoID, `/\`) || req.VideoID == "." || req.VideoID == ".." {
		return fmt.Errorf("%w: videoId %q is not a valid directory name", ErrInvalidRequest, req.VideoID)
	}
	if strings.TrimSpace(req.VideoPath) == "" {
		return fmt.Errorf("%w: videoPath is required", ErrInvalidRequest)
	}
	return nil
}

// CreateJob persists a queued job, marks the media item processing and starts
// the pipeline in the background. It never waits for encoding.
func (m *Manager) CreateJob(ctx context.Context, req model.CreateJobRequest) (model.JobHandle, error) {
	if err := validate(req); err != nil {
		return model.JobHandle{}, err
	}
	baseURL := strings.TrimRight(req.BaseURL, "/")
	if baseURL == "" {
		baseURL = m.defaultBaseURL
	}

	locked, err := m.store.TryLockVideo(ctx, req.VideoID, m.lockTTL)
	if err != nil {
		return model.JobHandle{}, fmt.Errorf("lock video %s: %w", req.VideoID, err)
	}
	if !locked {
		return model.JobHandle{}, fmt.Errorf("%w: %s is being created", ErrVideoBusy, req.VideoID)
	}
	defer func() {
		if err := m.store.UnlockVideo(context.Background(), req.VideoID); err != nil {
			telemetry.Logger.Warn("Failed to release video lock", zap.String("video_id", req.VideoID), zap.Error(err))
		}
	}()

	active, err := m.activeJob(ctx, req.VideoID, "")
	if err != nil {
		return model.JobHandle{}, err
	}
	if active != nil {
		return model.JobHandle{}, fmt.Errorf("%w: job %s is %s", ErrVideoBusy, active.ID, active.Status)
	}

	now := m.now()
	job := model.NewJob(uuid.NewString(), req.VideoID, req.VideoPath, req.Title, baseURL, now)
	if err := m.store.InsertJob(ctx, job); err != nil {
		return model.JobHandle{}, fmt.Errorf("insert job: %w", err)
	}
	m.metrics.IncrementJobCounter(string(model.StatusQueued))

	m.mirrorMedia(ctx, job, func(item *model.MediaItem) {
		item.Status = model.MediaProcessing
		item.TranscodingCompleted = false
		item.JobID = job.ID
		item.Error = ""
		if item.SourcePath == "" {
			item.SourcePath = job.SourcePath
		}
		if item.Title == "" {
			item.Title = job.Title
		}
	})

	telemetry.Logger.Info("Transcoding job created",
		zap.String("job_id", job.ID),
		zap.String("video_id", job.VideoID),
	)

	handle := model.JobHandle{JobID: job.ID, VideoID: job.VideoID, Status: job.Status}

	m.wg.Add(1)
	go m.run(job.Clone())

	return handle, nil
}

// activeJob returns a queued or processing job for videoID other than skipID.
// A queued job untouched for stuckAfter belongs to a process that died while
// waiting for a slot and no longer blocks the video.
func (m *Manager) activeJob(ctx context.Context, videoID, skipID string) (*model.TranscodingJob, error) {
	jobs, err := m.store.ListJobs(ctx, repository.JobFilter{VideoID: videoID})
	if err != nil {
		return nil, fmt.Errorf("list jobs for %s: %w", videoID, err)
	}
	for _, j := range jobs {
		if j.ID == skipID || !j.Status.IsActive() || m.staleQueued(j) {
			continue
		}
		return j, nil
	}
	return nil, nil
}

func (m *Manager) staleQueued(job *model.TranscodingJob) bool {
	return job.Status == model.StatusQueued && job.UpdatedAt.Before(m.now().Add(-m.stuckAfter))
}

func (m *Manager) GetJobStatus(ctx context.Context, jobID string) (*model.TranscodingJob, error) {
	return m.store.GetJob(ctx, jobID)
}

func (m *Manager) ListJobs(ctx context.Context, filter repository.JobFilter) ([]*model.TranscodingJob, error) {
	return m.store.ListJobs(ctx, filter)
}

// Wait blocks until every job started by this manager has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Drain waits up to timeout for running jobs and reports whether all finished.
// Jobs still running afterwards are left for the recovery sweep.
func (m *Manager) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// run has no cancellation path: once a job holds a slot it runs to an outcome.
func (m *Manager) run(job *model.TranscodingJob) {
	defer m.wg.Done()
	ctx := context.Background()

	if err := m.slots.Acquire(ctx, 1); err != nil {
		m.fail(ctx, job, &JobFailure{JobID: job.ID, Stage: "schedule", Err: err})
		return
	}
	defer m.slots.Release(1)

	// the sweeper may have superseded the job while it waited for a slot
	current, err := m.store.GetJob(ctx, job.ID)
	if err != nil {
		m.fail(ctx, job, &JobFailure{JobID: job.ID, Stage: "schedule", Err: err})
		return
	}
	if current.Status != model.StatusQueued {
		telemetry.Logger.Info("Skipping job no longer queued",
			zap.String("job_id", job.ID),
			zap.String("status", string(current.Status)),
		)
		return
	}

	m.metrics.AddActiveJobs(1)
	defer m.metrics.AddActiveJobs(-1)

	if err := m.process(ctx, job); err != nil {
		var failure *JobFailure
		if !errors.As(err, &failure) {
			failure = &JobFailure{JobID: job.ID, Stage: "pipeline", Err: err}
		}
		m.fail(ctx, job, failure)
	}
}

func (m *Manager) process(ctx context.Context, job *model.TranscodingJob) error {
	info, err := m.inspector.Inspect(ctx, job.SourcePath)
	if err != nil {
		return &JobFailure{JobID: job.ID, Stage: "inspect", Err: err}
	}
	if err := job.MarkProcessing(*info, m.now()); err != nil {
		return &JobFailure{JobID: job.ID, Stage: "inspect", Err: err}
	}
	if err := m.store.UpdateJob(ctx, job); err != nil {
		return &JobFailure{JobID: job.ID, Stage: "persist", Err: err}
	}

	plan := rendition.Plan(*info, m.tiers)
	if len(plan) == 0 {
		return &JobFailure{JobID: job.ID, Stage: "plan", Err: fmt.Errorf("no tiers fit %dx%d", info.Width, info.Height)}
	}

	outDir := filepath.Join(m.outputRoot, job.VideoID)
	manifest := rendition.NewManifestBuilder(job.VideoID, job.BaseURL)

	err = m.renderer.Render(ctx, job.SourcePath, outDir, plan, manifest, func(r rendition.TierResult) error {
		return m.recordTier(ctx, job, r)
	})
	if err != nil {
		return &JobFailure{JobID: job.ID, Stage: "render", Err: err}
	}
	if len(job.Variants) == 0 {
		return &JobFailure{JobID: job.ID, Stage: "render", Err: errNoRenditions}
	}

	masterURL, err := manifest.Flush(outDir, job.VideoInfo)
	if err != nil {
		return &JobFailure{JobID: job.ID, Stage: "manifest", Err: err}
	}
	if err := job.MarkCompleted(masterURL, m.now()); err != nil {
		return &JobFailure{JobID: job.ID, Stage: "complete", Err: err}
	}
	if err := m.store.UpdateJob(ctx, job); err != nil {
		return &JobFailure{JobID: job.ID, Stage: "persist", Err: err}
	}
	m.metrics.IncrementJobCounter(string(model.StatusCompleted))

	m.mirrorMedia(ctx, job, func(item *model.MediaItem) {
		item.Status = model.MediaReady
		item.TranscodingCompleted = true
		item.Variants = append([]model.Variant{}, job.Variants...)
		item.MasterPlaylistURL = job.MasterPlaylistURL
		item.Error = ""
	})

	telemetry.Logger.Info("Transcoding job completed",
		zap.String("job_id", job.ID),
		zap.String("video_id", job.VideoID),
		zap.Int("variants", len(job.Variants)),
	)
	return nil
}

// recordTier persists the outcome of one tier attempt before the next starts.
func (m *Manager) recordTier(ctx context.Context, job *model.TranscodingJob, r rendition.TierResult) error {
	tier := r.Target.Tier.Name
	m.metrics.ObserveTierDuration(tier, r.Elapsed)

	now := m.now()
	if r.Err != nil {
		m.metrics.IncrementTierCounter(tier, "failed")
	} else {
		m.metrics.IncrementTierCounter(tier, "succeeded")
		if err := job.AppendVariant(*r.Variant, now); err != nil {
			return err
		}
	}
	job.SetProgress(r.Progress(), now)

	if err := m.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("persist progress: %w", err)
	}
	telemetry.Logger.Debug("Tier finished",
		zap.String("job_id", job.ID),
		zap.String("tier", tier),
		zap.Int("progress", job.Progress),
		zap.Bool("skipped", r.Err != nil),
	)
	return nil
}

func (m *Manager) fail(ctx context.Context, job *model.TranscodingJob, failure *JobFailure) {
	telemetry.Logger.Error("Transcoding job failed",
		zap.String("job_id", job.ID),
		zap.String("video_id", job.VideoID),
		zap.String("stage", failure.Stage),
		zap.Error(failure.Err),
	)

	if err := job.MarkFailed(failure.Message(), m.now()); err != nil {
		telemetry.Logger.Error("System Error: Job cannot be marked failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	if err := m.store.UpdateJob(ctx, job); err != nil {
		telemetry.Logger.Error("System Error: Failed to persist job failure", zap.String("job_id", job.ID), zap.Error(err))
	}
	m.metrics.IncrementJobCounter(string(model.StatusError))

	m.mirrorMedia(ctx, job, func(item *model.MediaItem) {
		item.Status = model.MediaError
		item.Error = job.Error
	})
}

// mirrorMedia applies update to the media item owned by job, creating the item
// when the upload subsystem never wrote one. Failures are logged; the job record
// stays authoritative.
func (m *Manager) mirrorMedia(ctx context.Context, job *model.TranscodingJob, update func(*model.MediaItem)) {
	item, err := m.store.GetMedia(ctx, job.VideoID)
	if errors.Is(err, repository.ErrNotFound) {
		item = &model.MediaItem{ID: job.VideoID, Title: job.Title, SourcePath: job.SourcePath}
	} else if err != nil {
		telemetry.Logger.Error("System Error: Failed to load media item", zap.String("video_id", job.VideoID), zap.Error(err))
		return
	}

	update(item)
	item.UpdatedAt = m.now()
	if err := m.store.UpsertMedia(ctx, item); err != nil {
		telemetry.Logger.Error("System Error: Failed to update media item",
			zap.String("video_id", job.VideoID),
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	}
}
