package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"lessonflow/internal/model"
)

var ErrNotFound = errors.New("not found")

// JobFilter narrows ListJobs. Zero values match everything.
type JobFilter struct {
	VideoID       string
	Status        model.JobStatus
	UpdatedBefore time.Time
	Limit         int
}

// Matches reports whether job passes the filter, ignoring Limit.
func (f JobFilter) Matches(job *model.TranscodingJob) bool {
	if f.VideoID != "" && job.VideoID != f.VideoID {
		return false
	}
	if f.Status != "" && job.Status != f.Status {
		return false
	}
	if !f.UpdatedBefore.IsZero() && !job.UpdatedAt.Before(f.UpdatedBefore) {
		return false
	}
	return true
}

type JobStore interface {
	InsertJob(ctx context.Context, job *model.TranscodingJob) error
	UpdateJob(ctx context.Context, job *model.TranscodingJob) error
	GetJob(ctx context.Context, id string) (*model.TranscodingJob, error)
	// ListJobs returns matching jobs, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*model.TranscodingJob, error)
}

type MediaStore interface {
	GetMedia(ctx context.Context, id string) (*model.MediaItem, error)
	UpsertMedia(ctx context.Context, item *model.MediaItem) error
	// ListPendingMedia returns uploaded items with no job and no completed transcode.
	ListPendingMedia(ctx context.Context) ([]*model.MediaItem, error)
}

// Locker provides short-lived per-video mutual exclusion across processes.
type Locker interface {
	TryLockVideo(ctx context.Context, videoID string, ttl time.Duration) (bool, error)
	UnlockVideo(ctx context.Context, videoID string) error
}

// Store is everything the lifecycle manager persists through.
// Job and media writes are independent; there is no transaction spanning both.
type Store interface {
	JobStore
	MediaStore
	Locker
	Close() error
}

// SortNewestFirst orders jobs by creation time, newest first, and applies limit.
func SortNewestFirst(jobs []*model.TranscodingJob, limit int) []*model.TranscodingJob {
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs
}
