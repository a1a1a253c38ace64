package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lessonflow/internal/model"
	"lessonflow/internal/repository"
)

// Store keeps jobs and media items in process memory. It backs STORE_BACKEND=memory
// and the package tests.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]*model.TranscodingJob
	media map[string]*model.MediaItem
	locks map[string]time.Time
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{
		jobs:  make(map[string]*model.TranscodingJob),
		media: make(map[string]*model.MediaItem),
		locks: make(map[string]time.Time),
		now:   time.Now,
	}
}

func (s *Store) InsertJob(_ context.Context, job *model.TranscodingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *Store) UpdateJob(_ context.Context, job *model.TranscodingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; !exists {
		return fmt.Errorf("job %s: %w", job.ID, repository.ErrNotFound)
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *Store) GetJob(_ context.Context, id string) (*model.TranscodingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, repository.ErrNotFound)
	}
	return job.Clone(), nil
}

func (s *Store) ListJobs(_ context.Context, filter repository.JobFilter) ([]*model.TranscodingJob, error) {
	s.mu.RLock()
	out := make([]*model.TranscodingJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Matches(job) {
			out = append(out, job.Clone())
		}
	}
	s.mu.RUnlock()
	return repository.SortNewestFirst(out, filter.Limit), nil
}

func (s *Store) GetMedia(_ context.Context, id string) (*model.MediaItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.media[id]
	if !ok {
		return nil, fmt.Errorf("media %s: %w", id, repository.ErrNotFound)
	}
	return item.Clone(), nil
}

func (s *Store) UpsertMedia(_ context.Context, item *model.MediaItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media[item.ID] = item.Clone()
	return nil
}

func (s *Store) ListPendingMedia(_ context.Context) ([]*model.MediaItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.MediaItem
	for _, item := range s.media {
		if item.AwaitingTranscode() {
			out = append(out, item.Clone())
		}
	}
	return out, nil
}

func (s *Store) TryLockVideo(_ context.Context, videoID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if expires, held := s.locks[videoID]; held && now.Before(expires) {
		return false, nil
	}
	s.locks[videoID] = now.Add(ttl)
	return true, nil
}

func (s *Store) UnlockVideo(_ context.Context, videoID string) error {
	s.mu.Lock()
	delete(s.locks, videoID)
	s.mu.Unlock()
	return nil
}

func (s *Store) Close() error { return nil }
