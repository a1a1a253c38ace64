package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lessonflow/internal/model"
	"lessonflow/internal/repository"
	"lessonflow/internal/telemetry"

	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	jobIndexKey    = "jobs:index"
	mediaIndexKey  = "media:index"
	uploadQueueKey = "uploads:events"
)

func jobKey(id string) string            { return "job:" + id }
func videoJobsKey(videoID string) string { return "jobs:video:" + videoID }
func mediaKey(id string) string          { return "media:" + id }
func lockKey(videoID string) string      { return "lock:video:" + videoID }

// UploadQueue carries upload events from the upload subsystem to the worker.
type UploadQueue interface {
	EnqueueUpload(ctx context.Context, event string) error
	DequeueUpload(ctx context.Context) (string, error)
}

// DefaultRedisClient stores jobs and media items as JSON documents and doubles as
// the upload event queue.
type DefaultRedisClient struct {
	client      *redis.Client
	uploadQueue string
	popTimeout  time.Duration
}

func NewDefaultRedisClient(addr string) (*DefaultRedisClient, error) {
	options := &redis.Options{
		Addr: addr,
	}

	client := redis.NewClient(options)
	_, err := client.Ping(context.Background()).Result()
	if err != nil {
		telemetry.Logger.Error("System Error: Failed to connect to Redis", zap.String("addr", addr), zap.Error(err))
		return nil, err
	}
	telemetry.Logger.Info("Connected to Redis", zap.String("addr", addr))

	return &DefaultRedisClient{client: client, uploadQueue: uploadQueueKey, popTimeout: 30 * time.Second}, nil
}

func (r *DefaultRedisClient) InsertJob(ctx context.Context, job *model.TranscodingJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	created, err := r.client.SetNX(ctx, jobKey(job.ID), data, 0).Result()
	if err != nil {
		telemetry.Logger.Error("System Error: Failed to insert job in Redis", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	if !created {
		return fmt.Errorf("job %s already exists", job.ID)
	}

	score := float64(job.CreatedAt.UnixNano())
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, jobIndexKey, &redis.Z{Score: score, Member: job.ID})
		pipe.ZAdd(ctx, videoJobsKey(job.VideoID), &redis.Z{Score: score, Member: job.ID})
		return nil
	})
	if err != nil {
		telemetry.Logger.Error("System Error: Failed to index job in Redis", zap.String("job_id", job.ID), zap.Error(err))
	}
	return err
}

func (r *DefaultRedisClient) UpdateJob(ctx context.Context, job *model.TranscodingJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	updated, err := r.client.SetXX(ctx, jobKey(job.ID), data, 0).Result()
	if err != nil {
		telemetry.Logger.Error("System Error: Failed to update job in Redis", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	if !updated {
		return fmt.Errorf("job %s: %w", job.ID, repository.ErrNotFound)
	}
	return nil
}

func (r *DefaultRedisClient) GetJob(ctx context.Context, id string) (*model.TranscodingJob, error) {
	data, err := r.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("job %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var job model.TranscodingJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// ListJobs walks the creation-time index newest first and filters in memory.
func (r *DefaultRedisClient) ListJobs(ctx context.Context, filter repository.JobFilter) ([]*model.TranscodingJob, error) {
	index := jobIndexKey
	if filter.VideoID != "" {
		index = videoJobsKey(filter.VideoID)
	}
	ids, err := r.client.ZRevRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.TranscodingJob{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = jobKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	jobs := make([]*model.TranscodingJob, 0, len(values))
	for i, raw := range values {
		job, err := decodeJob(raw)
		if err != nil {
			telemetry.Logger.Warn("Skipping unreadable job document", zap.String("job_id", ids[i]), zap.Error(err))
			continue
		}
		if job == nil || !filter.Matches(job) {
			continue
		}
		jobs = append(jobs, job)
		if filter.Limit > 0 && len(jobs) == filter.Limit {
			break
		}
	}
	return jobs, nil
}

func decodeJob(raw interface{}) (*model.TranscodingJob, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, nil
	}
	var job model.TranscodingJob
	if err := json.Unmarshal([]byte(s), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *DefaultRedisClient) GetMedia(ctx context.Context, id string) (*model.MediaItem, error) {
	data, err := r.client.Get(ctx, mediaKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("media %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var item model.MediaItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("decode media %s: %w", id, err)
	}
	return &item, nil
}

func (r *DefaultRedisClient) UpsertMedia(ctx context.Context, item *model.MediaItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, mediaKey(item.ID), data, 0)
		pipe.SAdd(ctx, mediaIndexKey, item.ID)
		return nil
	})
	if err != nil {
		telemetry.Logger.Error("System Error: Failed to upsert media in Redis", zap.String("video_id", item.ID), zap.Error(err))
	}
	return err
}

func (r *DefaultRedisClient) ListPendingMedia(ctx context.Context) ([]*model.MediaItem, error) {
	ids, err := r.client.SMembers(ctx, mediaIndexKey).Result()
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = mediaKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var items []*model.MediaItem
	for i, raw := range values {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var item model.MediaItem
		if err := json.Unmarshal([]byte(s), &item); err != nil {
			telemetry.Logger.Warn("Skipping unreadable media document", zap.String("video_id", ids[i]), zap.Error(err))
			continue
		}
		if item.AwaitingTranscode() {
			items = append(items, &item)
		}
	}
	return items, nil
}

func (r *DefaultRedisClient) TryLockVideo(ctx context.Context, videoID string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, lockKey(videoID), time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
}

func (r *DefaultRedisClient) UnlockVideo(ctx context.Context, videoID string) error {
	return r.client.Del(ctx, lockKey(videoID)).Err()
}

// EnqueueUpload pushes an upload event onto the queue, using LPUSH.
func (r *DefaultRedisClient) EnqueueUpload(ctx context.Context, event string) error {
	err := r.client.LPush(ctx, r.uploadQueue, event).Err()
	if err != nil {
		telemetry.Logger.Error("System Error: Failed to enqueue upload event in Redis", zap.String("queue", r.uploadQueue), zap.Error(err))
		return err
	}
	telemetry.Logger.Info("Upload event enqueued in Redis", zap.String("queue", r.uploadQueue))
	return nil
}

// DequeueUpload pops an upload event, using BRPOP. It returns "" when the wait times out.
func (r *DefaultRedisClient) DequeueUpload(ctx context.Context) (string, error) {
	res, err := r.client.BRPop(ctx, r.popTimeout, r.uploadQueue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		telemetry.Logger.Error("System Error: Failed to dequeue upload event from Redis", zap.String("queue", r.uploadQueue), zap.Error(err))
		return "", err
	}
	// BRPOP replies with [key, value]
	telemetry.Logger.Debug("Upload event dequeued from Redis", zap.String("queue", res[0]))
	return res[1], nil
}

// PublishUpload encodes event and enqueues it for the worker.
func (r *DefaultRedisClient) PublishUpload(ctx context.Context, event model.UploadEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.EnqueueUpload(ctx, string(data))
}

// Next satisfies the worker's event source contract.
func (r *DefaultRedisClient) Next(ctx context.Context) (string, error) {
	return r.DequeueUpload(ctx)
}

// Close closes the Redis client connection
func (r *DefaultRedisClient) Close() error {
	err := r.client.Close()
	if err != nil {
		telemetry.Logger.Error("System Error: Failed to close Redis client", zap.Error(err))
		return err
	}
	telemetry.Logger.Info("Redis client closed")
	return nil
}
