package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"lessonflow/internal/model"
	"lessonflow/internal/repository"
	"lessonflow/internal/telemetry"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS transcoding_jobs (
	id                  TEXT PRIMARY KEY,
	video_id            TEXT NOT NULL,
	status              TEXT NOT NULL,
	progress            INTEGER NOT NULL DEFAULT 0,
	video_info          JSONB,
	variants            JSONB NOT NULL DEFAULT '[]',
	master_playlist_url TEXT NOT NULL DEFAULT '',
	error               TEXT NOT NULL DEFAULT '',
	source_path         TEXT NOT NULL,
	title               TEXT NOT NULL DEFAULT '',
	base_url            TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL,
	completed_at        TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS transcoding_jobs_video_idx ON transcoding_jobs (video_id, created_at DESC);
CREATE INDEX IF NOT EXISTS transcoding_jobs_status_idx ON transcoding_jobs (status, updated_at);

CREATE TABLE IF NOT EXISTS media_items (
	id                    TEXT PRIMARY KEY,
	title                 TEXT NOT NULL DEFAULT '',
	source_path           TEXT NOT NULL DEFAULT '',
	status                TEXT NOT NULL,
	transcoding_completed BOOLEAN NOT NULL DEFAULT FALSE,
	job_id                TEXT NOT NULL DEFAULT '',
	variants              JSONB NOT NULL DEFAULT '[]',
	master_playlist_url   TEXT NOT NULL DEFAULT '',
	error                 TEXT NOT NULL DEFAULT '',
	updated_at            TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS video_locks (
	video_id   TEXT PRIMARY KEY,
	expires_at TIMESTAMPTZ NOT NULL
);`

const jobColumns = `id, video_id, status, progress, video_info, variants, master_playlist_url, error,
	source_path, title, base_url, created_at, updated_at, completed_at`

// Store persists jobs and media items in PostgreSQL through database/sql and lib/pq.
type Store struct {
	db *sql.DB
}

// Open connects, verifies the connection and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		telemetry.Logger.Error("System Error: Failed to connect to PostgreSQL", zap.Error(err))
		return nil, err
	}
	s := &Store{db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	telemetry.Logger.Info("Connected to PostgreSQL")
	return s, nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) InsertJob(ctx context.Context, job *model.TranscodingJob) error {
	info, variants, err := encodeJobJSON(job)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO transcoding_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		job.ID, job.VideoID, string(job.Status), job.Progress, info, variants, job.MasterPlaylistURL, job.Error,
		job.SourcePath, job.Title, job.BaseURL, job.CreatedAt, job.UpdatedAt, nullTime(job.CompletedAt))
	if err != nil {
		telemetry.Logger.Error("System Error: Failed to insert job", zap.String("job_id", job.ID), zap.Error(err))
	}
	return err
}

func (s *Store) UpdateJob(ctx context.Context, job *model.TranscodingJob) error {
	info, variants, err := encodeJobJSON(job)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE transcoding_jobs SET
		status = $2, progress = $3, video_info = $4, variants = $5, master_playlist_url = $6,
		error = $7, updated_at = $8, completed_at = $9
		WHERE id = $1`,
		job.ID, string(job.Status), job.Progress, info, variants, job.MasterPlaylistURL,
		job.Error, job.UpdatedAt, nullTime(job.CompletedAt))
	if err != nil {
		telemetry.Logger.Error("System Error: Failed to update job", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %s: %w", job.ID, repository.ErrNotFound)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*model.TranscodingJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM transcoding_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, repository.ErrNotFound)
	}
	return job, err
}

func (s *Store) ListJobs(ctx context.Context, filter repository.JobFilter) ([]*model.TranscodingJob, error) {
	query, args := buildListQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*model.TranscodingJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over jobs: %w", err)
	}
	return jobs, nil
}

func buildListQuery(filter repository.JobFilter) (string, []interface{}) {
	var where []string
	var args []interface{}
	if filter.VideoID != "" {
		args = append(args, filter.VideoID)
		where = append(where, fmt.Sprintf("video_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if !filter.UpdatedBefore.IsZero() {
		args = append(args, filter.UpdatedBefore)
		where = append(where, fmt.Sprintf("updated_at < $%d", len(args)))
	}

	query := `SELECT ` + jobColumns + ` FROM transcoding_jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (*model.TranscodingJob, error) {
	var (
		job       model.TranscodingJob
		status    string
		info      []byte
		variants  []byte
		completed sql.NullTime
	)
	err := row.Scan(&job.ID, &job.VideoID, &status, &job.Progress, &info, &variants, &job.MasterPlaylistURL,
		&job.Error, &job.SourcePath, &job.Title, &job.BaseURL, &job.CreatedAt, &job.UpdatedAt, &completed)
	if err != nil {
		return nil, err
	}
	job.Status = model.JobStatus(status)
	if len(info) > 0 && string(info) != "null" {
		job.VideoInfo = &model.VideoInfo{}
		if err := json.Unmarshal(info, job.VideoInfo); err != nil {
			return nil, fmt.Errorf("decode video_info for %s: %w", job.ID, err)
		}
	}
	job.Variants = []model.Variant{}
	if len(variants) > 0 {
		if err := json.Unmarshal(variants, &job.Variants); err != nil {
			return nil, fmt.Errorf("decode variants for %s: %w", job.ID, err)
		}
	}
	if completed.Valid {
		t := completed.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

// encodeJobJSON renders the jsonb columns as text; lib/pq would send []byte as bytea.
func encodeJobJSON(job *model.TranscodingJob) (sql.NullString, string, error) {
	var info sql.NullString
	if job.VideoInfo != nil {
		data, err := json.Marshal(job.VideoInfo)
		if err != nil {
			return info, "", err
		}
		info = sql.NullString{String: string(data), Valid: true}
	}
	variants := job.Variants
	if variants == nil {
		variants = []model.Variant{}
	}
	encoded, err := json.Marshal(variants)
	return info, string(encoded), err
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (s *Store) GetMedia(ctx context.Context, id string) (*model.MediaItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, title, source_path, status, transcoding_completed, job_id,
		variants, master_playlist_url, error, updated_at FROM media_items WHERE id = $1`, id)
	item, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("media %s: %w", id, repository.ErrNotFound)
	}
	return item, err
}

func (s *Store) UpsertMedia(ctx context.Context, item *model.MediaItem) error {
	variants := "[]"
	if item.Variants != nil {
		data, err := json.Marshal(item.Variants)
		if err != nil {
			return err
		}
		variants = string(data)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO media_items
		(id, title, source_path, status, transcoding_completed, job_id, variants, master_playlist_url, error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, source_path = EXCLUDED.source_path, status = EXCLUDED.status,
			transcoding_completed = EXCLUDED.transcoding_completed, job_id = EXCLUDED.job_id,
			variants = EXCLUDED.variants, master_playlist_url = EXCLUDED.master_playlist_url,
			error = EXCLUDED.error, updated_at = EXCLUDED.updated_at`,
		item.ID, item.Title, item.SourcePath, string(item.Status), item.TranscodingCompleted, item.JobID,
		variants, item.MasterPlaylistURL, item.Error, item.UpdatedAt)
	if err != nil {
		telemetry.Logger.Error("System Error: Failed to upsert media item", zap.String("video_id", item.ID), zap.Error(err))
	}
	return err
}

func (s *Store) ListPendingMedia(ctx context.Context) ([]*model.MediaItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, source_path, status, transcoding_completed, job_id,
		variants, master_playlist_url, error, updated_at FROM media_items
		WHERE status = $1 AND NOT transcoding_completed AND job_id = ''
		ORDER BY updated_at`, string(model.MediaUploaded))
	if err != nil {
		return nil, fmt.Errorf("failed to query media items: %w", err)
	}
	defer rows.Close()

	var items []*model.MediaItem
	for rows.Next() {
		item, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanMedia(row scanner) (*model.MediaItem, error) {
	var (
		item     model.MediaItem
		status   string
		variants []byte
	)
	err := row.Scan(&item.ID, &item.Title, &item.SourcePath, &status, &item.TranscodingCompleted, &item.JobID,
		&variants, &item.MasterPlaylistURL, &item.Error, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	item.Status = model.MediaStatus(status)
	if len(variants) > 0 {
		if err := json.Unmarshal(variants, &item.Variants); err != nil {
			return nil, fmt.Errorf("decode media variants for %s: %w", item.ID, err)
		}
	}
	return &item, nil
}

// TryLockVideo claims the row for videoID unless an unexpired claim exists.
func (s *Store) TryLockVideo(ctx context.Context, videoID string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `INSERT INTO video_locks (video_id, expires_at) VALUES ($1, $2)
		ON CONFLICT (video_id) DO UPDATE SET expires_at = EXCLUDED.expires_at
		WHERE video_locks.expires_at < $3`, videoID, now.Add(ttl), now)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			telemetry.Logger.Error("System Error: Failed to lock video",
				zap.String("video_id", videoID), zap.String("pq_code", string(pqErr.Code)), zap.Error(err))
		}
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) UnlockVideo(ctx context.Context, videoID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM video_locks WHERE video_id = $1`, videoID)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
