package model

import (
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of a TranscodingJob.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusError      JobStatus = "error"
	StatusRestarted  JobStatus = "restarted"
)

// IsValidJobStatus reports whether s is one of the known job states.
func IsValidJobStatus(s JobStatus) bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusError, StatusRestarted:
		return true
	}
	return false
}

// IsActive reports whether a job in this state may still be producing output.
func (s JobStatus) IsActive() bool {
	return s == StatusQueued || s == StatusProcessing
}

// VideoInfo is the source metadata snapshot taken by the media inspector.
type VideoInfo struct {
	Duration   float64 `json:"duration"`
	Bitrate    int64   `json:"bitrate"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	VideoCodec string  `json:"videoCodec"`
	AudioCodec string  `json:"audioCodec,omitempty"`
}

// Variant describes one produced rendition.
type Variant struct {
	Quality    string `json:"quality"`
	Resolution string `json:"resolution"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Bitrate    int    `json:"bitrate"`
	MP4URL     string `json:"mp4Url"`
	HLSURL     string `json:"hlsUrl"`
	Size       int64  `json:"size"`
}

// TranscodingJob is the persisted record of one transcoding attempt.
type TranscodingJob struct {
	ID                string     `json:"jobId"`
	VideoID           string     `json:"videoId"`
	Status            JobStatus  `json:"status"`
	Progress          int        `json:"progress"`
	VideoInfo         *VideoInfo `json:"videoInfo,omitempty"`
	Variants          []Variant  `json:"variants"`
	MasterPlaylistURL string     `json:"masterPlaylistUrl,omitempty"`
	Error             string     `json:"error,omitempty"`

	SourcePath string `json:"sourcePath"`
	Title      string `json:"title,omitempty"`
	BaseURL    string `json:"baseUrl"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// NewJob returns a job in the queued state.
func NewJob(id, videoID, sourcePath, title, baseURL string, now time.Time) *TranscodingJob {
	return &TranscodingJob{
		ID:         id,
		VideoID:    videoID,
		Status:     StatusQueued,
		Variants:   []Variant{},
		SourcePath: sourcePath,
		Title:      title,
		BaseURL:    baseURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsTerminal reports whether the job accepts no further pipeline mutation.
func (j *TranscodingJob) IsTerminal() bool {
	return !j.Status.IsActive()
}

// MarkProcessing attaches the source snapshot and moves the job out of the queue.
func (j *TranscodingJob) MarkProcessing(info VideoInfo, now time.Time) error {
	if j.Status != StatusQueued {
		return fmt.Errorf("job %s: cannot start processing from %s", j.ID, j.Status)
	}
	snapshot := info
	j.VideoInfo = &snapshot
	j.Status = StatusProcessing
	j.Progress = 0
	j.UpdatedAt = now
	return nil
}

// SetProgress records progress; values lower than the current one are ignored
// so persisted progress never goes backwards.
func (j *TranscodingJob) SetProgress(percent int, now time.Time) {
	if j.Status != StatusProcessing {
		return
	}
	if percent > 100 {
		percent = 100
	}
	if percent < j.Progress {
		return
	}
	j.Progress = percent
	j.UpdatedAt = now
}

// AppendVariant adds a finished rendition.
func (j *TranscodingJob) AppendVariant(v Variant, now time.Time) error {
	if j.Status != StatusProcessing {
		return fmt.Errorf("job %s: cannot append variant while %s", j.ID, j.Status)
	}
	j.Variants = append(j.Variants, v)
	j.UpdatedAt = now
	return nil
}

// MarkCompleted sets the terminal success fields together.
func (j *TranscodingJob) MarkCompleted(masterURL string, now time.Time) error {
	if j.Status != StatusProcessing {
		return fmt.Errorf("job %s: cannot complete from %s", j.ID, j.Status)
	}
	if masterURL == "" {
		return fmt.Errorf("job %s: master playlist url is required", j.ID)
	}
	j.Status = StatusCompleted
	j.MasterPlaylistURL = masterURL
	j.Progress = 100
	j.Error = ""
	j.UpdatedAt = now
	j.CompletedAt = &now
	return nil
}

// MarkFailed moves an active job to error with a non-empty message.
func (j *TranscodingJob) MarkFailed(message string, now time.Time) error {
	if j.IsTerminal() {
		return fmt.Errorf("job %s: cannot fail from %s", j.ID, j.Status)
	}
	if message == "" {
		message = "transcoding failed"
	}
	j.Status = StatusError
	j.Error = message
	j.UpdatedAt = now
	return nil
}

// MarkRestarted labels the job as superseded by a newer attempt.
// Completed and already restarted jobs cannot be superseded.
func (j *TranscodingJob) MarkRestarted(now time.Time) error {
	if j.Status == StatusCompleted || j.Status == StatusRestarted {
		return fmt.Errorf("job %s: cannot restart from %s", j.ID, j.Status)
	}
	j.Status = StatusRestarted
	j.UpdatedAt = now
	return nil
}

// Clone returns a deep copy safe to hand to another goroutine or store.
func (j *TranscodingJob) Clone() *TranscodingJob {
	if j == nil {
		return nil
	}
	out := *j
	if j.VideoInfo != nil {
		info := *j.VideoInfo
		out.VideoInfo = &info
	}
	out.Variants = append([]Variant{}, j.Variants...)
	if j.CompletedAt != nil {
		completed := *j.CompletedAt
		out.CompletedAt = &completed
	}
	return &out
}

// JobHandle is what createJob hands back before processing starts.
type JobHandle struct {
	JobID   string    `json:"jobId"`
	VideoID string    `json:"videoId"`
	Status  JobStatus `json:"status"`
}

// CreateJobRequest carries the inputs of createJob.
type CreateJobRequest struct {
	VideoPath string `json:"videoPath"`
	VideoID   string `json:"videoId"`
	Title     string `json:"title"`
	BaseURL   string `json:"baseUrl"`
}
