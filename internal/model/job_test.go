package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func processingJob(t *testing.T) *TranscodingJob {
	t.Helper()
	job := NewJob("job-1", "video-1", "/uploads/v1.mp4", "Intro", "http://cdn/media", t0)
	if err := job.MarkProcessing(VideoInfo{Width: 1920, Height: 1080}, t0.Add(time.Second)); err != nil {
		t.Fatalf("MarkProcessing() error = %v", err)
	}
	return job
}

func TestIsValidJobStatus(t *testing.T) {
	tests := []struct {
		name   string
		status JobStatus
		want   bool
	}{
		{"Queued", StatusQueued, true},
		{"Processing", StatusProcessing, true},
		{"Completed", StatusCompleted, true},
		{"Error", StatusError, true},
		{"Restarted", StatusRestarted, true},
		{"Empty", "", false},
		{"Invalid", "failed", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidJobStatus(tt.status); got != tt.want {
				t.Errorf("IsValidJobStatus(%q) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestNewJobStartsQueued(t *testing.T) {
	job := NewJob("job-1", "video-1", "/uploads/v1.mp4", "Intro", "http://cdn/media", t0)

	if job.Status != StatusQueued {
		t.Errorf("Status = %q, want %q", job.Status, StatusQueued)
	}
	if job.Progress != 0 {
		t.Errorf("Progress = %d, want 0", job.Progress)
	}
	if job.Variants == nil || len(job.Variants) != 0 {
		t.Errorf("Variants = %v, want empty non-nil slice", job.Variants)
	}
	if !job.CreatedAt.Equal(t0) || !job.UpdatedAt.Equal(t0) {
		t.Errorf("timestamps = %v/%v, want %v", job.CreatedAt, job.UpdatedAt, t0)
	}
}

func TestMarkProcessingSnapshotsInfo(t *testing.T) {
	info := VideoInfo{Width: 1280, Height: 720, VideoCodec: "h264"}
	job := NewJob("job-1", "video-1", "/src.mp4", "", "", t0)

	if err := job.MarkProcessing(info, t0.Add(time.Minute)); err != nil {
		t.Fatalf("MarkProcessing() error = %v", err)
	}
	info.Width = 1

	if job.VideoInfo.Width != 1280 {
		t.Errorf("VideoInfo.Width = %d, snapshot was mutated", job.VideoInfo.Width)
	}
	if job.Status != StatusProcessing {
		t.Errorf("Status = %q, want processing", job.Status)
	}
	if err := job.MarkProcessing(info, t0); err == nil {
		t.Errorf("second MarkProcessing() should fail")
	}
}

func TestSetProgressIsMonotonic(t *testing.T) {
	job := processingJob(t)

	steps := []struct {
		in   int
		want int
	}{
		{33, 33},
		{20, 33},
		{67, 67},
		{150, 100},
	}
	for _, s := range steps {
		job.SetProgress(s.in, t0.Add(time.Hour))
		if job.Progress != s.want {
			t.Errorf("SetProgress(%d) -> %d, want %d", s.in, job.Progress, s.want)
		}
	}
}

func TestTerminalTransitions(t *testing.T) {
	tests := []struct {
		name       string
		apply      func(*TranscodingJob) error
		wantStatus JobStatus
		wantErr    bool
	}{
		{
			name:       "Complete with master",
			apply:      func(j *TranscodingJob) error { return j.MarkCompleted("http://cdn/media/v1/master.m3u8", t0) },
			wantStatus: StatusCompleted,
		},
		{
			name:       "Complete without master",
			apply:      func(j *TranscodingJob) error { return j.MarkCompleted("", t0) },
			wantStatus: StatusProcessing,
			wantErr:    true,
		},
		{
			name:       "Fail with message",
			apply:      func(j *TranscodingJob) error { return j.MarkFailed("ffprobe exploded", t0) },
			wantStatus: StatusError,
		},
		{
			name:       "Restart processing job",
			apply:      func(j *TranscodingJob) error { return j.MarkRestarted(t0) },
			wantStatus: StatusRestarted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := processingJob(t)
			err := tt.apply(job)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if job.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", job.Status, tt.wantStatus)
			}
		})
	}
}

func TestCompletedJobIsFrozen(t *testing.T) {
	job := processingJob(t)
	if err := job.MarkCompleted("http://cdn/master.m3u8", t0); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}
	if job.CompletedAt == nil || job.Progress != 100 {
		t.Errorf("completed job missing completedAt/progress: %+v", job)
	}

	if err := job.AppendVariant(Variant{Quality: "low"}, t0); err == nil {
		t.Errorf("AppendVariant() on completed job should fail")
	}
	if err := job.MarkFailed("late failure", t0); err == nil {
		t.Errorf("MarkFailed() on completed job should fail")
	}
	if err := job.MarkRestarted(t0); err == nil {
		t.Errorf("MarkRestarted() on completed job should fail")
	}
	job.SetProgress(10, t0)
	if job.Progress != 100 {
		t.Errorf("Progress = %d after SetProgress on completed job", job.Progress)
	}
}

func TestRestartFromQueueAndRepeatedRestart(t *testing.T) {
	job := NewJob("job-1", "video-1", "/src.mp4", "", "", t0)
	if err := job.MarkRestarted(t0.Add(time.Minute)); err != nil {
		t.Fatalf("MarkRestarted() on queued job error = %v", err)
	}
	if job.Status != StatusRestarted {
		t.Errorf("Status = %q, want %q", job.Status, StatusRestarted)
	}
	if err := job.MarkRestarted(t0.Add(2 * time.Minute)); err == nil {
		t.Errorf("MarkRestarted() on restarted job should fail")
	}
}

func TestMarkFailedAlwaysHasMessage(t *testing.T) {
	job := NewJob("job-1", "video-1", "/src.mp4", "", "", t0)
	if err := job.MarkFailed("", t0); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	if strings.TrimSpace(job.Error) == "" {
		t.Errorf("Error message is empty")
	}
}

func TestCloneIsDeep(t *testing.T) {
	job := processingJob(t)
	_ = job.AppendVariant(Variant{Quality: "low"}, t0)

	clone := job.Clone()
	clone.Variants[0].Quality = "changed"
	clone.VideoInfo.Width = 1

	if job.Variants[0].Quality != "low" || job.VideoInfo.Width != 1920 {
		t.Errorf("Clone() shares state with original")
	}
}

func TestJobJSONFieldNames(t *testing.T) {
	job := processingJob(t)
	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	for _, key := range []string{`"jobId"`, `"videoId"`, `"status":"processing"`, `"variants":[]`, `"videoInfo"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("json %s missing %s", data, key)
		}
	}
}

func TestAwaitingTranscode(t *testing.T) {
	tests := []struct {
		name string
		item MediaItem
		want bool
	}{
		{"Fresh upload", MediaItem{Status: MediaUploaded}, true},
		{"Already transcoded", MediaItem{Status: MediaUploaded, TranscodingCompleted: true}, false},
		{"Has job", MediaItem{Status: MediaUploaded, JobID: "job-1"}, false},
		{"Processing", MediaItem{Status: MediaProcessing}, false},
		{"Ready", MediaItem{Status: MediaReady}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.AwaitingTranscode(); got != tt.want {
				t.Errorf("AwaitingTranscode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTierArgs(t *testing.T) {
	low := DefaultTiers[0]
	if low.Name != LowTier {
		t.Fatalf("first tier = %q, want low", low.Name)
	}
	if got := low.VideoBitrateArg(); got != "800k" {
		t.Errorf("VideoBitrateArg() = %q", got)
	}
	if got := low.Bandwidth(); got != 800000 {
		t.Errorf("Bandwidth() = %d", got)
	}
}
