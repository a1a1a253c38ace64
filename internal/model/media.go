package model

import "time"

type MediaStatus string

const (
	MediaUploaded   MediaStatus = "uploaded"
	MediaProcessing MediaStatus = "processing"
	MediaReady      MediaStatus = "ready"
	MediaError      MediaStatus = "error"
)

// MediaItem is the upload subsystem's record of a video. The pipeline only
// mirrors job outcomes onto it.
type MediaItem struct {
	ID                   string      `json:"id"`
	Title                string      `json:"title,omitempty"`
	SourcePath           string      `json:"sourcePath"`
	Status               MediaStatus `json:"status"`
	TranscodingCompleted bool        `json:"transcoding_completed"`
	JobID                string      `json:"jobId,omitempty"`
	Variants             []Variant   `json:"variants,omitempty"`
	MasterPlaylistURL    string      `json:"masterPlaylistUrl,omitempty"`
	Error                string      `json:"error,omitempty"`
	UpdatedAt            time.Time   `json:"updatedAt"`
}

// AwaitingTranscode reports whether the scanner should start a job for the item.
func (m *MediaItem) AwaitingTranscode() bool {
	return m.Status == MediaUploaded && !m.TranscodingCompleted && m.JobID == ""
}

func (m *MediaItem) Clone() *MediaItem {
	if m == nil {
		return nil
	}
	out := *m
	if m.Variants != nil {
		out.Variants = append([]Variant{}, m.Variants...)
	}
	return &out
}

// UploadEvent is published by the upload subsystem once a source file is on disk.
type UploadEvent struct {
	VideoPath string `json:"videoPath"`
	VideoID   string `json:"videoId"`
	Title     string `json:"title,omitempty"`
	BaseURL   string `json:"baseUrl,omitempty"`
}

// ToRequest converts the event into a createJob request.
func (e UploadEvent) ToRequest() CreateJobRequest {
	return CreateJobRequest{
		VideoPath: e.VideoPath,
		VideoID:   e.VideoID,
		Title:     e.Title,
		BaseURL:   e.BaseURL,
	}
}
