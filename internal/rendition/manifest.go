package rendition

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lessonflow/internal/model"
)

const (
	MasterPlaylistName = "master.m3u8"
	ManifestName       = "manifest.json"
)

// ManifestBuilder accumulates the master playlist and variant list for one job.
// It is not safe for concurrent use.
type ManifestBuilder struct {
	videoID  string
	baseURL  string
	master   strings.Builder
	variants []model.Variant
}

func NewManifestBuilder(videoID, baseURL string) *ManifestBuilder {
	b := &ManifestBuilder{videoID: videoID, baseURL: strings.TrimRight(baseURL, "/")}
	b.master.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n")
	return b
}

func (b *ManifestBuilder) VideoID() string { return b.videoID }

// URL returns the public address of a file in the video's output directory.
func (b *ManifestBuilder) URL(name string) string {
	return b.baseURL + "/" + b.videoID + "/" + name
}

// Add records a finished rendition and returns its variant descriptor.
func (b *ManifestBuilder) Add(r Rendition) model.Variant {
	mp4Name := filepath.Base(r.MP4Path)
	playlistName := filepath.Base(r.PlaylistPath)

	v := model.Variant{
		Quality:    r.Target.Tier.Name,
		Resolution: r.Target.Resolution(),
		Width:      r.Target.Width,
		Height:     r.Target.Height,
		Bitrate:    r.Target.Tier.VideoBitrate,
		MP4URL:     b.URL(mp4Name),
		HLSURL:     b.URL(playlistName),
		Size:       r.Size,
	}
	b.variants = append(b.variants, v)

	fmt.Fprintf(&b.master, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%s\n%s\n",
		r.Target.Tier.Bandwidth(), r.Target.Resolution(), playlistName)
	return v
}

// Variants returns the recorded variants in the order they were added.
func (b *ManifestBuilder) Variants() []model.Variant {
	return append([]model.Variant{}, b.variants...)
}

// MasterPlaylist returns the playlist text accumulated so far.
func (b *ManifestBuilder) MasterPlaylist() string {
	return b.master.String()
}

type manifestDocument struct {
	VideoID           string           `json:"videoId"`
	Source            *model.VideoInfo `json:"source,omitempty"`
	MasterPlaylistURL string           `json:"masterPlaylistUrl"`
	Variants          []model.Variant  `json:"variants"`
}

// Flush writes master.m3u8 and manifest.json into dir and returns the master URL.
func (b *ManifestBuilder) Flush(dir string, source *model.VideoInfo) (string, error) {
	masterURL := b.URL(MasterPlaylistName)

	if err := os.WriteFile(filepath.Join(dir, MasterPlaylistName), []byte(b.master.String()), 0644); err != nil {
		return "", fmt.Errorf("write master playlist: %w", err)
	}

	doc := manifestDocument{
		VideoID:           b.videoID,
		Source:            source,
		MasterPlaylistURL: masterURL,
		Variants:          b.Variants(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestName), data, 0644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return masterURL, nil
}
