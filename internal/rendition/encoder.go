package rendition

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"lessonflow/internal/model"
	"lessonflow/internal/runner"
	"lessonflow/internal/telemetry"

	"go.uber.org/zap"
)

// TierFailure means one quality tier could not be produced. It is absorbed by Render.
type TierFailure struct {
	Tier  string
	Stage string
	Err   error
}

func (e *TierFailure) Error() string {
	return fmt.Sprintf("tier %s: %s: %v", e.Tier, e.Stage, e.Err)
}

func (e *TierFailure) Unwrap() error { return e.Err }

// Rendition is the on-disk output of one tier.
type Rendition struct {
	Target       Target
	MP4Path      string
	PlaylistPath string
	Size         int64
}

// TierResult is reported after every tier attempt, successful or not.
type TierResult struct {
	Target  Target
	Variant *model.Variant
	Err     error
	Elapsed time.Duration
	Done    int
	Total   int
}

// Progress returns round(done/total*100).
func (r TierResult) Progress() int {
	if r.Total == 0 {
		return 0
	}
	return (r.Done*200 + r.Total) / (r.Total * 2)
}

// Encoder produces MP4 and HLS renditions with ffmpeg.
type Encoder struct {
	runner         runner.Runner
	ffmpeg         string
	segmentSeconds int
}

func NewEncoder(r runner.Runner, ffmpegPath string, segmentSeconds int) *Encoder {
	if segmentSeconds <= 0 {
		segmentSeconds = 10
	}
	return &Encoder{runner: r, ffmpeg: ffmpegPath, segmentSeconds: segmentSeconds}
}

// EncodeTier writes <tier>.mp4 and <tier>.m3u8 (+ segments) into outDir, replacing earlier output.
func (e *Encoder) EncodeTier(ctx context.Context, src, outDir string, t Target) (*Rendition, error) {
	name := t.Tier.Name
	mp4Path := filepath.Join(outDir, name+".mp4")
	playlistPath := filepath.Join(outDir, name+".m3u8")

	if _, err := e.runner.Run(ctx, e.ffmpeg, e.mp4Args(src, mp4Path, t)...); err != nil {
		return nil, &TierFailure{Tier: name, Stage: "encode mp4", Err: err}
	}
	if _, err := e.runner.Run(ctx, e.ffmpeg, e.hlsArgs(mp4Path, outDir, playlistPath, name)...); err != nil {
		return nil, &TierFailure{Tier: name, Stage: "segment hls", Err: err}
	}

	stat, err := os.Stat(mp4Path)
	if err != nil {
		return nil, &TierFailure{Tier: name, Stage: "stat mp4", Err: err}
	}
	return &Rendition{Target: t, MP4Path: mp4Path, PlaylistPath: playlistPath, Size: stat.Size()}, nil
}

func (e *Encoder) mp4Args(src, dst string, t Target) []string {
	return []string{
		"-y", "-hide_banner",
		"-i", src,
		"-vf", fmt.Sprintf("scale=%d:%d", t.Width, t.Height),
		"-c:v", "libx264", "-preset", "veryfast", "-profile:v", "main",
		"-b:v", t.Tier.VideoBitrateArg(),
		"-maxrate", t.Tier.VideoBitrateArg(),
		"-bufsize", fmt.Sprintf("%dk", t.Tier.VideoBitrate*2),
		"-c:a", "aac", "-b:a", t.Tier.AudioBitrateArg(),
		"-movflags", "+faststart",
		dst,
	}
}

func (e *Encoder) hlsArgs(mp4Path, outDir, playlistPath, tier string) []string {
	return []string{
		"-y", "-hide_banner",
		"-i", mp4Path,
		"-c", "copy",
		"-start_number", "0",
		"-hls_time", strconv.Itoa(e.segmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(outDir, tier+"_%03d.ts"),
		"-f", "hls",
		playlistPath,
	}
}

// Render encodes every planned tier in order, one at a time. A failing tier is
// logged and skipped; the remaining tiers still run. onTier is called after each
// attempt and an error from it stops rendering.
func (e *Encoder) Render(ctx context.Context, src, outDir string, plan []Target, manifest *ManifestBuilder, onTier func(TierResult) error) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for i, target := range plan {
		start := time.Now()
		result := TierResult{Target: target, Done: i + 1, Total: len(plan)}

		r, err := e.EncodeTier(ctx, src, outDir, target)
		result.Elapsed = time.Since(start)
		if err != nil {
			telemetry.Logger.Warn("Skipping tier after encoder failure",
				zap.String("video_id", manifest.VideoID()),
				zap.String("tier", target.Tier.Name),
				zap.Error(err),
			)
			result.Err = err
		} else {
			v := manifest.Add(*r)
			result.Variant = &v
		}

		if onTier != nil {
			if err := onTier(result); err != nil {
				return err
			}
		}
	}
	return nil
}
