package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"lessonflow/internal/model"
	"lessonflow/internal/runner"
)

// InspectionFailure means the source could not be profiled.
type InspectionFailure struct {
	Path   string
	Reason string
	Err    error
}

func (e *InspectionFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("inspect %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("inspect %s: %s", e.Path, e.Reason)
}

func (e *InspectionFailure) Unwrap() error { return e.Err }

// Inspector extracts source metadata with ffprobe. Every call re-probes the file.
type Inspector struct {
	runner runner.Runner
	tool   string
}

func NewInspector(r runner.Runner, ffprobePath string) *Inspector {
	return &Inspector{runner: r, tool: ffprobePath}
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

func (i *Inspector) Inspect(ctx context.Context, path string) (*model.VideoInfo, error) {
	out, err := i.runner.Run(ctx, i.tool,
		"-v", "error",
		"-show_entries", "format=duration,bit_rate:stream=codec_type,codec_name,width,height",
		"-of", "json",
		path,
	)
	if err != nil {
		return nil, &InspectionFailure{Path: path, Reason: "ffprobe failed", Err: err}
	}
	return parse(path, out.Stdout)
}

func parse(path, raw string) (*model.VideoInfo, error) {
	var probed probeOutput
	if err := json.Unmarshal([]byte(raw), &probed); err != nil {
		return nil, &InspectionFailure{Path: path, Reason: "unparsable ffprobe output", Err: err}
	}

	info := &model.VideoInfo{}
	foundVideo := false
	for _, s := range probed.Streams {
		switch s.CodecType {
		case "video":
			if foundVideo {
				continue
			}
			foundVideo = true
			info.VideoCodec = s.CodecName
			info.Width = s.Width
			info.Height = s.Height
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
			}
		}
	}
	if !foundVideo {
		return nil, &InspectionFailure{Path: path, Reason: "no video stream"}
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, &InspectionFailure{Path: path, Reason: fmt.Sprintf("invalid dimensions %dx%d", info.Width, info.Height)}
	}

	// ffprobe reports N/A for some containers; those stay zero
	if d, err := strconv.ParseFloat(strings.TrimSpace(probed.Format.Duration), 64); err == nil {
		info.Duration = d
	}
	if b, err := strconv.ParseInt(strings.TrimSpace(probed.Format.BitRate), 10, 64); err == nil {
		info.Bitrate = b
	}
	return info, nil
}
