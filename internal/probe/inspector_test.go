package probe

import (
	"context"
	"errors"
	"testing"

	"lessonflow/internal/runner"
	"lessonflow/test/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const sampleProbe = `{
  "streams": [
    {"codec_name": "aac", "codec_type": "audio"},
    {"codec_name": "h264", "codec_type": "video", "width": 3840, "height": 2160},
    {"codec_name": "mjpeg", "codec_type": "video", "width": 320, "height": 180}
  ],
  "format": {"duration": "634.533333", "bit_rate": "17500123"}
}`

func TestInspectParsesMetadata(t *testing.T) {
	runnerMock := mocks.NewRunner(t)
	runnerMock.On("Run", mock.Anything, "/usr/bin/ffprobe", mock.MatchedBy(func(args []string) bool {
		return len(args) > 0 && args[len(args)-1] == "/uploads/lecture.mp4"
	})).Return(&runner.Output{Stdout: sampleProbe}, nil)

	info, err := NewInspector(runnerMock, "/usr/bin/ffprobe").Inspect(context.Background(), "/uploads/lecture.mp4")
	require.NoError(t, err)

	assert.Equal(t, 3840, info.Width)
	assert.Equal(t, 2160, info.Height)
	assert.Equal(t, "h264", info.VideoCodec)
	assert.Equal(t, "aac", info.AudioCodec)
	assert.InDelta(t, 634.53, info.Duration, 0.01)
	assert.Equal(t, int64(17500123), info.Bitrate)
}

func TestInspectFailures(t *testing.T) {
	tests := []struct {
		name       string
		stdout     string
		runErr     error
		wantReason string
	}{
		{
			name:       "Tool exits non-zero",
			runErr:     &runner.ProcessFailure{Command: "ffprobe", ExitCode: 1, Stderr: "moov atom not found"},
			wantReason: "ffprobe failed",
		},
		{
			name:       "Garbage output",
			stdout:     "not json",
			wantReason: "unparsable ffprobe output",
		},
		{
			name:       "Audio only",
			stdout:     `{"streams":[{"codec_type":"audio","codec_name":"mp3"}],"format":{"duration":"12.0"}}`,
			wantReason: "no video stream",
		},
		{
			name:       "Zero dimensions",
			stdout:     `{"streams":[{"codec_type":"video","codec_name":"h264"}],"format":{}}`,
			wantReason: "invalid dimensions 0x0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runnerMock := mocks.NewRunner(t)
			runnerMock.On("Run", mock.Anything, "ffprobe", mock.Anything).Return(&runner.Output{Stdout: tt.stdout}, tt.runErr)

			_, err := NewInspector(runnerMock, "ffprobe").Inspect(context.Background(), "/uploads/bad.mp4")
			require.Error(t, err)

			var failure *InspectionFailure
			require.True(t, errors.As(err, &failure))
			assert.Equal(t, tt.wantReason, failure.Reason)
			assert.Equal(t, "/uploads/bad.mp4", failure.Path)
		})
	}
}

func TestInspectKeepsProcessFailure(t *testing.T) {
	runnerMock := mocks.NewRunner(t)
	cause := &runner.ProcessFailure{Command: "ffprobe", ExitCode: 1}
	runnerMock.On("Run", mock.Anything, "ffprobe", mock.Anything).Return(nil, cause)

	_, err := NewInspector(runnerMock, "ffprobe").Inspect(context.Background(), "/x.mp4")

	var failure *runner.ProcessFailure
	assert.True(t, errors.As(err, &failure))
}

func TestParseToleratesMissingFormatFields(t *testing.T) {
	info, err := parse("/x.mp4", `{"streams":[{"codec_type":"video","codec_name":"vp9","width":640,"height":360}],"format":{"duration":"N/A"}}`)
	require.NoError(t, err)
	assert.Zero(t, info.Duration)
	assert.Zero(t, info.Bitrate)
}
