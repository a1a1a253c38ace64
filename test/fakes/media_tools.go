package fakes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"lessonflow/internal/runner"
)

// MediaTools stands in for ffmpeg and ffprobe. Encoder calls create their output
// file (the last argument) so size lookups work; tiers listed in FailTiers exit 1.
type MediaTools struct {
	mu        sync.Mutex
	Calls     [][]string
	FailTiers map[string]bool
	ProbeJSON string
	ProbeErr  error
}

func NewMediaTools(width, height int) *MediaTools {
	return &MediaTools{
		FailTiers: map[string]bool{},
		ProbeJSON: fmt.Sprintf(`{"streams":[{"codec_type":"video","codec_name":"h264","width":%d,"height":%d},{"codec_type":"audio","codec_name":"aac"}],"format":{"duration":"120.5","bit_rate":"4000000"}}`, width, height),
	}
}

func (m *MediaTools) Run(_ context.Context, name string, args ...string) (*runner.Output, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, append([]string{name}, args...))
	m.mu.Unlock()

	if strings.Contains(name, "ffprobe") {
		if m.ProbeErr != nil {
			return &runner.Output{}, m.ProbeErr
		}
		return &runner.Output{Stdout: m.ProbeJSON}, nil
	}

	out := args[len(args)-1]
	tier := strings.TrimSuffix(filepath.Base(out), filepath.Ext(out))
	if m.FailTiers[tier] {
		return &runner.Output{Stderr: "encoder crashed"}, &runner.ProcessFailure{Command: name, ExitCode: 1, Stderr: "encoder crashed"}
	}
	if err := os.WriteFile(out, []byte("media:"+tier), 0644); err != nil {
		return nil, &runner.ProcessFailure{Command: name, ExitCode: -1, Err: err}
	}
	return &runner.Output{}, nil
}

// EncoderCalls returns the ffmpeg invocations in call order.
func (m *MediaTools) EncoderCalls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out [][]string
	for _, c := range m.Calls {
		if !strings.Contains(c[0], "ffprobe") {
			out = append(out, append([]string{}, c...))
		}
	}
	return out
}
