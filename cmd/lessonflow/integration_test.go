package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lessonflow/internal/config"
	"lessonflow/internal/model"
	"lessonflow/internal/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testBaseURL = "http://localhost:8082"

func TestServerIntegration(t *testing.T) {
	// Skip in CI environments
	if os.Getenv("CI") == "true" {
		t.Skip("Skipping integration test in CI environment")
	}

	t.Setenv("APP_MODE", "server")
	t.Setenv("PORT", "8082")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("EVENT_SOURCE", "none")
	t.Setenv("OUTPUT_ROOT", t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()

	go func() {
		if err := a.Run(ctx); err != nil {
			telemetry.Logger.Error("Server error", zap.Error(err))
		}
	}()

	// Wait for server to start
	require.Eventually(t, func() bool {
		resp, err := http.Get(testBaseURL + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	t.Run("InvalidJobFormat", testInvalidJobFormat)
	t.Run("MissingRequiredFields", testMissingRequiredFields)
	t.Run("UnreadableSourceFails", testUnreadableSourceFails)
	t.Run("UploadQueueDisabled", testUploadQueueDisabled)
}

func postJSON(t *testing.T, path string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(testBaseURL+path, "application/json", bytes.NewBuffer(body))
	require.NoError(t, err)
	return resp
}

func testInvalidJobFormat(t *testing.T) {
	resp := postJSON(t, "/jobs", []byte(`{"invalidField": true, "brokenJson":}`))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "Expected bad request for invalid JSON")
}

func testMissingRequiredFields(t *testing.T) {
	resp := postJSON(t, "/jobs", []byte(`{}`))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "Expected bad request for missing fields")
}

// The source is not a video, so ffprobe (or its absence) must drive the job to error.
func testUnreadableSourceFails(t *testing.T) {
	source := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(source, []byte("not a video"), 0644))

	body, _ := json.Marshal(model.CreateJobRequest{VideoPath: source, VideoID: "integration-video"})
	resp := postJSON(t, "/jobs", body)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var handle model.JobHandle
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&handle))
	assert.Equal(t, model.StatusQueued, handle.Status)

	var job model.TranscodingJob
	require.Eventually(t, func() bool {
		r, err := http.Get(testBaseURL + "/jobs/" + handle.JobID)
		if err != nil {
			return false
		}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
			return false
		}
		return job.Status == model.StatusError
	}, 10*time.Second, 100*time.Millisecond)
	assert.NotEmpty(t, job.Error)

	r, err := http.Get(testBaseURL + "/jobs?videoId=integration-video")
	require.NoError(t, err)
	defer r.Body.Close()
	var summaries []map[string]interface{}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&summaries))
	assert.Len(t, summaries, 1)
}

func testUploadQueueDisabled(t *testing.T) {
	resp := postJSON(t, "/uploads/events", []byte(`{"videoId":"a","videoPath":"/a.mp4"}`))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
