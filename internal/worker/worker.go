package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"lessonflow/internal/lifecycle"
	"lessonflow/internal/model"
	"lessonflow/internal/service"
	"lessonflow/internal/telemetry"

	"go.uber.org/zap"
)

const DefaultParallelism = 4

// EventSource yields raw upload events. An empty string with a nil error means
// the wait timed out and the caller should ask again.
type EventSource interface {
	Next(ctx context.Context) (string, error)
}

// InternalErrorHandler receives every error a puller could not deal with itself.
type InternalErrorHandler interface {
	HandleError(err error)
}

type logErrorHandler struct{}

func (logErrorHandler) HandleError(err error) {
	telemetry.Logger.Error("Worker error", zap.Error(err))
}

// EventError ties an error to the raw event that caused it.
type EventError struct {
	Event string
	error
}

func (e EventError) Unwrap() error { return e.error }

type WorkerService struct {
	*service.Services
	source       EventSource
	parallelism  int
	errorHandler InternalErrorHandler
	errorChannel chan error
	retryDelay   time.Duration

	pullers sync.WaitGroup
	drained sync.WaitGroup
}

func NewWorkerService(svc *service.Services, source EventSource, parallelism int, errHandler InternalErrorHandler) *WorkerService {
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	if errHandler == nil {
		errHandler = logErrorHandler{}
	}
	return &WorkerService{
		Services:     svc,
		source:       source,
		parallelism:  parallelism,
		errorHandler: errHandler,
		errorChannel: make(chan error, parallelism),
		retryDelay:   time.Second,
	}
}

// Start launches the pullers and returns. They stop when ctx is cancelled; use Wait to block until then.
func (w *WorkerService) Start(ctx context.Context) error {
	for i := 0; i < w.parallelism; i++ {
		w.pullers.Add(1)
		go w.pullEvents(ctx, i)
	}

	w.drained.Add(1)
	go func() {
		defer w.drained.Done()
		for err := range w.errorChannel {
			w.errorHandler.HandleError(err)
		}
	}()
	go func() {
		w.pullers.Wait()
		close(w.errorChannel)
	}()
	return nil
}

// Wait blocks until every puller has exited and all errors were handled.
func (w *WorkerService) Wait() {
	w.pullers.Wait()
	w.drained.Wait()
}

func (w *WorkerService) pullEvents(ctx context.Context, id int) {
	defer w.pullers.Done()
	for {
		if ctx.Err() != nil {
			return
		}

		raw, err := w.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.errorChannel <- EventError{raw, err}
			w.backoff(ctx)
			continue
		}
		if raw == "" {
			continue
		}
		telemetry.Logger.Info("Dequeued upload event", zap.Int("worker_id", id))

		if err := w.handleEvent(ctx, raw); err != nil {
			w.errorChannel <- EventError{raw, err}
		}
	}
}

func (w *WorkerService) backoff(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.retryDelay):
	}
}

func (w *WorkerService) handleEvent(ctx context.Context, raw string) error {
	var event model.UploadEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return fmt.Errorf("decode upload event: %w", err)
	}

	handle, err := w.Services.Jobs.CreateJob(ctx, event.ToRequest())
	if errors.Is(err, lifecycle.ErrVideoBusy) {
		telemetry.Logger.Info("Dropping upload event for busy video", zap.String("video_id", event.VideoID), zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}

	telemetry.Logger.Info("Started job from upload event",
		zap.String("job_id", handle.JobID),
		zap.String("video_id", handle.VideoID),
	)
	return nil
}
