package lifecycle

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrVideoBusy is returned by CreateJob while another job for the same video
	// is queued, processing or being created.
	ErrVideoBusy = errors.New("video already has an active transcoding job")

	ErrInvalidRequest = errors.New("invalid transcoding request")

	// ErrMissingSourceFile marks a scan or sweep candidate whose source is gone.
	ErrMissingSourceFile = errors.New("source file is missing")

	errNoRenditions = errors.New("no renditions were produced")
)

// JobFailure is any error that ends a job in the error state.
type JobFailure struct {
	JobID string
	Stage string
	Err   error
}

func (e *JobFailure) Error() string {
	return fmt.Sprintf("job %s failed during %s: %v", e.JobID, e.Stage, e.Err)
}

func (e *JobFailure) Unwrap() error { return e.Err }

// Message is the text persisted on the job and mirrored onto the media item.
func (e *JobFailure) Message() string {
	if e.Err == nil {
		return e.Stage + " failed"
	}
	return e.Err.Error()
}

func checkSourceFile(path string) error {
	if path == "" {
		return fmt.Errorf("%w: no path recorded", ErrMissingSourceFile)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMissingSourceFile, path)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrMissingSourceFile, path)
	}
	return nil
}
