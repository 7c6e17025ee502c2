// Package job provides the Job aggregate for the upload-to-detection
// pipeline and the dispatcher service that runs jobs on a bounded worker
// pool.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mvaldes-dev/detection-api/internal/media"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusQueued indicates the job is waiting for a worker.
	StatusQueued Status = "QUEUED"
	// StatusRunning indicates the job is being processed.
	StatusRunning Status = "RUNNING"
	// StatusSucceeded indicates the job finished and its output is stored.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed indicates the job encountered an error during processing.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusQueued:    {StatusRunning},
	StatusRunning:   {StatusSucceeded, StatusFailed},
	StatusSucceeded: {},
	StatusFailed:    {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Job represents one end-to-end processing unit: upload acceptance through
// output-file creation and notification.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Kind is the processing kind (image or video).
	Kind media.Kind
	// Status is the current job state.
	Status Status
	// InputName is the sanitized upload filename.
	InputName string
	// OutputName is the result filename, derived as "result_" + InputName.
	OutputName string
	// InputPath is the absolute path of the stored upload.
	InputPath string
	// OutputPath is the absolute path the result is written to.
	OutputPath string
	// ResultURL is the locator delivered in the completion notification.
	ResultURL string
	// Error contains any error message if the job failed.
	Error string
	// CreatedAt is when the job was accepted.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a Job in QUEUED state with a generated ID.
func New(kind media.Kind, inputName, inputPath, outputName, outputPath string) *Job {
	now := time.Now()
	return &Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		Status:     StatusQueued,
		InputName:  inputName,
		OutputName: outputName,
		InputPath:  inputPath,
		OutputPath: outputPath,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusSucceeded, StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from QUEUED to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Succeed transitions the job to SUCCEEDED and records the result locator.
func (j *Job) Succeed(resultURL string) error {
	j.mu.Lock()
	j.ResultURL = resultURL
	j.mu.Unlock()
	return j.TransitionTo(StatusSucceeded)
}

// Fail transitions the job to FAILED with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusSucceeded || j.Status == StatusFailed
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:          j.ID,
		Kind:        j.Kind,
		Status:      j.Status,
		InputName:   j.InputName,
		OutputName:  j.OutputName,
		InputPath:   j.InputPath,
		OutputPath:  j.OutputPath,
		ResultURL:   j.ResultURL,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
