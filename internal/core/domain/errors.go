package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a document or chunk does not exist for the
	// given tenant.
	ErrNotFound = errors.New("not found")

	// ErrNoContent indicates the input text was empty after trimming.
	// This is a caller-visible condition, not a failure.
	ErrNoContent = errors.New("no content")

	// ErrValidation indicates malformed input: a dimension or shape
	// mismatch, or a malformed filter. Never silently coerced.
	ErrValidation = errors.New("validation failed")

	// ErrExtractionFailed indicates no usable text could be extracted.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrProviderThrottled indicates the embedding or generation provider
	// rejected the request due to rate limiting. Retried once with backoff
	// before propagating.
	ErrProviderThrottled = errors.New("provider throttled")

	// ErrProviderUnavailable indicates the provider is unreachable or
	// returned a hard failure. Propagates immediately.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrIndexFailure indicates a vector index read or write failed.
	ErrIndexFailure = errors.New("index failure")

	// ErrIngestInProgress indicates an ingestion for the same document id
	// is already running.
	ErrIngestInProgress = errors.New("ingestion already in progress")
)

// Stage names the pipeline step an error originated from, so callers can
// tell which part of ingestion or querying to retry.
type Stage string

const (
	StageExtract  Stage = "extract"
	StageChunk    Stage = "chunk"
	StageEmbed    Stage = "embed"
	StageIndex    Stage = "index"
	StageStore    Stage = "store"
	StageRetrieve Stage = "retrieve"
	StageGenerate Stage = "generate"
)

// StageError wraps an error with the pipeline stage it occurred in.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with the given stage. Returns nil when err is nil.
func NewStageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// FailedStage reports the stage an error originated from, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
