// Package pipelineerrors defines the typed error taxonomy shared by the
// model runtime, the model slot, and the agent pipeline. Components
// classify failures into one of these concrete types and check them with
// errors.As/errors.Is rather than matching on message strings.
package pipelineerrors

import (
	"fmt"
	"time"
)

// RuntimeUnavailable indicates a transport-level failure talking to the
// model runtime (connection refused, DNS failure, etc).
type RuntimeUnavailable struct {
	ModelID string
	Cause   error
}

func (e *RuntimeUnavailable) Error() string {
	return fmt.Sprintf("model runtime unavailable for %q: %v", e.ModelID, e.Cause)
}

func (e *RuntimeUnavailable) Unwrap() error { return e.Cause }

// ModelAbsent indicates the runtime does not have the requested model.
type ModelAbsent struct {
	ModelID string
}

func (e *ModelAbsent) Error() string {
	return fmt.Sprintf("model %q is not present in the runtime", e.ModelID)
}

// RuntimeTimeout indicates a caller-supplied deadline expired before the
// runtime responded.
type RuntimeTimeout struct {
	ModelID string
	Elapsed time.Duration
}

func (e *RuntimeTimeout) Error() string {
	return fmt.Sprintf("model runtime timed out for %q after %s", e.ModelID, e.Elapsed)
}

// RuntimeError is a catch-all for runtime failures that are neither
// transport unavailability, an absent model, nor a timeout (e.g. a 5xx
// response body, a malformed response envelope).
type RuntimeError struct {
	ModelID string
	Cause   error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("model runtime error for %q: %v", e.ModelID, e.Cause)
}

func (e *RuntimeError) Unwrap() error { return e.Cause }

// ModelLoadFailed is raised by ModelSlot when all load retries for a model
// are exhausted.
type ModelLoadFailed struct {
	ModelID  string
	Attempts int
	Cause    error
}

func (e *ModelLoadFailed) Error() string {
	return fmt.Sprintf("failed to load model %q after %d attempt(s): %v", e.ModelID, e.Attempts, e.Cause)
}

func (e *ModelLoadFailed) Unwrap() error { return e.Cause }

// ParseRejected indicates a model response could not be turned into the
// agent's typed output, either because JSONExtractor found nothing or
// because the agent's own parse-validation rejected the extracted object.
type ParseRejected struct {
	AgentID string
	Reason  string
}

func (e *ParseRejected) Error() string {
	return fmt.Sprintf("%s: parse rejected: %s", e.AgentID, e.Reason)
}

// GateRejected indicates an agent's output parsed successfully but failed
// the engine's quality gate for that agent.
type GateRejected struct {
	AgentID string
	Reason  string
}

func (e *GateRejected) Error() string {
	return fmt.Sprintf("%s: quality gate rejected: %s", e.AgentID, e.Reason)
}

// RetrievalWarning indicates a non-fatal failure of a web or vector
// sub-query within EvidenceRetriever. It never halts the pipeline.
type RetrievalWarning struct {
	QuestionID string
	Origin     string // "web" or "vector"
	Cause      error
}

func (e *RetrievalWarning) Error() string {
	return fmt.Sprintf("retrieval warning for question %q (%s): %v", e.QuestionID, e.Origin, e.Cause)
}

func (e *RetrievalWarning) Unwrap() error { return e.Cause }

// Cancellation indicates the caller cancelled the run. It carries no
// payload beyond identifying the agent that was interrupted.
type Cancellation struct {
	AgentID string
}

func (e *Cancellation) Error() string {
	return fmt.Sprintf("%s: cancelled", e.AgentID)
}

// ConfigError indicates a missing or invalid configuration value. The
// engine refuses to start a run when this is returned.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}
