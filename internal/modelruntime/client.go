// Package modelruntime implements ModelRuntimeClient, the thin blocking
// capability spec.md §4.1 places over an external local model runtime.
// It never retries — retry belongs to ModelSlot — and it classifies every
// failure into one of the four taxonomy errors in
// internal/pipelineerrors.
package modelruntime

import (
	"context"
	"time"
)

// Client is the capability AgentBase and ModelSlot depend on. The
// concrete implementation (Ollama) lives in ollama.go; tests substitute a
// stub satisfying this interface.
type Client interface {
	// Generate issues a blocking generation request. It fails with
	// *pipelineerrors.RuntimeUnavailable on transport error,
	// *pipelineerrors.ModelAbsent on not-found, *pipelineerrors.RuntimeTimeout
	// on deadline expiry, and *pipelineerrors.RuntimeError otherwise.
	Generate(ctx context.Context, modelID, promptText string, temperature float64, maxTokens, numCtx int, repeatPenalty float64, topK int, topP float64, deadline time.Time) (string, error)

	// EnsurePresent probes the runtime for modelID's availability.
	EnsurePresent(ctx context.Context, modelID string, deadline time.Time) error

	// Unload asks the runtime to free modelID's accelerator memory
	// immediately. It is the ModelSlot's unload primitive: the runtime has
	// no dedicated unload endpoint, so this issues a zero-token generate
	// call with keep_alive=0, which the runtime treats as an unload
	// request when the prompt is empty.
	Unload(ctx context.Context, modelID string, deadline time.Time) error
}
