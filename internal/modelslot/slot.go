// Package modelslot implements ModelSlot, the single-slot loader of
// spec.md §4.2: at most one model resident in accelerator memory at a
// time, guarded by a non-reentrant lock, with retrying load and a settle
// wait between unload and the next load. Retry/backoff is grounded on the
// teacher's client.CalculateBackoff; pool bookkeeping is grounded on the
// teacher's client.ClientPool idle-eviction shape, narrowed here to a
// single resident slot instead of an LRU pool of many.
package modelslot

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/Niruuu2005/ZenKnowledgeForge/internal/logging"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/modelruntime"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/pipelineerrors"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/state"
)

// Config holds the retry/backoff/settle knobs spec.md §6 exposes.
type Config struct {
	MaxLoadRetries       int           // default 3
	LoadBackoffBase      time.Duration // default 2s
	SwapSettleWait       time.Duration // default 2s
	PerAttemptTimeout    time.Duration // default 30s, for load/probe attempts
}

// DefaultConfig returns spec.md §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxLoadRetries:    3,
		LoadBackoffBase:   2 * time.Second,
		SwapSettleWait:    2 * time.Second,
		PerAttemptTimeout: 30 * time.Second,
	}
}

// Slot guarantees at most one model is resident in accelerator memory. It
// is not reentrant: a caller holding the lock via WithModel must not call
// WithModel again from the same goroutine.
type Slot struct {
	cfg     Config
	runtime modelruntime.Client

	mu      sync.Mutex
	current *state.ModelDescriptor
}

// New constructs a Slot bound to a ModelRuntimeClient.
func New(runtime modelruntime.Client, cfg Config) *Slot {
	return &Slot{runtime: runtime, cfg: cfg}
}

// Current returns the currently resident model descriptor, or nil.
// Exposed for the Exclusivity invariant test (spec.md §8).
func (s *Slot) Current() *state.ModelDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// WithModel acquires the lock, ensures desc is resident (unloading the
// current model and retrying the load with exponential backoff as
// needed), runs body while holding the lock, and returns body's result.
// Cancellation of ctx aborts a load-retry wait promptly; the lock is
// always released on every exit path.
func (s *Slot) WithModel(ctx context.Context, desc state.ModelDescriptor, deadline time.Time, body func(ctx context.Context) (string, error)) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.ModelID != desc.ModelID {
		if err := s.swap(ctx, desc, deadline); err != nil {
			return "", err
		}
	}

	return body(ctx)
}

// swap unloads the current model (if any) and loads desc, retrying the
// load up to cfg.MaxLoadRetries times with exponential backoff. Must be
// called with s.mu held.
func (s *Slot) swap(ctx context.Context, desc state.ModelDescriptor, deadline time.Time) error {
	if s.current != nil {
		unloadDeadline := earlier(deadline, time.Now().Add(s.cfg.PerAttemptTimeout))
		if err := s.runtime.Unload(ctx, s.current.ModelID, unloadDeadline); err != nil {
			logging.Warn("best-effort unload failed", "model", s.current.ModelID, "error", err)
		}
		s.current = nil

		if err := sleepCtx(ctx, s.cfg.SwapSettleWait); err != nil {
			return &pipelineerrors.Cancellation{}
		}
	}

	var lastErr error
	maxRetries := s.cfg.MaxLoadRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		if time.Now().After(deadline) {
			lastErr = &pipelineerrors.RuntimeTimeout{ModelID: desc.ModelID}
			break
		}

		attemptDeadline := earlier(deadline, time.Now().Add(s.cfg.PerAttemptTimeout))
		err := s.runtime.EnsurePresent(ctx, desc.ModelID, attemptDeadline)
		if err == nil {
			s.current = &desc
			return nil
		}
		lastErr = err

		if !retryable(err) {
			break
		}

		if attempt == maxRetries-1 {
			break
		}

		backoff := calculateBackoff(s.cfg.LoadBackoffBase, attempt)
		if time.Now().Add(backoff).After(deadline) {
			// Retrying further could not possibly complete before the
			// deadline the caller gave us; treat a RuntimeTimeout as
			// non-retryable rather than sleeping past the deadline.
			if _, isTimeout := err.(*pipelineerrors.RuntimeTimeout); isTimeout {
				break
			}
		}
		if err := sleepCtx(ctx, backoff); err != nil {
			return &pipelineerrors.Cancellation{}
		}
	}

	attempts := maxRetries
	return &pipelineerrors.ModelLoadFailed{ModelID: desc.ModelID, Attempts: attempts, Cause: lastErr}
}

// Release performs a best-effort unload on shutdown; it must not block
// shutdown on a failing runtime.
func (s *Slot) Release(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	deadline := time.Now().Add(s.cfg.PerAttemptTimeout)
	if err := s.runtime.Unload(ctx, s.current.ModelID, deadline); err != nil {
		logging.Warn("release: best-effort unload failed", "model", s.current.ModelID, "error", err)
	}
	s.current = nil
}

// retryable classifies which taxonomy errors entitle a retry, per
// spec.md §4.2's failure-classification table.
func retryable(err error) bool {
	switch err.(type) {
	case *pipelineerrors.ModelAbsent, *pipelineerrors.RuntimeUnavailable, *pipelineerrors.RuntimeTimeout:
		return true
	default:
		return false
	}
}

// calculateBackoff computes exponential backoff with jitter, grounded on
// the teacher's client.CalculateBackoff.
func calculateBackoff(base time.Duration, attempt int) time.Duration {
	delay := base * time.Duration(1<<uint(attempt))
	jitter := time.Duration(rand.Int63n(int64(delay/4) + 1))
	return delay + jitter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
