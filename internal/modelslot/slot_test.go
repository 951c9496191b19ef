package modelslot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Niruuu2005/ZenKnowledgeForge/internal/pipelineerrors"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/state"
)

// fakeRuntime is a deterministic stub satisfying modelruntime.Client.
type fakeRuntime struct {
	mu sync.Mutex

	ensurePresentErrs map[string][]error // queued errors per model, consumed in order
	unloadCalls       int
	ensureCalls       int
}

func (f *fakeRuntime) Generate(ctx context.Context, modelID, promptText string, temperature float64, maxTokens, numCtx int, repeatPenalty float64, topK int, topP float64, deadline time.Time) (string, error) {
	return "", nil
}

func (f *fakeRuntime) EnsurePresent(ctx context.Context, modelID string, deadline time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureCalls++
	queue := f.ensurePresentErrs[modelID]
	if len(queue) == 0 {
		return nil
	}
	next := queue[0]
	f.ensurePresentErrs[modelID] = queue[1:]
	return next
}

func (f *fakeRuntime) Unload(ctx context.Context, modelID string, deadline time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unloadCalls++
	return nil
}

func fastConfig() Config {
	return Config{
		MaxLoadRetries:    3,
		LoadBackoffBase:   1 * time.Millisecond,
		SwapSettleWait:    1 * time.Millisecond,
		PerAttemptTimeout: time.Second,
	}
}

func TestWithModelLoadsOnFirstUse(t *testing.T) {
	rt := &fakeRuntime{ensurePresentErrs: map[string][]error{}}
	slot := New(rt, fastConfig())

	desc := state.ModelDescriptor{ModelID: "m1"}
	out, err := slot.WithModel(context.Background(), desc, time.Now().Add(time.Second), func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" {
		t.Fatalf("unexpected output: %q", out)
	}
	if slot.Current() == nil || slot.Current().ModelID != "m1" {
		t.Fatalf("expected m1 to be resident, got %+v", slot.Current())
	}
	if rt.unloadCalls != 0 {
		t.Fatalf("expected no unload on first load, got %d", rt.unloadCalls)
	}
}

func TestWithModelSwapsAndUnloadsPrevious(t *testing.T) {
	rt := &fakeRuntime{ensurePresentErrs: map[string][]error{}}
	slot := New(rt, fastConfig())

	run := func(id string) {
		_, err := slot.WithModel(context.Background(), state.ModelDescriptor{ModelID: id}, time.Now().Add(time.Second), func(ctx context.Context) (string, error) {
			return "", nil
		})
		if err != nil {
			t.Fatalf("unexpected error loading %s: %v", id, err)
		}
	}

	run("m1")
	run("m2")

	if slot.Current().ModelID != "m2" {
		t.Fatalf("expected m2 resident, got %+v", slot.Current())
	}
	if rt.unloadCalls != 1 {
		t.Fatalf("expected exactly one unload when swapping, got %d", rt.unloadCalls)
	}
}

func TestWithModelRetriesOnRuntimeUnavailable(t *testing.T) {
	rt := &fakeRuntime{ensurePresentErrs: map[string][]error{
		"m1": {
			&pipelineerrors.RuntimeUnavailable{ModelID: "m1"},
			&pipelineerrors.RuntimeUnavailable{ModelID: "m1"},
			nil,
		},
	}}
	slot := New(rt, fastConfig())

	_, err := slot.WithModel(context.Background(), state.ModelDescriptor{ModelID: "m1"}, time.Now().Add(5*time.Second), func(ctx context.Context) (string, error) {
		return "done", nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if rt.ensureCalls != 3 {
		t.Fatalf("expected 3 ensure-present attempts, got %d", rt.ensureCalls)
	}
}

func TestWithModelExhaustsRetriesAndReturnsModelLoadFailed(t *testing.T) {
	rt := &fakeRuntime{ensurePresentErrs: map[string][]error{
		"m1": {
			&pipelineerrors.RuntimeUnavailable{ModelID: "m1"},
			&pipelineerrors.RuntimeUnavailable{ModelID: "m1"},
			&pipelineerrors.RuntimeUnavailable{ModelID: "m1"},
		},
	}}
	cfg := fastConfig()
	cfg.MaxLoadRetries = 3
	slot := New(rt, cfg)

	_, err := slot.WithModel(context.Background(), state.ModelDescriptor{ModelID: "m1"}, time.Now().Add(5*time.Second), func(ctx context.Context) (string, error) {
		return "unreachable", nil
	})
	if err == nil {
		t.Fatalf("expected ModelLoadFailed")
	}
	loadFailed, ok := err.(*pipelineerrors.ModelLoadFailed)
	if !ok {
		t.Fatalf("expected *pipelineerrors.ModelLoadFailed, got %T: %v", err, err)
	}
	if loadFailed.Attempts != 3 {
		t.Fatalf("expected 3 recorded attempts, got %d", loadFailed.Attempts)
	}
}

func TestWithModelDoesNotRetryOnFatalRuntimeError(t *testing.T) {
	rt := &fakeRuntime{ensurePresentErrs: map[string][]error{
		"m1": {&pipelineerrors.RuntimeError{ModelID: "m1"}},
	}}
	slot := New(rt, fastConfig())

	_, err := slot.WithModel(context.Background(), state.ModelDescriptor{ModelID: "m1"}, time.Now().Add(5*time.Second), func(ctx context.Context) (string, error) {
		return "unreachable", nil
	})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if rt.ensureCalls != 1 {
		t.Fatalf("expected exactly one attempt for a non-retryable error, got %d", rt.ensureCalls)
	}
}

func TestExclusivityOnlyOneModelResidentAtATime(t *testing.T) {
	rt := &fakeRuntime{ensurePresentErrs: map[string][]error{}}
	slot := New(rt, fastConfig())

	var wg sync.WaitGroup
	seen := make(chan string, 20)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		id := "m1"
		if i%2 == 0 {
			id = "m2"
		}
		go func(id string) {
			defer wg.Done()
			_, _ = slot.WithModel(context.Background(), state.ModelDescriptor{ModelID: id}, time.Now().Add(5*time.Second), func(ctx context.Context) (string, error) {
				cur := slot.Current()
				if cur == nil || cur.ModelID != id {
					t.Errorf("exclusivity violated: expected %s resident inside its own body, got %+v", id, cur)
				}
				seen <- id
				return "", nil
			})
		}(id)
	}
	wg.Wait()
	close(seen)
	count := 0
	for range seen {
		count++
	}
	if count != 10 {
		t.Fatalf("expected all 10 bodies to run, got %d", count)
	}
}

func TestReleaseUnloadsResidentModel(t *testing.T) {
	rt := &fakeRuntime{ensurePresentErrs: map[string][]error{}}
	slot := New(rt, fastConfig())

	_, _ = slot.WithModel(context.Background(), state.ModelDescriptor{ModelID: "m1"}, time.Now().Add(time.Second), func(ctx context.Context) (string, error) {
		return "", nil
	})
	slot.Release(context.Background())

	if slot.Current() != nil {
		t.Fatalf("expected no resident model after Release, got %+v", slot.Current())
	}
	if rt.unloadCalls != 1 {
		t.Fatalf("expected exactly one unload call from Release, got %d", rt.unloadCalls)
	}
}
