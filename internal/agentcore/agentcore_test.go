package agentcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Niruuu2005/ZenKnowledgeForge/internal/modelslot"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/prompt"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/state"
)

type scriptedRuntime struct {
	responses []string
	calls     int
}

func (r *scriptedRuntime) Generate(ctx context.Context, modelID, promptText string, temperature float64, maxTokens, numCtx int, repeatPenalty float64, topK int, topP float64, deadline time.Time) (string, error) {
	if r.calls >= len(r.responses) {
		return "", errors.New("no more scripted responses")
	}
	resp := r.responses[r.calls]
	r.calls++
	return resp, nil
}

func (r *scriptedRuntime) EnsurePresent(ctx context.Context, modelID string, deadline time.Time) error { return nil }
func (r *scriptedRuntime) Unload(ctx context.Context, modelID string, deadline time.Time) error         { return nil }

func fastSlot(rt *scriptedRuntime) *modelslot.Slot {
	return modelslot.New(rt, modelslot.Config{
		MaxLoadRetries:    1,
		LoadBackoffBase:   time.Millisecond,
		SwapSettleWait:    time.Millisecond,
		PerAttemptTimeout: time.Second,
	})
}

func testModel() state.ModelDescriptor {
	return state.ModelDescriptor{ModelID: "test-model", Temperature: 0.2, MaxContextTokens: 2048, MaxGenTokens: 512}
}

func TestThinkSucceedsOnFirstValidResponse(t *testing.T) {
	rt := &scriptedRuntime{responses: []string{`{"ok":true}`}}
	base := New(fastSlot(rt), rt, DefaultConfig())
	s := state.New("brief", state.ModeResearch, nil, "sess-1")

	var parsedCalls int
	h := Hooks{
		AgentID:  state.AgentInterpreter,
		Model:    testModel(),
		Template: "do the thing",
		PrepareInput: func(s *state.SharedState) (any, []prompt.EvidenceBlock, error) {
			return map[string]string{"brief": s.UserBrief}, nil, nil
		},
		Parse: func(obj map[string]any, s *state.SharedState) (any, error) {
			parsedCalls++
			if obj["ok"] != true {
				return nil, errors.New("missing ok")
			}
			return "parsed-output", nil
		},
		Degrade: func(s *state.SharedState) any { return "degraded" },
	}

	out := base.Think(context.Background(), h, s, time.Now().Add(5*time.Second))
	if out != "parsed-output" {
		t.Fatalf("expected parsed-output, got %v", out)
	}
	if parsedCalls != 1 {
		t.Fatalf("expected exactly one parse call, got %d", parsedCalls)
	}
	if len(s.ErrorsSnapshot()) != 0 {
		t.Fatalf("expected no recorded errors, got %+v", s.ErrorsSnapshot())
	}
}

func TestThinkRetriesOnUnparseableOutputThenSucceeds(t *testing.T) {
	rt := &scriptedRuntime{responses: []string{"not json at all", `{"ok":true}`}}
	base := New(fastSlot(rt), rt, DefaultConfig())
	s := state.New("brief", state.ModeResearch, nil, "sess-1")

	h := Hooks{
		AgentID:  state.AgentPlanner,
		Model:    testModel(),
		Template: "plan it",
		PrepareInput: func(s *state.SharedState) (any, []prompt.EvidenceBlock, error) {
			return map[string]string{}, nil, nil
		},
		Parse: func(obj map[string]any, s *state.SharedState) (any, error) {
			return "parsed-output", nil
		},
		Degrade: func(s *state.SharedState) any { return "degraded" },
	}

	out := base.Think(context.Background(), h, s, time.Now().Add(5*time.Second))
	if out != "parsed-output" {
		t.Fatalf("expected eventual success after retry, got %v", out)
	}
	if rt.calls != 2 {
		t.Fatalf("expected exactly 2 generation calls, got %d", rt.calls)
	}
}

func TestThinkDegradesAfterExhaustingParseRetries(t *testing.T) {
	rt := &scriptedRuntime{responses: []string{"junk", "junk", "junk"}}
	base := New(fastSlot(rt), rt, Config{MaxParseRetries: 2})
	s := state.New("brief", state.ModeResearch, nil, "sess-1")

	h := Hooks{
		AgentID:  state.AgentGrounder,
		Model:    testModel(),
		Template: "ground it",
		PrepareInput: func(s *state.SharedState) (any, []prompt.EvidenceBlock, error) {
			return map[string]string{}, nil, nil
		},
		Parse: func(obj map[string]any, s *state.SharedState) (any, error) {
			return "parsed-output", nil
		},
		Degrade: func(s *state.SharedState) any { return "degraded" },
	}

	out := base.Think(context.Background(), h, s, time.Now().Add(5*time.Second))
	if out != "degraded" {
		t.Fatalf("expected degraded output, got %v", out)
	}
	if rt.calls != 3 {
		t.Fatalf("expected 3 generation attempts (1 + 2 retries), got %d", rt.calls)
	}
	if !s.HasErrorFor(state.AgentGrounder) {
		t.Fatalf("expected a recorded error for the grounder")
	}
}

func TestThinkDegradesOnParseHookRejection(t *testing.T) {
	rt := &scriptedRuntime{responses: []string{`{"bad":true}`, `{"bad":true}`, `{"bad":true}`}}
	base := New(fastSlot(rt), rt, Config{MaxParseRetries: 2})
	s := state.New("brief", state.ModeResearch, nil, "sess-1")

	h := Hooks{
		AgentID:  state.AgentAuditor,
		Model:    testModel(),
		Template: "audit it",
		PrepareInput: func(s *state.SharedState) (any, []prompt.EvidenceBlock, error) {
			return map[string]string{}, nil, nil
		},
		Parse: func(obj map[string]any, s *state.SharedState) (any, error) {
			return nil, errors.New("missing required field")
		},
		Degrade: func(s *state.SharedState) any { return "degraded" },
	}

	out := base.Think(context.Background(), h, s, time.Now().Add(5*time.Second))
	if out != "degraded" {
		t.Fatalf("expected degraded output, got %v", out)
	}
}

func TestThinkDegradesOnPrepareInputError(t *testing.T) {
	rt := &scriptedRuntime{responses: []string{`{"ok":true}`}}
	base := New(fastSlot(rt), rt, DefaultConfig())
	s := state.New("brief", state.ModeResearch, nil, "sess-1")

	h := Hooks{
		AgentID:  state.AgentJudge,
		Model:    testModel(),
		Template: "judge it",
		PrepareInput: func(s *state.SharedState) (any, []prompt.EvidenceBlock, error) {
			return nil, nil, errors.New("plan missing")
		},
		Parse:   func(obj map[string]any, s *state.SharedState) (any, error) { return "should not reach", nil },
		Degrade: func(s *state.SharedState) any { return "degraded" },
	}

	out := base.Think(context.Background(), h, s, time.Now().Add(5*time.Second))
	if out != "degraded" {
		t.Fatalf("expected degraded output, got %v", out)
	}
	if rt.calls != 0 {
		t.Fatalf("expected no generation calls when prepare_input fails, got %d", rt.calls)
	}
}
