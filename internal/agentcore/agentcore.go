// Package agentcore implements the think-cycle shared by every
// deliberation agent: assemble → invoke → extract → parse → degrade,
// composed over three hooks rather than a class hierarchy, per spec.md
// §4.6's explicit composition-over-inheritance redesign note.
package agentcore

import (
	"context"
	"fmt"
	"time"

	"github.com/Niruuu2005/ZenKnowledgeForge/internal/jsonextract"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/logging"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/modelruntime"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/modelslot"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/pipelineerrors"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/prompt"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/security"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/state"
)

// Hooks is the three-function contract every agent implements. PrepareInput
// builds the structured input fed to the prompt template; Parse converts an
// extracted JSON object into the agent's typed output or rejects it with a
// reason; Degrade produces a typed-but-minimal output when generation or
// parsing never succeeds.
type Hooks struct {
	AgentID  state.AgentID
	Model    state.ModelDescriptor
	Template string

	PrepareInput func(s *state.SharedState) (any, []prompt.EvidenceBlock, error)
	Parse        func(obj map[string]any, s *state.SharedState) (any, error)
	Degrade      func(s *state.SharedState) any
}

// Config holds the think-cycle's own knobs, separate from ModelSlot's.
type Config struct {
	MaxParseRetries int // default 2, per spec.md §4.6
}

// DefaultConfig returns spec.md's documented default.
func DefaultConfig() Config {
	return Config{MaxParseRetries: 2}
}

// Base runs Hooks through the canonical think-cycle against a shared
// ModelSlot and ModelRuntimeClient.
type Base struct {
	cfg      Config
	slot     *modelslot.Slot
	runtime  modelruntime.Client
	redactor *security.SecretRedactor
}

// New builds a Base bound to the run's single ModelSlot. Errors surfaced
// from the model runtime are redacted before they reach SharedState or the
// log, since a runtime error can echo back the request body (prompt
// included) or a raw HTTP response.
func New(slot *modelslot.Slot, runtime modelruntime.Client, cfg Config) *Base {
	if cfg.MaxParseRetries <= 0 {
		cfg.MaxParseRetries = 2
	}
	return &Base{cfg: cfg, slot: slot, runtime: runtime, redactor: security.NewSecretRedactor()}
}

// Think runs h's prepare→invoke→extract→parse→degrade loop and returns the
// resulting typed output. It never returns an error: every fatal path ends
// in a recorded error entry on s plus h.Degrade's output, matching spec.md
// §4.6's guarantee that the think-cycle never raises upstream.
func (b *Base) Think(ctx context.Context, h Hooks, s *state.SharedState, deadline time.Time) any {
	input, evidence, err := h.PrepareInput(s)
	if err != nil {
		msg := b.redactor.Redact(fmt.Sprintf("prepare_input failed: %v", err))
		s.RecordError(h.AgentID, msg)
		logging.Error("agent prepare_input failed", "agent", h.AgentID, "error", msg)
		return h.Degrade(s)
	}

	basePrompt, err := prompt.Assemble(h.Template, input, evidence)
	if err != nil {
		msg := b.redactor.Redact(fmt.Sprintf("prompt assembly failed: %v", err))
		s.RecordError(h.AgentID, msg)
		logging.Error("agent prompt assembly failed", "agent", h.AgentID, "error", msg)
		return h.Degrade(s)
	}

	attempts := b.cfg.MaxParseRetries + 1
	promptText := basePrompt
	var lastReason string

	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			s.RecordError(h.AgentID, "cancelled before generation")
			return h.Degrade(s)
		}

		raw, err := b.slot.WithModel(ctx, h.Model, deadline, func(ctx context.Context) (string, error) {
			return b.runtime.Generate(ctx, h.Model.ModelID, promptText, h.Model.Temperature, h.Model.MaxGenTokens, h.Model.MaxContextTokens, h.Model.RepeatPenalty, h.Model.TopK, h.Model.TopP, deadline)
		})
		if err != nil {
			msg := b.redactor.Redact(fmt.Sprintf("generation failed: %v", err))
			s.RecordError(h.AgentID, msg)
			logging.Warn("agent generation failed", "agent", h.AgentID, "error", msg)
			return h.Degrade(s)
		}

		result := jsonextract.Extract(raw)
		if !result.Found {
			lastReason = "no JSON object could be extracted from the model response"
			promptText = basePrompt + prompt.RetryInstruction
			continue
		}

		output, err := h.Parse(result.Object, s)
		if err != nil {
			lastReason = err.Error()
			promptText = basePrompt + prompt.RetryInstruction
			continue
		}

		return output
	}

	s.RecordError(h.AgentID, (&pipelineerrors.ParseRejected{AgentID: string(h.AgentID), Reason: lastReason}).Error())
	logging.Warn("agent exhausted parse retries", "agent", h.AgentID, "reason", lastReason, "attempts", attempts)
	return h.Degrade(s)
}
