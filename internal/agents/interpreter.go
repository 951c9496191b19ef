// Package agents implements the six deliberation agents (spec.md §4.7) as
// thin wrappers around agentcore.Base: each declares a prompt template and
// the three hooks (prepare_input, parse, degrade) and nothing else.
package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/Niruuu2005/ZenKnowledgeForge/internal/agentcore"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/prompt"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/state"
)

const interpreterTemplate = `You are the Interpreter agent of a deliberative research assistant.
Read the user's brief and any clarifications, then produce a JSON object
describing your understanding of their intent. Respond with exactly one
JSON object matching this shape:
{
  "primary_goal": string,
  "domain": string,
  "output_type": "research_report" | "project_spec" | "learning_path",
  "scope": "broad" | "moderate" | "narrow",
  "extracted_requirements": [string],
  "ambiguities": [string],
  "clarifying_questions": [string up to 5],
  "confidence": number in [0,1]
}`

// Interpreter implements spec.md §4.7's Interpreter contract.
type Interpreter struct {
	base  *agentcore.Base
	model state.ModelDescriptor
}

// NewInterpreter constructs an Interpreter bound to the run's shared
// think-cycle base and model descriptor.
func NewInterpreter(base *agentcore.Base, model state.ModelDescriptor) *Interpreter {
	return &Interpreter{base: base, model: model}
}

// Think runs the Interpreter's think-cycle and writes state.Intent.
func (a *Interpreter) Think(ctx context.Context, s *state.SharedState, deadline time.Time) {
	h := agentcore.Hooks{
		AgentID:  state.AgentInterpreter,
		Model:    a.model,
		Template: interpreterTemplate,
		PrepareInput: func(s *state.SharedState) (any, []prompt.EvidenceBlock, error) {
			return map[string]any{
				"user_brief":     s.UserBrief,
				"mode":           s.Mode,
				"clarifications": s.Clarifications,
			}, nil, nil
		},
		Parse:   parseIntent,
		Degrade: degradeIntent,
	}

	out := a.base.Think(ctx, h, s, deadline)
	intent, _ := out.(*state.IntentOutput)
	s.Intent = intent
	s.SetAgentOutput(state.AgentInterpreter, intent)
}

func parseIntent(obj map[string]any, s *state.SharedState) (any, error) {
	primaryGoal, _ := obj["primary_goal"].(string)
	if primaryGoal == "" {
		return nil, fmt.Errorf("primary_goal is required and must be non-empty")
	}
	outputType, _ := obj["output_type"].(string)
	if outputType != "research_report" && outputType != "project_spec" && outputType != "learning_path" {
		return nil, fmt.Errorf("output_type must be one of research_report|project_spec|learning_path, got %q", outputType)
	}

	scope, _ := obj["scope"].(string)
	domain, _ := obj["domain"].(string)
	confidence := floatField(obj, "confidence", 0.7)

	return &state.IntentOutput{
		PrimaryGoal:           primaryGoal,
		Domain:                domain,
		OutputType:            outputType,
		Scope:                 scope,
		ExtractedRequirements: stringSliceField(obj, "extracted_requirements"),
		Ambiguities:           stringSliceField(obj, "ambiguities"),
		ClarifyingQuestions:   capStringSlice(stringSliceField(obj, "clarifying_questions"), 5),
		Confidence:            clamp01(confidence),
	}, nil
}

func degradeIntent(s *state.SharedState) any {
	outputType := "research_report"
	switch s.Mode {
	case state.ModeProject:
		outputType = "project_spec"
	case state.ModeLearn:
		outputType = "learning_path"
	}
	return &state.IntentOutput{
		PrimaryGoal: s.UserBrief,
		OutputType:  outputType,
		Confidence:  0.0,
	}
}
