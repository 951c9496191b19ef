package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/Niruuu2005/ZenKnowledgeForge/internal/agentcore"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/prompt"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/state"
)

const plannerTemplate = `You are the Planner agent. Given the user's brief and the Interpreter's
intent, decompose the work into a DAG of research questions grouped into
execution phases. Respond with exactly one JSON object:
{
  "research_questions": [{
    "id": string,
    "question": string,
    "type": "factual" | "analytical" | "comparative" | "exploratory",
    "priority": "critical" | "high" | "medium" | "low",
    "estimated_time_minutes": number >= 0,
    "dependencies": [rq.id, ...]
  }],
  "phases": [{"name": string, "description": string, "rq_ids": [rq.id], "parallel": bool}],
  "success_criteria": [string],
  "estimated_total_time_minutes": number
}
Dependencies must reference only ids declared above and must form a DAG
(no cycles).`

// Planner implements spec.md §4.7's Planner contract.
type Planner struct {
	base  *agentcore.Base
	model state.ModelDescriptor
}

// NewPlanner constructs a Planner.
func NewPlanner(base *agentcore.Base, model state.ModelDescriptor) *Planner {
	return &Planner{base: base, model: model}
}

// Think runs the Planner's think-cycle and writes state.Plan.
func (a *Planner) Think(ctx context.Context, s *state.SharedState, deadline time.Time) {
	h := agentcore.Hooks{
		AgentID:  state.AgentPlanner,
		Model:    a.model,
		Template: plannerTemplate,
		PrepareInput: func(s *state.SharedState) (any, []prompt.EvidenceBlock, error) {
			return map[string]any{
				"user_brief":     s.UserBrief,
				"intent":         s.Intent,
				"clarifications": s.Clarifications,
			}, nil, nil
		},
		Parse:   parsePlan,
		Degrade: degradePlan,
	}

	out := a.base.Think(ctx, h, s, deadline)
	plan, _ := out.(*state.PlanOutput)
	s.Plan = plan
	s.SetAgentOutput(state.AgentPlanner, plan)
}

func parsePlan(obj map[string]any, s *state.SharedState) (any, error) {
	rawQuestions, ok := obj["research_questions"].([]any)
	if !ok || len(rawQuestions) == 0 {
		return nil, fmt.Errorf("research_questions must be a non-empty array")
	}

	questions := make([]state.ResearchQuestion, 0, len(rawQuestions))
	ids := map[string]bool{}
	for _, raw := range rawQuestions {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("each research question must be an object")
		}
		id, _ := m["id"].(string)
		question, _ := m["question"].(string)
		if id == "" || question == "" {
			return nil, fmt.Errorf("research question missing required id/question")
		}
		rq := state.ResearchQuestion{
			ID:                   id,
			Question:             question,
			Type:                 stringOr(m, "type", "exploratory"),
			Priority:             stringOr(m, "priority", "medium"),
			EstimatedTimeMinutes: int(floatField(m, "estimated_time_minutes", 0)),
			Dependencies:         stringSliceField(m, "dependencies"),
		}
		questions = append(questions, rq)
		ids[id] = true
	}

	for _, rq := range questions {
		for _, dep := range rq.Dependencies {
			if !ids[dep] {
				return nil, fmt.Errorf("research question %q depends on unknown id %q", rq.ID, dep)
			}
		}
	}
	if !isDAG(questions) {
		return nil, fmt.Errorf("research_questions dependency graph contains a cycle")
	}

	phases := parsePhases(obj)

	return &state.PlanOutput{
		ResearchQuestions:         questions,
		Phases:                    phases,
		SuccessCriteria:           stringSliceField(obj, "success_criteria"),
		EstimatedTotalTimeMinutes: int(floatField(obj, "estimated_total_time_minutes", 0)),
	}, nil
}

func parsePhases(obj map[string]any) []state.Phase {
	raw, ok := obj["phases"].([]any)
	if !ok {
		return nil
	}
	phases := make([]state.Phase, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		parallel, _ := m["parallel"].(bool)
		phases = append(phases, state.Phase{
			Name:        stringOr(m, "name", ""),
			Description: stringOr(m, "description", ""),
			RQIDs:       stringSliceField(m, "rq_ids"),
			Parallel:    parallel,
		})
	}
	return phases
}

// isDAG reports whether the dependency edges among questions are acyclic,
// via iterative depth-first search with a recursion-stack set.
func isDAG(questions []state.ResearchQuestion) bool {
	deps := make(map[string][]string, len(questions))
	for _, rq := range questions {
		deps[rq.ID] = rq.Dependencies
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	visitState := map[string]int{}

	var visit func(id string) bool
	visit = func(id string) bool {
		switch visitState[id] {
		case visiting:
			return false
		case done:
			return true
		}
		visitState[id] = visiting
		for _, dep := range deps[id] {
			if !visit(dep) {
				return false
			}
		}
		visitState[id] = done
		return true
	}

	for _, rq := range questions {
		if !visit(rq.ID) {
			return false
		}
	}
	return true
}

func degradePlan(s *state.SharedState) any {
	return &state.PlanOutput{
		ResearchQuestions: []state.ResearchQuestion{
			{ID: "rq1", Question: s.UserBrief, Type: "exploratory", Priority: "high"},
		},
	}
}

func stringOr(m map[string]any, key, def string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return def
}
