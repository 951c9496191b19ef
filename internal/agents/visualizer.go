package agents

import (
	"context"
	"time"

	"github.com/Niruuu2005/ZenKnowledgeForge/internal/agentcore"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/prompt"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/state"
)

const visualizerTemplate = `You are the Visualizer agent. Given the intent, plan, and (if present)
research findings, propose an ordered list of visualizations that would
help a reader understand the material. Respond with exactly one JSON
object:
{
  "visualizations": [{
    "id": string,
    "type": "chart"|"diagram"|"flowchart"|"architecture"|"image",
    "title": string,
    "purpose": string,
    "specification": <any JSON-serializable object describing the visualization>
  }]
}`

// Visualizer implements spec.md §4.7's Visualizer contract.
type Visualizer struct {
	base  *agentcore.Base
	model state.ModelDescriptor
}

// NewVisualizer constructs a Visualizer.
func NewVisualizer(base *agentcore.Base, model state.ModelDescriptor) *Visualizer {
	return &Visualizer{base: base, model: model}
}

// Think runs the Visualizer's think-cycle and writes state.Visualizations.
func (a *Visualizer) Think(ctx context.Context, s *state.SharedState, deadline time.Time) {
	h := agentcore.Hooks{
		AgentID:  state.AgentVisualizer,
		Model:    a.model,
		Template: visualizerTemplate,
		PrepareInput: func(s *state.SharedState) (any, []prompt.EvidenceBlock, error) {
			return map[string]any{
				"intent":            s.Intent,
				"plan":              s.Plan,
				"research_findings": s.ResearchFindings,
			}, nil, nil
		},
		Parse:   parseVisualizations,
		Degrade: degradeVisualizations,
	}

	out := a.base.Think(ctx, h, s, deadline)
	items, _ := out.([]state.VisualizationItem)
	s.Visualizations = items
	s.SetAgentOutput(state.AgentVisualizer, items)
}

func parseVisualizations(obj map[string]any, s *state.SharedState) (any, error) {
	raw, _ := obj["visualizations"].([]any)
	items := make([]state.VisualizationItem, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		items = append(items, state.VisualizationItem{
			ID:            stringOr(m, "id", ""),
			Type:          stringOr(m, "type", "diagram"),
			Title:         stringOr(m, "title", ""),
			Purpose:       stringOr(m, "purpose", ""),
			Specification: m["specification"],
		})
	}
	return items, nil
}

func degradeVisualizations(s *state.SharedState) any {
	return []state.VisualizationItem{}
}
